package ux

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/jorge-barreto/sdlc/internal/gate"
	"github.com/jorge-barreto/sdlc/internal/phase"
)

// Out receives all terminal output. Tests may replace it.
var Out io.Writer = color.Output

var (
	bold      = color.New(color.Bold)
	dim       = color.New(color.Faint)
	red       = color.New(color.FgRed)
	green     = color.New(color.FgGreen)
	yellow    = color.New(color.FgYellow)
	cyan      = color.New(color.FgCyan)
	boldGreen = color.New(color.Bold, color.FgGreen)
	boldRed   = color.New(color.Bold, color.FgRed)
)

const rule = "══════════════════════════════════════════════════════"

func timestamp() string {
	return time.Now().Format("15:04:05")
}

func printf(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}

// Header prints a timestamped banner.
func Header(title string) {
	ts := dim.Sprintf("[%s]", timestamp())
	printf("\n%s %s\n", ts, cyan.Sprint(rule))
	printf("%s  %s\n", ts, bold.Sprint(title))
	printf("%s %s\n\n", ts, cyan.Sprint(rule))
}

// Section prints a step heading inside a phase.
func Section(text string) {
	printf("\n%s\n\n", bold.Sprintf("--- %s ---", text))
}

// Info prints an indented plain line.
func Info(format string, a ...any) {
	printf("  "+format+"\n", a...)
}

// Dim prints an indented de-emphasized line.
func Dim(format string, a ...any) {
	printf("  %s\n", dim.Sprintf(format, a...))
}

// Warn prints an indented warning.
func Warn(format string, a ...any) {
	printf("  %s\n", yellow.Sprintf("⚠ "+format, a...))
}

// Error prints an error to Out.
func Error(err error) {
	printf("%s %v\n", red.Sprint("error:"), err)
}

// DryRun prints what would have happened.
func DryRun(format string, a ...any) {
	printf("  %s %s\n", yellow.Sprint("[DRY-RUN]"), fmt.Sprintf(format, a...))
}

// Created reports a newly written file.
func Created(path string) {
	printf("  %s %s\n", green.Sprint("[CREATED]"), path)
}

// Found reports an existing file that was left untouched.
func Found(path string) {
	printf("  %s %s\n", dim.Sprint("[EXISTS]"), path)
}

// NoteAdded reports a recorded note.
func NoteAdded(id phase.ID, note string) {
	printf("  %s %s: %s\n", green.Sprint("[NOTE]"), id, note)
}

// Run reports a command about to be executed.
func Run(cmd string) {
	printf("  %s %s\n", cyan.Sprint("[RUN]"), cmd)
}

// StepSkip reports a step that did not run.
func StepSkip(name, reason string) {
	printf("  %s\n", dim.Sprintf("– %s skipped (%s)", name, reason))
}

// StepFail reports a failed step. The phase continues.
func StepFail(name string, err error) {
	printf("  %s\n", red.Sprintf("✗ %s failed: %v", name, err))
}

// PhaseSkip reports a phase that is already complete.
func PhaseSkip(info phase.Info) {
	printf("\n  %s %s\n", dim.Sprint("[SKIP]"), dim.Sprintf("%s: already completed", info.Title()))
}

// PhaseComplete reports a closed phase.
func PhaseComplete(info phase.Info, overridden bool, d time.Duration) {
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	ts := dim.Sprintf("[%s]", timestamp())
	if overridden {
		printf("%s  %s\n", ts, yellow.Sprintf("⚠ %s closed without passing its gate (%dm %02ds)", info.Title(), m, s))
		return
	}
	printf("%s  %s\n", ts, green.Sprintf("✓ %s complete (%dm %02ds)", info.Title(), m, s))
}

// ResumeHint tells the operator how to continue later.
func ResumeHint() {
	printf("\n%s sdlc orchestrate\n\n", yellow.Sprint("Resume:"))
}

// Success prints the final banner of a full walk.
func Success(total int, projectName string) {
	ts := dim.Sprintf("[%s]", timestamp())
	printf("\n%s  %s\n", ts, boldGreen.Sprintf("══ All %d phases complete ══", total))
	printf("  Project: %s\n\n", projectName)
	printf("  Next steps:\n")
	printf("    sdlc health       View health dashboard\n")
	printf("    sdlc gate --all   Verify all gates\n\n")
	printf("  Phase 7 (Monitoring) feeds back into Phase 1 (Requirements).\n\n")
}

// GateReport prints one gate verdict. next is the phase that becomes
// available when the gate passes; pass nil for the last phase.
func GateReport(info phase.Info, res gate.Result, next *phase.Info) {
	printf("\n%s\n", bold.Sprintf("Gate Check: %s", info.Title()))
	printf("%s\n", dim.Sprint(strings.Repeat("─", 50)))
	for _, o := range res.Outcomes {
		if o.Passed {
			printf("  %s %s\n", green.Sprint("✓"), o.Description)
			continue
		}
		printf("  %s %s\n", red.Sprint("✗"), o.Description)
		if o.Err != nil {
			printf("      %s\n", yellow.Sprintf("config error: %v", o.Err))
		}
	}
	printf("\n  %d/%d criteria met\n", len(res.Passed()), len(res.Outcomes))
	if res.OK() {
		printf("  Status: %s\n", boldGreen.Sprint("PASSED"))
		if next != nil {
			printf("  Ready to advance to: %s\n", next.Title())
		}
	} else {
		printf("  Status: %s\n", boldRed.Sprint("BLOCKED"))
	}
	printf("\n")
}
