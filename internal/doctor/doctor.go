package doctor

import (
	"fmt"
	"os"
	"strings"

	"github.com/jorge-barreto/sdlc/internal/config"
	"github.com/jorge-barreto/sdlc/internal/dispatch"
	"github.com/jorge-barreto/sdlc/internal/gate"
	"github.com/jorge-barreto/sdlc/internal/phase"
	"github.com/jorge-barreto/sdlc/internal/state"
	"github.com/jorge-barreto/sdlc/internal/ux"
)

const maxLogLines = 20

// Finding is one line of the doctor report.
type Finding struct {
	Severity string
	Message  string
}

// Report is the result of a consistency check.
type Report struct {
	Findings []Finding
	// LogTail holds the last lines of the current phase's step log.
	LogTail string
}

func (r *Report) add(severity, format string, a ...any) {
	r.Findings = append(r.Findings, Finding{Severity: severity, Message: fmt.Sprintf(format, a...)})
}

// HasErrors reports whether any finding is error level.
func (r *Report) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == ux.SeverityError {
			return true
		}
	}
	return false
}

// Input bundles what the doctor inspects.
type Input struct {
	ProjectDir string
	Lifecycle  *phase.Lifecycle
	Registry   *config.Registry
	Workflow   *config.Workflow
	State      *state.ProjectState
	GateLog    *state.GateLog

	// WorkflowErr is the error from loading the workflow, if any.
	WorkflowErr error
}

// Check inspects the configuration and state for inconsistencies. It never
// writes anything.
func Check(in Input) *Report {
	r := &Report{}
	r.add(ux.SeverityInfo, "gate criteria: %s", in.Registry.Source())
	switch {
	case in.WorkflowErr != nil:
		r.add(ux.SeverityError, "phase workflow: %v", in.WorkflowErr)
	case in.Workflow != nil:
		r.add(ux.SeverityInfo, "phase workflow: %s", in.Workflow.Source())
		missing, err := dispatch.Preflight(in.Workflow.AllSteps(in.Lifecycle))
		if err != nil {
			r.add(ux.SeverityError, "%v", err)
		}
		for _, m := range missing {
			r.add(ux.SeverityWarning, "step '%s' runs %s, which is not on PATH", m.Step, m.Binary)
		}
	}

	lintErrs := gate.Lint(in.Registry)
	for _, e := range lintErrs {
		r.add(ux.SeverityError, "%v", e)
	}
	if len(lintErrs) == 0 {
		r.add(ux.SeverityInfo, "all gate criteria compile")
	}

	checkState(r, in)

	if branch := dispatch.Branch(in.ProjectDir); branch != "" {
		r.add(ux.SeverityInfo, "git branch: %s", branch)
	} else {
		r.add(ux.SeverityWarning, "not a git repository (or HEAD is detached)")
	}

	if info, ok := in.Lifecycle.Info(in.State.CurrentPhase); ok {
		r.LogTail = gatherLog(in.ProjectDir, info)
	}
	return r
}

func checkState(r *Report, in Input) {
	st := in.State
	current := in.Lifecycle.Index(st.CurrentPhase)
	for i, id := range in.Lifecycle.IDs() {
		rec := st.Phases.Get(id)
		switch {
		case rec.Status == state.StatusCompleted && !rec.GatePassed:
			r.add(ux.SeverityError, "phase '%s' is completed but its gate never passed", id)
		case rec.Status == state.StatusCompleted && rec.CompletedAt == nil:
			r.add(ux.SeverityWarning, "phase '%s' is completed without completed_at", id)
		case rec.Status == state.StatusInProgress && rec.StartedAt == nil:
			r.add(ux.SeverityWarning, "phase '%s' is in progress without started_at", id)
		case rec.Status == state.StatusPending && rec.GatePassed:
			r.add(ux.SeverityError, "phase '%s' is pending but marked gate_passed", id)
		}
		if i < current && !rec.GatePassed {
			r.add(ux.SeverityWarning, "Phase '%s' gate not passed (before current phase)", id)
		}
		if in.GateLog != nil {
			if e, ok := in.GateLog.Latest(id); ok && e.Outcome == state.OutcomeSkipped {
				r.add(ux.SeverityWarning, "phase '%s' was closed by a gate override on %s", id, e.CheckedAt.Format("2006-01-02"))
			}
		}
	}
	if next, ok := in.Lifecycle.Next(st.CurrentPhase); ok && st.Done(st.CurrentPhase) {
		r.add(ux.SeverityWarning, "current_phase '%s' is already complete; next is '%s'", st.CurrentPhase, next)
	}
}

func gatherLog(projectDir string, info phase.Info) string {
	data, err := os.ReadFile(state.LogPath(projectDir, info))
	if err != nil {
		return ""
	}
	text := strings.TrimRight(string(data), "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
		return fmt.Sprintf("... (truncated to last %d lines)\n%s", maxLogLines, strings.Join(lines, "\n"))
	}
	return text
}

// Print renders the report.
func Print(st *state.ProjectState, r *Report) {
	ux.Title("Doctor: %s", st.ProjectName)
	for _, f := range r.Findings {
		ux.RenderFinding(f.Severity, f.Message)
	}
	if r.LogTail != "" {
		ux.Title("Last output of phase '%s'", st.CurrentPhase)
		for _, line := range strings.Split(r.LogTail, "\n") {
			ux.Dim("%s", line)
		}
	}
}
