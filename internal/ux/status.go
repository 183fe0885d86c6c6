package ux

import (
	"fmt"
	"strings"

	"github.com/jorge-barreto/sdlc/internal/health"
	"github.com/jorge-barreto/sdlc/internal/phase"
	"github.com/jorge-barreto/sdlc/internal/state"
)

func statusIcon(row health.PhaseRow) string {
	switch {
	case row.Blocked:
		return red.Sprint("✗")
	case row.Status == state.StatusCompleted:
		return green.Sprint("✓")
	case row.Status == state.StatusInProgress:
		return cyan.Sprint("↻")
	}
	return dim.Sprint("·")
}

// RenderHealth prints the health dashboard.
func RenderHealth(r *health.Report) {
	printf("\n%s\n", cyan.Sprint(rule))
	printf("  %s\n", bold.Sprintf("SDLC Health Dashboard: %s", r.ProjectName))
	printf("%s\n\n", cyan.Sprint(rule))

	printf("  Project age: %d days\n", r.AgeDays)
	printf("  Current phase: %s\n\n", r.CurrentPhase.Title())
	printf("    %-28s %-12s %-10s %s\n", "Phase", "Status", "Progress", "Gate")
	printf("    %s %s %s %s\n", strings.Repeat("-", 28), strings.Repeat("-", 12), strings.Repeat("-", 10), strings.Repeat("-", 4))
	for _, row := range r.Rows {
		status := string(row.Status)
		if row.Blocked {
			status = "blocked"
		}
		gate := dim.Sprint("—")
		if row.GatePassed {
			gate = green.Sprint("✓")
		}
		marker := ""
		if row.Current {
			marker = yellow.Sprint(" ←")
		}
		printf("  %s %-28s %-12s %-10s %s%s\n", statusIcon(row), row.Info.Name, status, row.Progress(), gate, marker)
	}

	printf("\n  Overall health score: %s\n", bold.Sprintf("%.0f/100", r.Score))

	if len(r.Recommendations)+len(r.Warnings) > 0 {
		printf("\n  Recommendations:\n")
		for _, rec := range r.Recommendations {
			printf("    • %s\n", rec)
		}
		for _, w := range r.Warnings {
			printf("    • %s\n", yellow.Sprintf("⚠ %s", w))
		}
	}
	printf("\n")
}

// RenderNotes prints the notes of the given phases.
func RenderNotes(lc *phase.Lifecycle, s *state.ProjectState, ids []phase.ID) {
	for _, id := range ids {
		info, _ := lc.Info(id)
		rec := s.Phases.Get(id)
		printf("%s\n", bold.Sprint(info.Title()))
		if rec == nil || len(rec.Notes) == 0 {
			printf("  %s\n", dim.Sprint("(no notes)"))
			continue
		}
		for _, n := range rec.Notes {
			printf("  • %s\n", n)
		}
	}
}

// Finding severities for RenderFinding.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// RenderFinding prints one doctor line.
func RenderFinding(severity, msg string) {
	switch severity {
	case SeverityError:
		printf("  %s %s\n", red.Sprint("✗"), msg)
	case SeverityWarning:
		printf("  %s %s\n", yellow.Sprint("⚠"), msg)
	default:
		printf("  %s %s\n", green.Sprint("✓"), msg)
	}
}

// Title prints a bold heading line.
func Title(format string, a ...any) {
	printf("\n%s\n", bold.Sprint(fmt.Sprintf(format, a...)))
}
