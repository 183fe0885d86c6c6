package scaffold

import (
	"strings"

	"github.com/jorge-barreto/sdlc/internal/phase"
)

var checklistItems = map[phase.ID][]string{
	phase.Requirements: {
		"Define project vision and goals",
		"Identify stakeholders",
		"Write PRD (Product Requirements Document)",
		"Create user stories with acceptance criteria",
		"Assess technical feasibility",
		"Define success metrics",
		"Get stakeholder sign-off",
	},
	phase.Development: {
		"Set up repository and branching strategy",
		"Configure development environment",
		"Install pre-commit hooks",
		"Implement core features",
		"Write inline documentation",
		"Conduct code reviews",
		"Maintain clean commit history",
	},
	phase.CICD: {
		"Set up CI pipeline (build + test)",
		"Configure linting and formatting checks",
		"Add security scanning (SAST)",
		"Set up artifact publishing",
		"Configure branch protection rules",
		"Add deployment pipeline",
		"Test pipeline end-to-end",
	},
	phase.Testing: {
		"Write unit tests (>80% coverage target)",
		"Write integration tests for critical paths",
		"Set up E2E test suite",
		"Run regression tests",
		"Conduct performance/load testing",
		"Fix all critical/high severity bugs",
		"Generate test coverage report",
	},
	phase.UAT: {
		"Create UAT test plan from user stories",
		"Set up UAT environment",
		"Brief stakeholders on testing scope",
		"Execute UAT test cases",
		"Collect and triage feedback",
		"Fix blocking issues",
		"Obtain stakeholder sign-off",
	},
	phase.Deployment: {
		"Create deployment runbook",
		"Set up feature flags (if applicable)",
		"Configure deployment strategy",
		"Run pre-deployment smoke tests",
		"Execute deployment",
		"Run post-deployment smoke tests",
		"Verify rollback procedure works",
	},
	phase.Monitoring: {
		"Set up application metrics",
		"Configure log aggregation",
		"Define SLOs and error budgets",
		"Create alerting rules",
		"Set up dashboards",
		"Document incident response procedure",
		"Conduct game day / chaos testing",
	},
}

// Checklist renders the markdown checklist for a phase.
func Checklist(info phase.Info) string {
	var b strings.Builder
	b.WriteString("# " + info.Title() + "\n\n")
	for _, item := range checklistItems[info.ID] {
		b.WriteString("- [ ] " + item + "\n")
	}
	return b.String()
}
