package docs

var topics = []Topic{
	{
		Name:    "quickstart",
		Title:   "Quick Start",
		Summary: "Getting started with sdlc",
		Content: topicQuickstart,
	},
	{
		Name:    "phases",
		Title:   "Lifecycle Phases",
		Summary: "The seven phases, their order, and their transitions",
		Content: topicPhases,
	},
	{
		Name:    "gates",
		Title:   "Gate Criteria",
		Summary: "Exit criteria, check kinds, and project overrides",
		Content: topicGates,
	},
	{
		Name:    "workflow",
		Title:   "Phase Workflow",
		Summary: "Steps run for each phase before its gate",
		Content: topicWorkflow,
	},
	{
		Name:    "state",
		Title:   "State Directory",
		Summary: "Structure of .sdlc/ and the state document",
		Content: topicState,
	},
	{
		Name:    "orchestrate",
		Title:   "Orchestrator",
		Summary: "The interactive walk, gate failures, resuming and dry runs",
		Content: topicOrchestrate,
	},
}

const topicQuickstart = `Quick Start
===========

1. Initialize tracking in a project:

    cd your-project
    sdlc init --project-name "My App"

   Add --template react-vite, fastapi or nextjs to scaffold project files.
   This creates .sdlc/state.json and one checklist per phase under
   .sdlc/phases/.

2. Walk the lifecycle:

    sdlc orchestrate

   Each phase runs its workflow steps, then checks its gate. A phase only
   completes when every gate criterion passes (or you explicitly skip).

3. Check where you are:

    sdlc health
    sdlc gate --phase requirements
    sdlc gate --all --json

4. Record evidence for note-based criteria:

    sdlc note add --phase uat "Stakeholder sign-off obtained from J. Doe"

5. Diagnose problems:

    sdlc doctor
`

const topicPhases = `Lifecycle Phases
================

Phases run in a fixed order:

    1. requirements   Requirements & Planning
    2. development    Development & Git
    3. cicd           CI/CD Pipeline
    4. testing        QA Testing
    5. uat            User Acceptance Testing
    6. deployment     Production Deployment
    7. monitoring     Monitoring & SRE

Each phase is pending, in_progress or completed.

    pending -> in_progress      when the orchestrator starts the phase
    in_progress -> completed    when the gate passes, or on an explicit skip

A completed phase is never reopened. current_phase only moves forward,
except when you jump with 'sdlc orchestrate --start-from <phase>'.

Monitoring feeds back into Requirements: start a new cycle by
reinitializing with 'sdlc init --force' (this discards history).
`

const topicGates = `Gate Criteria
=============

Every phase has a list of exit criteria. 'sdlc gate' evaluates them in order
and reports each as passed or failed. The gate passes only when no criterion
fails; a phase without criteria passes trivially.

Check kinds:

    file-exists       args: [path]               regular file at path
    dir-exists        args: [path]               directory at path
    glob-match        args: [pattern]            a file matches at any depth
    any-glob-match    args: [pattern, ...]       any pattern matches
    content-contains  args: [path, substring]    case-insensitive
    note-contains     args: [phase, substring]   a note on phase contains it

Glob checks ignore .sdlc, .git, node_modules, vendor, .venv and __pycache__.

A criterion that cannot be evaluated (unknown check, wrong number of
arguments, bad pattern, unknown phase) fails with a configuration error.
'sdlc doctor' lists every such criterion.

Overrides: list phases in .sdlc/gates.yaml using the same format as the
built-in table. Each listed phase replaces its built-in criteria:

    phases:
      testing:
        - description: Unit tests exist
          check: glob-match
          args: ["*_test.go"]

Output:

    sdlc gate --phase testing           human report, exit 1 when blocked
    sdlc gate --all --json              {"phase": {"passed": [...], "failed": [...]}}
    sdlc gate --phase testing --watch   re-check whenever files change
`

const topicWorkflow = `Phase Workflow
==============

Before checking a gate, the orchestrator runs the phase's steps in order.

    file      create "path" with "content" unless it exists
    script    run "run" with bash in the project directory ("timeout" in minutes)
    confirm   ask "question"; on yes record "notes" on the phase
    ask       store a free-text answer in variable "var"
    choose    store one of "choices" in variable "var"
    git-init  initialize a git repository unless one exists

Any step can carry a "condition", a shell command that must exit 0 for the
step to run. file, script and git-init steps may carry a "confirm" question.
Notes listed on a file, script or git-init step are recorded only when the
step succeeds.

Variables:

    $PROJECT_DIR   project directory
    $PROJECT_NAME  project name from the state document
    $PHASE         current phase id
    $SDLC_DIR      the .sdlc directory

Write $$ for a literal dollar sign. Answers from ask and choose steps are
available to later steps. Scripts also
receive every variable as an SDLC_ prefixed environment variable.

A failing script is reported and logged, and the phase continues: only the
gate decides whether the phase completes.

Overrides: list phases in .sdlc/workflow.yaml to replace their steps, and
declare extra variables under "vars".
`

const topicState = `State Directory
===============

    .sdlc/
    ├── state.json           phase progress (the state document)
    ├── gate-log.json        every gate evaluation made by the orchestrator
    ├── gates.yaml           optional gate criteria override
    ├── workflow.yaml        optional workflow override
    ├── phases/
    │   └── NN-<phase>.md    checklists used by 'sdlc health'
    └── logs/
        ├── NN-<phase>.log   output of script steps
        └── sdlc.log         structured operator log (JSON lines)

state.json:

    {
      "project_name": "My App",
      "created_at": "...",
      "updated_at": "...",
      "current_phase": "requirements",
      "phases": {
        "requirements": {
          "status": "pending",
          "started_at": null,
          "completed_at": null,
          "gate_passed": false,
          "notes": []
        },
        ...
      }
    }

Writes are atomic. Only 'sdlc orchestrate' and 'sdlc note add' modify the
state; 'gate', 'health' and 'doctor' only read it. Do not run two
orchestrators against the same project at once.

A corrupt state document is reported with a fix: 'sdlc init --force'.
`

const topicOrchestrate = `Orchestrator
============

    sdlc orchestrate [--project-dir <path>] [--start-from <phase>] [--dry-run]

Without a state document the orchestrator asks for a project name and an
optional template, then initializes the project.

For each phase from current_phase onward:

    1. Skip it if it is completed with a passed gate.
    2. Mark it in_progress.
    3. Run its workflow steps.
    4. Check the gate until it passes or you choose otherwise:

        retry   check again
        fix     make changes, press Enter, check again
        skip    complete the phase anyway (recorded as an override)
        quit    save and exit; resume later with 'sdlc orchestrate'

    5. Advance current_phase.

Ctrl+C saves state and exits with code 130. Re-run to resume.

--dry-run walks the same flow without running scripts, writing files or
saving state.
`
