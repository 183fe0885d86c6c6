package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jorge-barreto/sdlc/internal/config"
	"github.com/jorge-barreto/sdlc/internal/dispatch"
	"github.com/jorge-barreto/sdlc/internal/gate"
	"github.com/jorge-barreto/sdlc/internal/logging"
	"github.com/jorge-barreto/sdlc/internal/phase"
	"github.com/jorge-barreto/sdlc/internal/prompt"
	"github.com/jorge-barreto/sdlc/internal/state"
	"github.com/jorge-barreto/sdlc/internal/ux"
)

func init() {
	ux.Out = io.Discard
}

// mockDispatcher records calls. File steps are written for real so gates can
// see them; other results are configurable per step name.
type mockDispatcher struct {
	mu         sync.Mutex
	calls      []string
	errors     map[string]error
	conditions map[string]bool
	lastEnv    *dispatch.Environment
}

func newMock() *mockDispatcher {
	return &mockDispatcher{
		errors:     make(map[string]error),
		conditions: make(map[string]bool),
	}
}

func (m *mockDispatcher) Dispatch(ctx context.Context, step config.Step, env *dispatch.Environment) (*dispatch.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, step.Name)
	m.lastEnv = env.Clone()
	m.mu.Unlock()

	if err, ok := m.errors[step.Name]; ok {
		return &dispatch.Result{ExitCode: 1}, err
	}
	if step.Type == config.StepFile {
		return dispatch.WriteFile(step, env)
	}
	return &dispatch.Result{}, nil
}

func (m *mockDispatcher) Condition(ctx context.Context, condition string, env *dispatch.Environment) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastEnv = env.Clone()
	return m.conditions[condition]
}

func (m *mockDispatcher) callNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := make([]string, len(m.calls))
	copy(c, m.calls)
	return c
}

// scriptedPrompter answers from queues and fails with prompt.ErrNoInput when
// a queue runs dry.
type scriptedPrompter struct {
	confirms []bool
	chooses  []string
	asks     []string
	onWait   func()
	waits    int
	err      error
}

func (p *scriptedPrompter) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	if len(p.confirms) == 0 {
		return false, prompt.ErrNoInput
	}
	a := p.confirms[0]
	p.confirms = p.confirms[1:]
	return a, nil
}

func (p *scriptedPrompter) Choose(ctx context.Context, question string, choices []string, def string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if len(p.chooses) == 0 {
		return "", prompt.ErrNoInput
	}
	a := p.chooses[0]
	p.chooses = p.chooses[1:]
	return a, nil
}

func (p *scriptedPrompter) Ask(ctx context.Context, question, def string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if len(p.asks) == 0 {
		return "", prompt.ErrNoInput
	}
	a := p.asks[0]
	p.asks = p.asks[1:]
	return a, nil
}

func (p *scriptedPrompter) Wait(ctx context.Context, message string) error {
	if p.err != nil {
		return p.err
	}
	p.waits++
	if p.onWait != nil {
		p.onWait()
	}
	return nil
}

const prdWorkflow = `
phases:
  requirements:
    - name: prd
      type: file
      path: docs/prd.md
      content: "# PRD for $PROJECT_NAME\n"
      notes: ["PRD drafted for $PROJECT_NAME"]
    - name: sign-off
      type: confirm
      question: Signed off?
      notes: [Stakeholder sign-off recorded]
`

const prdGates = `
phases:
  requirements:
    - description: PRD document exists
      check: file-exists
      args: [docs/prd.md]
    - description: Stakeholder sign-off recorded
      check: note-contains
      args: [requirements, sign-off]
`

type fixture struct {
	dir      string
	runner   *Runner
	mock     *mockDispatcher
	prompter *scriptedPrompter
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T, workflow, gates string, initialize bool) *fixture {
	t.Helper()
	lc := phase.Default()
	wf, err := config.ParseWorkflow([]byte(workflow), lc)
	if err != nil {
		t.Fatal(err)
	}
	reg, err := config.ParseRegistry([]byte(gates), lc)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	store := state.NewStore(lc)
	if initialize {
		if _, err := store.Initialize(dir, "demo", false); err != nil {
			t.Fatal(err)
		}
	}
	core, logs := observer.New(zapcore.InfoLevel)
	mock := newMock()
	p := &scriptedPrompter{}
	return &fixture{
		dir:      dir,
		mock:     mock,
		prompter: p,
		logs:     logs,
		runner: &Runner{
			Lifecycle:  lc,
			Store:      store,
			Validator:  gate.NewValidator(reg),
			Workflow:   wf,
			Dispatcher: mock,
			Prompter:   p,
			Log:        &logging.Session{ID: "test-session", Logger: zap.New(core)},
			GateLog:    &state.GateLog{},
			ProjectDir: dir,
		},
	}
}

func (f *fixture) load(t *testing.T) *state.ProjectState {
	t.Helper()
	s, err := f.runner.Store.Load(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRun_AllPhasesPass(t *testing.T) {
	f := newFixture(t, prdWorkflow, prdGates, true)
	f.prompter.confirms = []bool{true}

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	s := f.load(t)
	for _, id := range phase.Default().IDs() {
		if !s.Done(id) {
			t.Fatalf("phase %s not done: %+v", id, s.Phases.Get(id))
		}
	}
	if s.CurrentPhase != phase.Monitoring {
		t.Fatalf("current_phase = %s", s.CurrentPhase)
	}
	notes := s.Phases.Get(phase.Requirements).Notes
	if len(notes) != 2 || notes[0] != "PRD drafted for demo" || notes[1] != "Stakeholder sign-off recorded" {
		t.Fatalf("notes = %v", notes)
	}

	log, err := state.LoadGateLog(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(log.Entries) != 7 {
		t.Fatalf("expected 7 gate entries, got %d", len(log.Entries))
	}
	for _, e := range log.Entries {
		if e.Outcome != state.OutcomePassed || e.Session != "test-session" {
			t.Fatalf("unexpected entry: %+v", e)
		}
	}
	if f.logs.FilterMessage("session end").Len() != 1 {
		t.Fatal("expected session end log entry")
	}
}

func TestRun_GateBlockedQuit(t *testing.T) {
	f := newFixture(t, "phases: {}", prdGates, true)
	f.prompter.chooses = []string{ActionQuit}

	err := f.runner.Run(context.Background())
	if !errors.Is(err, ErrQuit) {
		t.Fatalf("expected ErrQuit, got %v", err)
	}

	s := f.load(t)
	rec := s.Phases.Get(phase.Requirements)
	if rec.Status != state.StatusInProgress || rec.GatePassed || rec.StartedAt == nil {
		t.Fatalf("requirements = %+v", rec)
	}
	if s.CurrentPhase != phase.Requirements {
		t.Fatalf("current_phase = %s", s.CurrentPhase)
	}
	log, _ := state.LoadGateLog(f.dir)
	if len(log.Entries) != 1 || log.Entries[0].Outcome != state.OutcomeFailed {
		t.Fatalf("gate log = %+v", log.Entries)
	}
	if len(log.Entries[0].Failed) != 2 {
		t.Fatalf("failed = %v", log.Entries[0].Failed)
	}
}

func TestRun_FixSeesNotesAddedOutside(t *testing.T) {
	f := newFixture(t, "phases: {}", `
phases:
  requirements:
    - description: Stakeholder sign-off recorded
      check: note-contains
      args: [requirements, sign-off]
`, true)
	f.prompter.chooses = []string{ActionFix, ActionQuit}
	f.prompter.onWait = func() {
		_, err := f.runner.Store.Update(f.dir, func(s *state.ProjectState) error {
			_, err := s.AddNote(phase.Requirements, "Stakeholder sign-off recorded")
			return err
		})
		if err != nil {
			t.Error(err)
		}
	}

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := f.load(t)
	if !s.Done(phase.Requirements) {
		t.Fatalf("requirements = %+v", s.Phases.Get(phase.Requirements))
	}
	log, _ := state.LoadGateLog(f.dir)
	latest, _ := log.Latest(phase.Requirements)
	if latest.Outcome != state.OutcomePassed {
		t.Fatalf("latest gate outcome = %s", latest.Outcome)
	}
}

func TestRun_ReopensCompletedPhaseWithoutGate(t *testing.T) {
	f := newFixture(t, "phases: {}", "phases: {}", true)
	if _, err := f.runner.Store.Update(f.dir, func(s *state.ProjectState) error {
		s.Phases.Get(phase.Requirements).Status = state.StatusCompleted
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := f.load(t)
	rec := s.Phases.Get(phase.Requirements)
	if !s.Done(phase.Requirements) || rec.CompletedAt == nil {
		t.Fatalf("requirements = %+v", rec)
	}
}

func TestRun_SkipOverride(t *testing.T) {
	f := newFixture(t, "phases: {}", prdGates, true)
	f.prompter.chooses = []string{ActionSkip}

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	s := f.load(t)
	if !s.Done(phase.Requirements) {
		t.Fatal("skipped phase should be completed")
	}
	log, _ := state.LoadGateLog(f.dir)
	latest, ok := log.Latest(phase.Requirements)
	if !ok || latest.Outcome != state.OutcomeSkipped {
		t.Fatalf("latest = %+v", latest)
	}
	warn := f.logs.FilterMessage("gate overridden")
	if warn.Len() != 1 || warn.All()[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one WARN gate overridden entry, got %d", warn.Len())
	}
}

func TestRun_RetryThenFix(t *testing.T) {
	f := newFixture(t, "phases: {}", `
phases:
  requirements:
    - description: PRD document exists
      check: file-exists
      args: [docs/prd.md]
`, true)
	f.prompter.chooses = []string{ActionRetry, ActionFix}
	f.prompter.onWait = func() {
		os.MkdirAll(filepath.Join(f.dir, "docs"), 0755)
		os.WriteFile(filepath.Join(f.dir, "docs", "prd.md"), []byte("# PRD\n"), 0644)
	}

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.prompter.waits != 1 {
		t.Fatalf("waits = %d", f.prompter.waits)
	}
	log, _ := state.LoadGateLog(f.dir)
	var outcomes []string
	for _, e := range log.Entries {
		if e.Phase == phase.Requirements {
			outcomes = append(outcomes, e.Outcome)
		}
	}
	want := []string{state.OutcomeFailed, state.OutcomeFailed, state.OutcomePassed}
	if len(outcomes) != len(want) {
		t.Fatalf("outcomes = %v", outcomes)
	}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Fatalf("outcomes = %v, want %v", outcomes, want)
		}
	}
}

func TestRun_ResumeSkipsCompleted(t *testing.T) {
	f := newFixture(t, prdWorkflow, prdGates, true)
	if _, err := f.runner.Store.Update(f.dir, func(s *state.ProjectState) error {
		if err := s.Start(phase.Requirements); err != nil {
			return err
		}
		if err := s.Complete(phase.Requirements); err != nil {
			return err
		}
		s.Advance(phase.Requirements)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls := f.mock.callNames(); len(calls) != 0 {
		t.Fatalf("completed phase re-executed: %v", calls)
	}
	log, _ := state.LoadGateLog(f.dir)
	if _, ok := log.Latest(phase.Requirements); ok {
		t.Fatal("completed phase should not be gated again")
	}
}

func TestRun_StepFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t, `
phases:
  testing:
    - name: unit-tests
      type: script
      run: make test
      notes: [Unit tests passing]
    - name: after
      type: script
      run: "true"
`, "phases: {}", true)
	f.mock.errors["unit-tests"] = &dispatch.StepError{Step: "unit-tests", ExitCode: 2}

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	calls := f.mock.callNames()
	if len(calls) != 2 || calls[1] != "after" {
		t.Fatalf("calls = %v", calls)
	}
	s := f.load(t)
	if notes := s.Phases.Get(phase.Testing).Notes; len(notes) != 0 {
		t.Fatalf("failed step must not add notes: %v", notes)
	}
	if f.logs.FilterMessage("step failed").Len() != 1 {
		t.Fatal("expected step failed log entry")
	}
}

func TestRun_ChooseFeedsCondition(t *testing.T) {
	f := newFixture(t, `
phases:
  cicd:
    - name: ci-platform
      type: choose
      question: CI platform?
      var: CI_PLATFORM
      choices: [github, gitlab]
      default: github
    - name: github-actions
      type: file
      condition: '[ "$CI_PLATFORM" = github ]'
      path: .github/workflows/ci.yml
      content: "name: CI\n"
`, "phases: {}", true)
	f.prompter.chooses = []string{"gitlab"}

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls := f.mock.callNames(); len(calls) != 0 {
		t.Fatalf("step with false condition ran: %v", calls)
	}
	if got := f.mock.lastEnv.Vars()["CI_PLATFORM"]; got != "gitlab" {
		t.Fatalf("CI_PLATFORM = %q", got)
	}
}

func TestRun_ConfirmDeclinedSkipsStep(t *testing.T) {
	f := newFixture(t, `
phases:
  requirements:
    - name: prd
      type: file
      confirm: Create PRD?
      path: docs/prd.md
`, "phases: {}", true)
	f.prompter.confirms = []bool{false}

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls := f.mock.callNames(); len(calls) != 0 {
		t.Fatalf("declined step ran: %v", calls)
	}
}

func TestRun_StartFrom(t *testing.T) {
	f := newFixture(t, "phases: {}", "phases: {}", true)
	f.runner.StartFrom = phase.Testing

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	s := f.load(t)
	for _, id := range []phase.ID{phase.Requirements, phase.Development, phase.CICD} {
		if s.Phases.Get(id).Status != state.StatusPending {
			t.Fatalf("%s should stay pending", id)
		}
	}
	for _, id := range []phase.ID{phase.Testing, phase.UAT, phase.Deployment, phase.Monitoring} {
		if !s.Done(id) {
			t.Fatalf("%s should be done", id)
		}
	}
}

func TestRun_DryRunTouchesNothing(t *testing.T) {
	f := newFixture(t, prdWorkflow, prdGates, false)
	f.runner.DryRun = true
	f.runner.Log = logging.Nop()
	f.prompter.asks = []string{"demo"}
	f.prompter.chooses = []string{"none", ActionSkip}
	f.prompter.confirms = []bool{true}

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if state.Exists(f.dir) {
		t.Fatal("dry run wrote state")
	}
	if _, err := os.Stat(filepath.Join(f.dir, "docs", "prd.md")); !os.IsNotExist(err) {
		t.Fatalf("dry run created files: %v", err)
	}
	if calls := f.mock.callNames(); len(calls) != 0 {
		t.Fatalf("dry run dispatched: %v", calls)
	}
	if !f.runner.State().Done(phase.Monitoring) {
		t.Fatal("dry run should walk every phase in memory")
	}
}

func TestRun_BootstrapInitializes(t *testing.T) {
	f := newFixture(t, "phases: {}", "phases: {}", false)
	f.prompter.asks = []string{"fresh"}
	f.prompter.chooses = []string{"none"}

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	s := f.load(t)
	if s.ProjectName != "fresh" {
		t.Fatalf("project_name = %q", s.ProjectName)
	}
	info, _ := phase.Default().Info(phase.Requirements)
	if _, err := os.Stat(state.ChecklistPath(f.dir, info)); err != nil {
		t.Fatalf("checklist not written: %v", err)
	}
}

func TestRun_Interrupted(t *testing.T) {
	f := newFixture(t, "phases: {}", prdGates, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.prompter.err = context.Canceled

	err := f.runner.Run(ctx)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if f.logs.FilterMessage("interrupted").Len() != 1 {
		t.Fatal("expected interrupted log entry")
	}
}

func TestRun_InputEnds(t *testing.T) {
	f := newFixture(t, "phases: {}", prdGates, true)

	err := f.runner.Run(context.Background())
	if !errors.Is(err, prompt.ErrNoInput) {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}
	s := f.load(t)
	if s.Phases.Get(phase.Requirements).Status != state.StatusInProgress {
		t.Fatal("state should be persisted before exiting")
	}
}
