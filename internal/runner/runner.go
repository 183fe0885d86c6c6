package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jorge-barreto/sdlc/internal/config"
	"github.com/jorge-barreto/sdlc/internal/dispatch"
	"github.com/jorge-barreto/sdlc/internal/gate"
	"github.com/jorge-barreto/sdlc/internal/logging"
	"github.com/jorge-barreto/sdlc/internal/phase"
	"github.com/jorge-barreto/sdlc/internal/prompt"
	"github.com/jorge-barreto/sdlc/internal/scaffold"
	"github.com/jorge-barreto/sdlc/internal/state"
	"github.com/jorge-barreto/sdlc/internal/ux"
)

var (
	// ErrQuit is returned when the operator leaves the gate loop with quit.
	ErrQuit = errors.New("stopped by operator")
	// ErrInterrupted is returned when the run is cancelled by a signal.
	ErrInterrupted = errors.New("interrupted")
)

// Gate failure actions offered to the operator.
const (
	ActionRetry = "retry"
	ActionFix   = "fix"
	ActionSkip  = "skip"
	ActionQuit  = "quit"
)

var gateActions = []string{ActionRetry, ActionFix, ActionSkip, ActionQuit}

// bootstrapTemplates are offered when orchestrate initializes a project.
var bootstrapTemplates = []string{"none", "react-vite", "fastapi", "nextjs"}

// Runner drives the phase state machine.
type Runner struct {
	Lifecycle  *phase.Lifecycle
	Store      *state.Store
	Validator  *gate.Validator
	Workflow   *config.Workflow
	Dispatcher dispatch.Dispatcher
	Prompter   prompt.Prompter
	Log        *logging.Session
	GateLog    *state.GateLog
	ProjectDir string
	// StartFrom jumps to a phase before walking. Empty resumes from
	// current_phase.
	StartFrom phase.ID
	// DryRun walks the full control flow against an in-memory copy of the
	// state without touching the filesystem.
	DryRun bool

	state *state.ProjectState
	env   *dispatch.Environment
}

// State returns the state as last seen by the runner.
func (r *Runner) State() *state.ProjectState {
	return r.state
}

func (r *Runner) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log.Logger
}

func (r *Runner) session() string {
	if r.Log == nil {
		return ""
	}
	return r.Log.ID
}

// update applies fn to the freshest persisted state and saves it. In dry-run
// fn is applied to the in-memory copy only.
func (r *Runner) update(fn func(*state.ProjectState) error) error {
	if r.DryRun {
		return fn(r.state)
	}
	s, err := r.Store.Update(r.ProjectDir, fn)
	if err != nil {
		return err
	}
	r.state = s
	return nil
}

// stop flushes the gate log, prints a resume hint, and returns err.
func (r *Runner) stop(err error) error {
	if !r.DryRun && r.GateLog != nil {
		if flushErr := r.GateLog.Flush(r.ProjectDir); flushErr != nil {
			ux.Warn("failed to flush gate log: %v", flushErr)
		}
	}
	switch {
	case errors.Is(err, ErrQuit):
		r.logger().Info("quit", zap.String("phase", string(r.state.CurrentPhase)))
		ux.Info("State saved.")
	case errors.Is(err, ErrInterrupted):
		r.logger().Warn("interrupted", zap.String("phase", string(r.currentPhase())))
		ux.Info("Interrupted. State saved.")
	default:
		r.logger().Error("orchestrate failed", zap.Error(err))
	}
	ux.ResumeHint()
	return err
}

func (r *Runner) currentPhase() phase.ID {
	if r.state == nil {
		return ""
	}
	return r.state.CurrentPhase
}

// interrupted maps a prompt or context error to the error the run stops
// with.
func (r *Runner) interrupted(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return r.stop(ErrInterrupted)
	}
	if errors.Is(err, prompt.ErrNoInput) {
		return r.stop(fmt.Errorf("operator input ended: %w", err))
	}
	return r.stop(err)
}

// Run walks the phases from the current (or requested) phase to the end.
func (r *Runner) Run(ctx context.Context) error {
	ux.Header("SDLC Orchestrator")
	ux.Info("This will walk you through all %d SDLC phases interactively.", r.Lifecycle.Len())
	ux.Info("You can quit anytime (Ctrl+C) and resume later.")

	if err := r.load(ctx); err != nil {
		return err
	}
	r.initEnv()

	if r.DryRun {
		r.DryRunPrint()
	} else {
		missing, err := dispatch.Preflight(r.Workflow.AllSteps(r.Lifecycle))
		if err != nil {
			return err
		}
		for _, m := range missing {
			ux.Warn("step %q runs %s, which is not on PATH", m.Step, m.Binary)
		}
	}

	start := r.state.CurrentPhase
	if r.StartFrom != "" {
		if !r.Lifecycle.Valid(r.StartFrom) {
			return fmt.Errorf("unknown phase %q (must be one of: %s)", r.StartFrom, r.Lifecycle)
		}
		start = r.StartFrom
		if start != r.state.CurrentPhase {
			if err := r.update(func(s *state.ProjectState) error { return s.JumpTo(start) }); err != nil {
				return fmt.Errorf("jumping to %s: %w", start, err)
			}
		}
	}

	ux.Info("Project: %s", r.state.ProjectName)
	startInfo, _ := r.Lifecycle.Info(start)
	ux.Info("Starting from: %s", startInfo.Name)
	r.logger().Info("session start",
		zap.String("project", r.state.ProjectName),
		zap.String("start", string(start)),
		zap.Bool("dry_run", r.DryRun))

	all := r.Lifecycle.All()
	for _, info := range all[r.Lifecycle.Index(start):] {
		if ctx.Err() != nil {
			return r.stop(ErrInterrupted)
		}
		if r.state.Done(info.ID) {
			ux.PhaseSkip(info)
			continue
		}
		if err := r.runPhase(ctx, info); err != nil {
			return err
		}
	}

	if !r.DryRun && r.GateLog != nil {
		if err := r.GateLog.Flush(r.ProjectDir); err != nil {
			return fmt.Errorf("flushing gate log: %w", err)
		}
	}
	r.logger().Info("session end", zap.String("outcome", "completed"))
	ux.Success(r.Lifecycle.Len(), r.state.ProjectName)
	return nil
}

// runPhase starts a phase, runs its steps, gates it, and advances.
func (r *Runner) runPhase(ctx context.Context, info phase.Info) error {
	ux.Header(info.Title())
	start := time.Now()

	if err := r.update(func(s *state.ProjectState) error { return s.Start(info.ID) }); err != nil {
		return r.stop(fmt.Errorf("starting %s: %w", info.ID, err))
	}
	r.env.Phase = info
	r.logger().Info("phase start", zap.String("phase", string(info.ID)))

	if err := r.runSteps(ctx, info); err != nil {
		return err
	}

	overridden, err := r.gateLoop(ctx, info)
	if err != nil {
		return err
	}

	if err := r.update(func(s *state.ProjectState) error {
		s.Advance(info.ID)
		return nil
	}); err != nil {
		return r.stop(fmt.Errorf("advancing past %s: %w", info.ID, err))
	}
	ux.PhaseComplete(info, overridden, time.Since(start))
	return nil
}

// runSteps performs the phase work. Failures of external steps are reported
// and logged but never stop the phase; only the gate decides.
func (r *Runner) runSteps(ctx context.Context, info phase.Info) error {
	for _, step := range r.Workflow.Steps(info.ID) {
		if ctx.Err() != nil {
			return r.stop(ErrInterrupted)
		}
		if err := r.runStep(ctx, step); err != nil {
			return r.interrupted(ctx, err)
		}
	}
	return nil
}

// runStep returns an error only when the run itself must stop.
func (r *Runner) runStep(ctx context.Context, step config.Step) error {
	shown := dispatch.ExpandStep(step, r.env.Vars())
	if step.Condition != "" {
		if r.DryRun {
			ux.DryRun("%s runs only if: %s", step.Name, shown.Condition)
		} else if !r.Dispatcher.Condition(ctx, step.Condition, r.env) {
			ux.StepSkip(step.Name, "condition not met")
			return nil
		}
	}

	switch step.Type {
	case config.StepConfirm:
		yes, err := r.Prompter.Confirm(ctx, shown.Question, step.Default == "y")
		if err != nil {
			return err
		}
		if yes {
			return r.addNotes(shown)
		}
		return nil

	case config.StepAsk, config.StepChoose:
		def, ok := r.env.CustomVars[step.Var]
		if !ok || def == "" {
			def = shown.Default
		}
		var answer string
		var err error
		if step.Type == config.StepAsk {
			answer, err = r.Prompter.Ask(ctx, shown.Question, def)
		} else {
			answer, err = r.Prompter.Choose(ctx, shown.Question, step.Choices, def)
		}
		if err != nil {
			return err
		}
		r.env.Set(step.Var, answer)
		return nil
	}

	if step.Confirm != "" {
		yes, err := r.Prompter.Confirm(ctx, shown.Confirm, true)
		if err != nil {
			return err
		}
		if !yes {
			ux.StepSkip(step.Name, "declined")
			return nil
		}
	}

	if r.DryRun {
		r.describe(shown)
		return r.addNotes(shown)
	}

	if step.Type == config.StepScript {
		ux.Run(shown.Run)
	}
	res, err := r.Dispatcher.Dispatch(ctx, step, r.env)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ux.StepFail(step.Name, err)
		r.logger().Warn("step failed",
			zap.String("phase", string(r.env.Phase.ID)),
			zap.String("step", step.Name),
			zap.Error(err))
		return nil
	}
	r.logger().Info("step done",
		zap.String("phase", string(r.env.Phase.ID)),
		zap.String("step", step.Name),
		zap.Bool("changed", res.Changed))

	switch step.Type {
	case config.StepFile, config.StepGitInit:
		rel := r.rel(res.Path)
		if res.Changed {
			ux.Created(rel)
		} else {
			ux.Found(rel)
		}
		if step.Pause != "" && res.Changed {
			if err := r.Prompter.Wait(ctx, shown.Pause); err != nil {
				return err
			}
		}
	}
	return r.addNotes(shown)
}

// describe prints what an expanded step would do.
func (r *Runner) describe(step config.Step) {
	switch step.Type {
	case config.StepScript:
		ux.DryRun("would run: %s", step.Run)
	case config.StepFile:
		ux.DryRun("would create %s", step.Path)
	case config.StepGitInit:
		ux.DryRun("would initialize a git repository in %s", r.ProjectDir)
	}
}

func (r *Runner) rel(path string) string {
	if rel, err := filepath.Rel(r.ProjectDir, path); err == nil {
		return rel
	}
	return path
}

// addNotes records an expanded step's notes on the current phase.
func (r *Runner) addNotes(step config.Step) error {
	if len(step.Notes) == 0 {
		return nil
	}
	id := r.env.Phase.ID
	var added []string
	err := r.update(func(s *state.ProjectState) error {
		added = added[:0]
		for _, n := range step.Notes {
			ok, err := s.AddNote(id, n)
			if err != nil {
				return err
			}
			if ok {
				added = append(added, n)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording notes: %w", err)
	}
	for _, note := range added {
		ux.NoteAdded(id, note)
	}
	return nil
}

// gateLoop evaluates the phase gate until it passes or the operator skips or
// quits. It reports whether the gate was overridden.
func (r *Runner) gateLoop(ctx context.Context, info phase.Info) (bool, error) {
	var next *phase.Info
	if id, ok := r.Lifecycle.Next(info.ID); ok {
		n, _ := r.Lifecycle.Info(id)
		next = &n
	}

	for {
		if ctx.Err() != nil {
			return false, r.stop(ErrInterrupted)
		}
		ux.Section("Gate Check: " + string(info.ID))
		if !r.DryRun {
			// Notes may have been added by another command during fix.
			fresh, err := r.Store.Load(r.ProjectDir)
			if err != nil {
				return false, r.stop(err)
			}
			r.state = fresh
		}
		res, err := r.Validator.Validate(info.ID, r.ProjectDir, r.state)
		if err != nil {
			return false, r.stop(err)
		}
		ux.GateReport(info, res, next)
		r.recordGate(info.ID, res, res.OK(), false)

		if res.OK() {
			if err := r.update(func(s *state.ProjectState) error { return s.Complete(info.ID) }); err != nil {
				return false, r.stop(fmt.Errorf("completing %s: %w", info.ID, err))
			}
			return false, nil
		}

		action, err := r.Prompter.Choose(ctx, "What would you like to do?", gateActions, ActionRetry)
		if err != nil {
			return false, r.interrupted(ctx, err)
		}
		switch action {
		case ActionRetry:
		case ActionFix:
			ux.Info("Fix the failing criteria, then press Enter to re-check.")
			if err := r.Prompter.Wait(ctx, "Press Enter when ready..."); err != nil {
				return false, r.interrupted(ctx, err)
			}
		case ActionSkip:
			ux.Warn("Skipping gate for %s (not recommended).", info.ID)
			r.recordGate(info.ID, res, false, true)
			if err := r.update(func(s *state.ProjectState) error { return s.Complete(info.ID) }); err != nil {
				return false, r.stop(fmt.Errorf("completing %s: %w", info.ID, err))
			}
			return true, nil
		case ActionQuit:
			return false, r.stop(ErrQuit)
		}
	}
}

// recordGate appends a gate evaluation or override to the gate log and the
// operator log.
func (r *Runner) recordGate(id phase.ID, res gate.Result, passed, skipped bool) {
	outcome := state.OutcomeFailed
	switch {
	case skipped:
		outcome = state.OutcomeSkipped
	case passed:
		outcome = state.OutcomePassed
	}
	if r.GateLog != nil {
		r.GateLog.Record(state.GateEntry{
			Session: r.session(),
			Phase:   id,
			Outcome: outcome,
			Passed:  res.Passed(),
			Failed:  res.Failed(),
		})
		if !r.DryRun {
			if err := r.GateLog.Flush(r.ProjectDir); err != nil {
				ux.Warn("failed to flush gate log: %v", err)
			}
		}
	}

	fields := []zap.Field{
		zap.String("phase", string(id)),
		zap.String("outcome", outcome),
		zap.Strings("failed", res.Failed()),
	}
	if skipped {
		r.logger().Warn("gate overridden", fields...)
		return
	}
	r.logger().Info("gate evaluated", fields...)
}

// load reads the state, initializing the project first when none exists.
func (r *Runner) load(ctx context.Context) error {
	s, err := r.Store.Load(r.ProjectDir)
	if err == nil {
		if r.DryRun {
			s = s.Clone()
		}
		r.state = s
		return nil
	}
	if !errors.Is(err, state.ErrNotFound) {
		return err
	}

	ux.Section("Project Initialization")
	name, err := r.Prompter.Ask(ctx, "Project name", filepath.Base(r.ProjectDir))
	if err != nil {
		return r.interrupted(ctx, err)
	}
	tmpl, err := r.Prompter.Choose(ctx, "Use a project template?", bootstrapTemplates, "none")
	if err != nil {
		return r.interrupted(ctx, err)
	}
	if tmpl == "none" {
		tmpl = ""
	}

	if r.DryRun {
		ux.DryRun("would initialize project %q in %s", name, r.ProjectDir)
		r.state = r.Store.New(name)
		return nil
	}
	res, err := scaffold.Init(r.Store, r.Lifecycle, scaffold.Options{
		ProjectName: name,
		OutputDir:   r.ProjectDir,
		Template:    tmpl,
	})
	if err != nil {
		return fmt.Errorf("initializing project: %w", err)
	}
	scaffold.Print(r.ProjectDir, res)
	r.state = res.State
	return nil
}

// initEnv builds the variable environment for steps.
func (r *Runner) initEnv() {
	r.env = &dispatch.Environment{
		ProjectDir:  r.ProjectDir,
		ProjectName: r.state.ProjectName,
	}
	if info, ok := r.Lifecycle.Info(r.state.CurrentPhase); ok {
		r.env.Phase = info
	}
	for k, v := range dispatch.ExpandConfigVars(r.Workflow.Vars, r.env.Vars()) {
		r.env.Set(k, v)
	}
}

// DryRunPrint prints the phase plan without executing anything.
func (r *Runner) DryRunPrint() {
	ux.Title("Dry run: %d phases", r.Lifecycle.Len())
	for _, info := range r.Lifecycle.All() {
		ux.Info("%d. %s (%s)", info.Order, info.Name, info.ID)
		for _, step := range r.Workflow.Steps(info.ID) {
			line := fmt.Sprintf("   - %s [%s]", step.Name, step.Type)
			if step.Description != "" {
				line += " " + step.Description
			}
			if step.Condition != "" {
				line += " (if " + step.Condition + ")"
			}
			ux.Dim("%s", line)
		}
		ux.Dim("   gate: %d criteria", len(r.Validator.Criteria(info.ID)))
	}
}
