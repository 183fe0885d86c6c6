package dispatch

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jorge-barreto/sdlc/internal/config"
	"github.com/jorge-barreto/sdlc/internal/phase"
	"github.com/jorge-barreto/sdlc/internal/state"
)

// Environment holds the execution context for phase steps.
type Environment struct {
	ProjectDir  string
	ProjectName string
	Phase       phase.Info
	// CustomVars holds workflow vars and answers collected by ask and
	// choose steps.
	CustomVars  map[string]string
	filteredEnv []string // lazily populated base env
}

// Clone returns a deep copy of the Environment.
func (e *Environment) Clone() *Environment {
	cp := *e
	if e.CustomVars != nil {
		cp.CustomVars = make(map[string]string, len(e.CustomVars))
		for k, v := range e.CustomVars {
			cp.CustomVars[k] = v
		}
	}
	if e.filteredEnv != nil {
		cp.filteredEnv = append([]string(nil), e.filteredEnv...)
	}
	return &cp
}

// Set records a custom variable.
func (e *Environment) Set(key, value string) {
	if e.CustomVars == nil {
		e.CustomVars = make(map[string]string)
	}
	e.CustomVars[key] = value
}

// Vars returns the variable substitution map for step fields.
// Built-ins always win over custom vars.
func (e *Environment) Vars() map[string]string {
	m := make(map[string]string, 4+len(e.CustomVars))
	for k, v := range e.CustomVars {
		m[k] = v
	}
	m["PROJECT_DIR"] = e.ProjectDir
	m["PROJECT_NAME"] = e.ProjectName
	m["PHASE"] = string(e.Phase.ID)
	m["SDLC_DIR"] = state.Dir(e.ProjectDir)
	return m
}

// BuildEnv returns the environment for child processes: the inherited
// environment plus every variable under an SDLC_ prefix.
func BuildEnv(env *Environment) []string {
	if env.filteredEnv == nil {
		for _, kv := range os.Environ() {
			key := strings.SplitN(kv, "=", 2)[0]
			if strings.HasPrefix(key, "SDLC_") {
				continue
			}
			env.filteredEnv = append(env.filteredEnv, kv)
		}
	}
	vars := env.Vars()
	result := make([]string, len(env.filteredEnv), len(env.filteredEnv)+len(vars))
	copy(result, env.filteredEnv)
	for k, v := range vars {
		if k == "SDLC_DIR" {
			result = append(result, k+"="+v)
			continue
		}
		result = append(result, "SDLC_"+k+"="+v)
	}
	return result
}

// Result holds the outcome of a step.
type Result struct {
	ExitCode int
	Output   string
	// Path is the file or directory a file or git-init step acted on.
	Path string
	// Changed is false when the target already existed and was left alone.
	Changed bool
}

// StepError reports an external step that exited non-zero or timed out.
type StepError struct {
	Step     string
	ExitCode int
	TimedOut bool
	Err      error
}

func (e *StepError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("step %q timed out", e.Step)
	case e.Err != nil:
		return fmt.Sprintf("step %q: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("step %q exited with code %d", e.Step, e.ExitCode)
}

func (e *StepError) Unwrap() error { return e.Err }

// Dispatcher runs the steps that touch the outside world. Tests can
// substitute a mock.
type Dispatcher interface {
	Dispatch(ctx context.Context, step config.Step, env *Environment) (*Result, error)
	Condition(ctx context.Context, condition string, env *Environment) bool
}

// DefaultDispatcher routes steps to the real executors.
type DefaultDispatcher struct{}

func (d *DefaultDispatcher) Dispatch(ctx context.Context, step config.Step, env *Environment) (*Result, error) {
	return Dispatch(ctx, step, env)
}

func (d *DefaultDispatcher) Condition(ctx context.Context, condition string, env *Environment) bool {
	return EvalCondition(ctx, condition, env)
}

// Dispatch routes a step to the appropriate executor. Interactive step
// types are handled by the orchestrator and are rejected here.
func Dispatch(ctx context.Context, step config.Step, env *Environment) (*Result, error) {
	switch step.Type {
	case config.StepScript:
		return RunScript(ctx, step, env)
	case config.StepFile:
		return WriteFile(step, env)
	case config.StepGitInit:
		return InitRepo(env.ProjectDir)
	default:
		return nil, fmt.Errorf("step %q: type %q is not dispatchable", step.Name, step.Type)
	}
}
