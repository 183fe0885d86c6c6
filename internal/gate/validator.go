package gate

import (
	"errors"
	"fmt"

	"github.com/jorge-barreto/sdlc/internal/config"
	"github.com/jorge-barreto/sdlc/internal/phase"
	"github.com/jorge-barreto/sdlc/internal/state"
)

// Outcome is the verdict for one criterion. Err is a *ConfigError when the
// criterion could not be evaluated; such criteria always fail.
type Outcome struct {
	Description string
	Passed      bool
	Err         error
}

// Result is the verdict for one phase gate, in registry order.
type Result struct {
	Phase    phase.ID
	Outcomes []Outcome
}

// Passed returns the descriptions of passing criteria.
func (r Result) Passed() []string {
	return r.descriptions(true)
}

// Failed returns the descriptions of failing criteria.
func (r Result) Failed() []string {
	return r.descriptions(false)
}

func (r Result) descriptions(passed bool) []string {
	out := []string{}
	for _, o := range r.Outcomes {
		if o.Passed == passed {
			out = append(out, o.Description)
		}
	}
	return out
}

// OK reports whether the gate passes: no criterion failed.
func (r Result) OK() bool {
	for _, o := range r.Outcomes {
		if !o.Passed {
			return false
		}
	}
	return true
}

// ConfigErrors returns the configuration problems found during evaluation.
func (r Result) ConfigErrors() []*ConfigError {
	var out []*ConfigError
	for _, o := range r.Outcomes {
		var ce *ConfigError
		if errors.As(o.Err, &ce) {
			out = append(out, ce)
		}
	}
	return out
}

// Validator evaluates phase gates. It never writes to the filesystem or the
// state it is given, so it is safe to use concurrently.
type Validator struct {
	registry *config.Registry
}

// NewValidator returns a validator over reg.
func NewValidator(reg *config.Registry) *Validator {
	return &Validator{registry: reg}
}

// Criteria returns the criteria of phase id in evaluation order.
func (v *Validator) Criteria(id phase.ID) []config.Criterion {
	return v.registry.Criteria(id)
}

// Validate evaluates every criterion of phase id in registry order. st
// supplies notes for note checks; a nil st fails them.
func (v *Validator) Validate(id phase.ID, projectDir string, st *state.ProjectState) (Result, error) {
	lc := v.registry.Lifecycle()
	if !lc.Valid(id) {
		return Result{}, fmt.Errorf("unknown phase %q (must be one of: %s)", id, lc)
	}
	res := Result{Phase: id, Outcomes: []Outcome{}}
	for _, c := range v.registry.Criteria(id) {
		o := Outcome{Description: c.Description}
		check, err := Compile(id, c, lc)
		if err != nil {
			o.Err = err
		} else {
			o.Passed = check.Eval(projectDir, st)
		}
		res.Outcomes = append(res.Outcomes, o)
	}
	return res, nil
}

// ValidateAll evaluates every phase in lifecycle order.
func (v *Validator) ValidateAll(projectDir string, st *state.ProjectState) []Result {
	lc := v.registry.Lifecycle()
	out := make([]Result, 0, lc.Len())
	for _, id := range lc.IDs() {
		res, _ := v.Validate(id, projectDir, st)
		out = append(out, res)
	}
	return out
}

// Lint compiles every criterion of reg and returns the configuration errors.
func Lint(reg *config.Registry) []*ConfigError {
	lc := reg.Lifecycle()
	var out []*ConfigError
	for _, id := range lc.IDs() {
		for _, c := range reg.Criteria(id) {
			if _, err := Compile(id, c, lc); err != nil {
				var ce *ConfigError
				if errors.As(err, &ce) {
					out = append(out, ce)
				}
			}
		}
	}
	return out
}
