package dispatch

import (
	"os"

	"github.com/jorge-barreto/sdlc/internal/config"
)

// ExpandVars substitutes $NAME and ${NAME} in template from vars, then from
// the process environment. Unknown names expand to "" and $$ yields a
// literal dollar sign.
func ExpandVars(template string, vars map[string]string) string {
	return os.Expand(template, func(key string) string {
		if key == "$" {
			return "$"
		}
		if v, ok := vars[key]; ok {
			return v
		}
		return os.Getenv(key)
	})
}

// ExpandStep returns a copy of step with every text field expanded. The
// orchestrator shows and records the copy; dispatchers receive the raw
// step and expand what they execute themselves.
func ExpandStep(step config.Step, vars map[string]string) config.Step {
	x := func(s string) string { return ExpandVars(s, vars) }
	out := step
	out.Confirm = x(step.Confirm)
	out.Condition = x(step.Condition)
	out.Run = x(step.Run)
	out.Path = x(step.Path)
	out.Content = x(step.Content)
	out.Pause = x(step.Pause)
	out.Question = x(step.Question)
	out.Default = x(step.Default)
	if step.Notes != nil {
		out.Notes = make([]string, len(step.Notes))
		for i, n := range step.Notes {
			out.Notes[i] = x(n)
		}
	}
	return out
}

// ExpandConfigVars resolves workflow vars top to bottom. A var sees the
// built-ins and every var declared above it. Built-ins are not returned.
func ExpandConfigVars(vars config.OrderedVars, builtins map[string]string) map[string]string {
	seen := make(map[string]string, len(builtins)+len(vars))
	for k, v := range builtins {
		seen[k] = v
	}
	out := make(map[string]string, len(vars))
	for _, v := range vars {
		seen[v.Key] = ExpandVars(v.Value, seen)
		out[v.Key] = seen[v.Key]
	}
	return out
}
