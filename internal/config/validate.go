package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jorge-barreto/sdlc/internal/phase"
)

var varNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// BuiltinVars are provided by the orchestrator and cannot be redeclared.
var BuiltinVars = []string{"PROJECT_DIR", "PROJECT_NAME", "PHASE", "SDLC_DIR"}

func isBuiltin(name string) bool {
	for _, b := range BuiltinVars {
		if b == name {
			return true
		}
	}
	return false
}

func validateCriteria(id phase.ID, list []Criterion) error {
	seen := make(map[string]bool, len(list))
	for i, c := range list {
		if strings.TrimSpace(c.Description) == "" {
			return fmt.Errorf("config: gates: phase %q: criterion %d: 'description' is required", id, i+1)
		}
		if seen[c.Description] {
			return fmt.Errorf("config: gates: phase %q: duplicate criterion %q", id, c.Description)
		}
		seen[c.Description] = true
	}
	return nil
}

// ValidateWorkflow checks every step for errors and sets defaults.
func ValidateWorkflow(w *Workflow) error {
	seenVars := make(map[string]bool)
	for _, v := range w.Vars {
		if v.Key == "" {
			return fmt.Errorf("config: vars: empty variable name")
		}
		if !varNameRe.MatchString(v.Key) {
			return fmt.Errorf("config: vars: %q is not a valid variable name (must match [A-Za-z_][A-Za-z0-9_]*)", v.Key)
		}
		if isBuiltin(v.Key) {
			return fmt.Errorf("config: vars: %q overrides a built-in variable", v.Key)
		}
		if seenVars[v.Key] {
			return fmt.Errorf("config: vars: duplicate variable %q", v.Key)
		}
		seenVars[v.Key] = true
	}

	for id, steps := range w.steps {
		if err := validateSteps(id, steps); err != nil {
			return err
		}
	}
	return nil
}

func validateSteps(id phase.ID, steps []Step) error {
	seen := make(map[string]bool)
	for i := range steps {
		s := &steps[i]

		if s.Name == "" {
			return fmt.Errorf("config: phase %q: step %d: 'name' is required", id, i+1)
		}
		if s.Type == "" {
			return fmt.Errorf("config: phase %q: step %q: 'type' is required", id, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("config: phase %q: duplicate step name %q", id, s.Name)
		}
		seen[s.Name] = true

		switch s.Type {
		case StepScript:
			if s.Run == "" {
				return fmt.Errorf("config: script step %q: 'run' is required", s.Name)
			}
			if s.Timeout < 0 {
				return fmt.Errorf("config: step %q: timeout must be >= 0", s.Name)
			}
			if s.Timeout == 0 {
				s.Timeout = 10
			}
		case StepFile:
			if s.Path == "" {
				return fmt.Errorf("config: file step %q: 'path' is required", s.Name)
			}
			if err := CheckRelPath(s.Path); err != nil {
				return fmt.Errorf("config: file step %q: %w", s.Name, err)
			}
		case StepConfirm:
			if s.Question == "" {
				return fmt.Errorf("config: confirm step %q: 'question' is required", s.Name)
			}
			if len(s.Notes) == 0 {
				return fmt.Errorf("config: confirm step %q: at least one note is required", s.Name)
			}
			switch strings.ToLower(s.Default) {
			case "y", "yes":
				s.Default = "y"
			case "", "n", "no":
				s.Default = "n"
			default:
				return fmt.Errorf("config: confirm step %q: default must be y or n", s.Name)
			}
		case StepAsk, StepChoose:
			if s.Question == "" {
				return fmt.Errorf("config: %s step %q: 'question' is required", s.Type, s.Name)
			}
			if !varNameRe.MatchString(s.Var) {
				return fmt.Errorf("config: %s step %q: 'var' must be a valid variable name", s.Type, s.Name)
			}
			if isBuiltin(s.Var) {
				return fmt.Errorf("config: %s step %q: %q overrides a built-in variable", s.Type, s.Name, s.Var)
			}
			if s.Type == StepChoose {
				if len(s.Choices) < 2 {
					return fmt.Errorf("config: choose step %q: at least two choices are required", s.Name)
				}
				if s.Default == "" {
					s.Default = s.Choices[0]
				}
				if !contains(s.Choices, s.Default) {
					return fmt.Errorf("config: choose step %q: default %q is not one of the choices", s.Name, s.Default)
				}
			}
		case StepGitInit:
		default:
			return fmt.Errorf("config: phase %q: step %q: unknown type %q (must be file, script, confirm, ask, choose, or git-init)", id, s.Name, s.Type)
		}

		if s.Confirm != "" && s.Type != StepFile && s.Type != StepScript && s.Type != StepGitInit {
			return fmt.Errorf("config: step %q: 'confirm' is only valid on file, script and git-init steps", s.Name)
		}
		if s.Timeout != 0 && s.Type != StepScript {
			return fmt.Errorf("config: step %q: 'timeout' is only valid on script steps", s.Name)
		}
		if s.Pause != "" && s.Type != StepFile {
			return fmt.Errorf("config: step %q: 'pause' is only valid on file steps", s.Name)
		}
		for _, n := range s.Notes {
			if strings.TrimSpace(n) == "" {
				return fmt.Errorf("config: step %q: notes must be non-empty", s.Name)
			}
		}
	}
	return nil
}

// CheckRelPath rejects paths that are absolute or escape the project
// directory.
func CheckRelPath(p string) error {
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return fmt.Errorf("path %q must be relative to the project directory", p)
	}
	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %q escapes the project directory", p)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
