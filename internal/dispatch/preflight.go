package dispatch

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/jorge-barreto/sdlc/internal/config"
)

// Missing names a script step whose leading command is not on PATH.
type Missing struct {
	Step   string
	Binary string
}

// shellWords are builtins and keywords that never resolve through PATH.
var shellWords = map[string]bool{
	"if": true, "for": true, "while": true, "case": true, "until": true,
	"cd": true, "echo": true, "export": true, "set": true, "test": true,
	"[": true, "[[": true, "true": true, "false": true, "exit": true,
	"source": true, ".": true, "printf": true, "read": true, "{": true, "(": true,
}

// Preflight fails when a step needs a shell and bash is missing. Script
// steps whose first command cannot be found are returned for the caller
// to warn about; they fail on their own when run.
func Preflight(steps []config.Step) ([]Missing, error) {
	shell := false
	for _, s := range steps {
		if s.Type == config.StepScript || s.Condition != "" {
			shell = true
			break
		}
	}
	if !shell {
		return nil, nil
	}
	if _, err := exec.LookPath("bash"); err != nil {
		return nil, fmt.Errorf("required binary not found in PATH: bash")
	}

	var missing []Missing
	seen := make(map[string]bool)
	for _, s := range steps {
		if s.Type != config.StepScript {
			continue
		}
		bin := leadingCommand(s.Run)
		if bin == "" || seen[bin] {
			continue
		}
		if _, err := exec.LookPath(bin); err != nil {
			seen[bin] = true
			missing = append(missing, Missing{Step: s.Name, Binary: bin})
		}
	}
	return missing, nil
}

// leadingCommand returns the first word of the first non-blank line of a
// script, or "" when it is a builtin, a path, an assignment or a variable.
func leadingCommand(run string) string {
	for _, line := range strings.Split(run, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		word := fields[0]
		if shellWords[word] || strings.ContainsAny(word, "/=$`\"'") {
			return ""
		}
		return word
	}
	return ""
}
