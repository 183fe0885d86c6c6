package dispatch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jorge-barreto/sdlc/internal/config"
)

// TargetPath resolves a file step's expanded path inside the project.
func TargetPath(step config.Step, env *Environment) (string, error) {
	rel := ExpandVars(step.Path, env.Vars())
	if err := config.CheckRelPath(rel); err != nil {
		return "", fmt.Errorf("step %q: %w", step.Name, err)
	}
	return filepath.Join(env.ProjectDir, rel), nil
}

// WriteFile creates a file step's target with its expanded content. An
// existing file is never overwritten.
func WriteFile(step config.Step, env *Environment) (*Result, error) {
	path, err := TargetPath(step, env)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return &Result{Path: path}, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("step %q: %w", step.Name, err)
	}
	content := ExpandVars(step.Content, env.Vars())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &Result{Path: path}, nil
		}
		return nil, fmt.Errorf("step %q: %w", step.Name, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return nil, fmt.Errorf("step %q: %w", step.Name, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &Result{Path: path, Changed: true}, nil
}
