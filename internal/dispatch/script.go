package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/jorge-barreto/sdlc/internal/config"
	"github.com/jorge-barreto/sdlc/internal/state"
)

// Stdout and Stderr receive live script output. Tests may replace them.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// RunScript executes a script step via bash in the project directory. Output
// is streamed, captured, and appended to the phase log. A non-zero exit or a
// timeout yields a *StepError alongside the result.
func RunScript(ctx context.Context, step config.Step, env *Environment) (*Result, error) {
	runCtx := ctx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(step.Timeout)*time.Minute)
		defer cancel()
	}

	expanded := ExpandVars(step.Run, env.Vars())

	cmd := exec.CommandContext(runCtx, "bash", "-c", expanded)
	cmd.Dir = env.ProjectDir
	cmd.Env = BuildEnv(env)

	logPath := state.LogPath(env.ProjectDir, env.Phase)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, err
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	defer logFile.Close()
	fmt.Fprintf(logFile, "=== %s %s: %s\n", time.Now().Format(time.RFC3339), step.Name, expanded)

	var captured bytes.Buffer
	cmd.Stdout = io.MultiWriter(Stdout, logFile, &captured)
	cmd.Stderr = io.MultiWriter(Stderr, logFile, &captured)

	code, err := exitCode(cmd.Run())
	result := &Result{ExitCode: code, Output: captured.String()}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return result, &StepError{Step: step.Name, ExitCode: code, TimedOut: true}
	}
	if err != nil {
		return nil, &StepError{Step: step.Name, Err: err}
	}
	if code != 0 {
		return result, &StepError{Step: step.Name, ExitCode: code}
	}
	return result, nil
}

// EvalCondition runs a shell command and returns true if it exits 0.
func EvalCondition(ctx context.Context, condition string, env *Environment) bool {
	cmd := exec.CommandContext(ctx, "bash", "-c", ExpandVars(condition, env.Vars()))
	cmd.Dir = env.ProjectDir
	cmd.Env = BuildEnv(env)
	return cmd.Run() == nil
}

// exitCode extracts an exit code from a command error.
// Returns (code, nil) for ExitError, (0, err) for other errors, (0, nil) for nil.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}
