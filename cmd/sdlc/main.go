package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	cli "github.com/urfave/cli/v3"

	"github.com/jorge-barreto/sdlc/internal/runner"
)

// errBlocked signals exit code 1 after output was already rendered.
var errBlocked = errors.New("blocked")

func main() {
	app := &cli.Command{
		Name:        "sdlc",
		Usage:       "Phase-gated software delivery lifecycle tracker",
		Description: "Run 'sdlc docs' for documentation on phases, gates, state, and the orchestrator.",
		Commands: []*cli.Command{
			initCmd(),
			gateCmd(),
			orchestrateCmd(),
			healthCmd(),
			noteCmd(),
			doctorCmd(),
			docsCmd(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	err := app.Run(ctx, os.Args)
	interrupted := ctx.Err() != nil
	stop()
	os.Exit(exitCode(err, interrupted))
}

// exitCode maps a command error to the process exit status, printing it
// when it has not been reported yet.
func exitCode(err error, interrupted bool) int {
	switch {
	case errors.Is(err, runner.ErrInterrupted), interrupted:
		return 130
	case err == nil, errors.Is(err, runner.ErrQuit):
		return 0
	case errors.Is(err, errBlocked):
		return 1
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed).Sprint("error:"), err)
	return 1
}

func projectDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "project-dir",
		Usage:   "Project directory (default: current directory)",
		Sources: cli.EnvVars("SDLC_PROJECT_DIR"),
	}
}

// projectDir resolves --project-dir to an absolute path.
func projectDir(cmd *cli.Command) (string, error) {
	dir := cmd.String("project-dir")
	if dir == "" {
		return os.Getwd()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project directory %s is not a directory", abs)
	}
	return abs, nil
}
