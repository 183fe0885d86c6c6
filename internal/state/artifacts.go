package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/jorge-barreto/sdlc/internal/phase"
)

// EnsureDir creates the tracking directory structure.
func EnsureDir(projectDir string) error {
	dirs := []string{
		Dir(projectDir),
		filepath.Join(Dir(projectDir), "phases"),
		filepath.Join(Dir(projectDir), "logs"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return nil
}

// ChecklistPath returns the checklist document for a phase, e.g.
// .sdlc/phases/03-cicd.md.
func ChecklistPath(projectDir string, info phase.Info) string {
	return filepath.Join(Dir(projectDir), "phases", fmt.Sprintf("%02d-%s.md", info.Order, info.ID))
}

// LogPath returns the step output log for a phase.
func LogPath(projectDir string, info phase.Info) string {
	return filepath.Join(Dir(projectDir), "logs", fmt.Sprintf("%02d-%s.log", info.Order, info.ID))
}

// OperatorLogPath returns the structured operator log.
func OperatorLogPath(projectDir string) string {
	return filepath.Join(Dir(projectDir), "logs", "sdlc.log")
}

var (
	checkboxRe = regexp.MustCompile(`- \[[ xX]\]`)
	checkedRe  = regexp.MustCompile(`- \[[xX]\]`)
)

// CountChecklist returns the checked and total checkbox markers in a
// checklist. A missing file counts as 0/0.
func CountChecklist(path string) (checked, total int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	total = len(checkboxRe.FindAll(data, -1))
	checked = len(checkedRe.FindAll(data, -1))
	return checked, total, nil
}
