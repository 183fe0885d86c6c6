package gate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jorge-barreto/sdlc/internal/config"
	"github.com/jorge-barreto/sdlc/internal/phase"
	"github.com/jorge-barreto/sdlc/internal/state"
)

// CheckKind enumerates the predicates a criterion can use.
type CheckKind int

const (
	KindInvalid CheckKind = iota
	FileExists
	DirExists
	GlobMatch
	AnyGlobMatch
	ContentContains
	NoteContains
)

var kindNames = map[CheckKind]string{
	FileExists:      "file-exists",
	DirExists:       "dir-exists",
	GlobMatch:       "glob-match",
	AnyGlobMatch:    "any-glob-match",
	ContentContains: "content-contains",
	NoteContains:    "note-contains",
}

func (k CheckKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "invalid"
}

// ParseKind maps a registry check name to its kind.
func ParseKind(name string) (CheckKind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindInvalid, false
}

// arity returns the allowed argument count; hi < 0 means unbounded.
func (k CheckKind) arity() (lo, hi int) {
	switch k {
	case FileExists, DirExists, GlobMatch:
		return 1, 1
	case AnyGlobMatch:
		return 1, -1
	case ContentContains, NoteContains:
		return 2, 2
	}
	return 0, 0
}

// ConfigError reports a criterion that cannot be evaluated as written.
type ConfigError struct {
	Phase     phase.ID
	Criterion string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("gate %s: criterion %q: %s", e.Phase, e.Criterion, e.Reason)
}

// Check is a criterion bound to a concrete checker.
type Check struct {
	Kind CheckKind
	Args []string
}

// Compile resolves a registry criterion into a Check, reporting unknown kinds,
// wrong argument counts, malformed patterns and unknown note phases.
func Compile(id phase.ID, c config.Criterion, lc *phase.Lifecycle) (Check, error) {
	fail := func(format string, a ...any) (Check, error) {
		return Check{}, &ConfigError{Phase: id, Criterion: c.Description, Reason: fmt.Sprintf(format, a...)}
	}
	if strings.TrimSpace(c.Check) == "" {
		return fail("no check named")
	}
	kind, ok := ParseKind(c.Check)
	if !ok {
		return fail("unknown check %q", c.Check)
	}
	lo, hi := kind.arity()
	if len(c.Args) < lo || (hi >= 0 && len(c.Args) > hi) {
		if hi == lo {
			return fail("%s takes %d argument(s), got %d", kind, lo, len(c.Args))
		}
		return fail("%s takes at least %d argument(s), got %d", kind, lo, len(c.Args))
	}
	switch kind {
	case GlobMatch, AnyGlobMatch:
		for _, p := range c.Args {
			if _, err := filepath.Match(p, ""); err != nil {
				return fail("bad pattern %q: %v", p, err)
			}
		}
	case NoteContains:
		if !lc.Valid(phase.ID(c.Args[0])) {
			return fail("note check names unknown phase %q", c.Args[0])
		}
	}
	return Check{Kind: kind, Args: c.Args}, nil
}

// Eval runs the check against a project directory and state snapshot.
func (c Check) Eval(projectDir string, st *state.ProjectState) bool {
	switch c.Kind {
	case FileExists:
		return fileExists(projectDir, c.Args[0])
	case DirExists:
		return dirExists(projectDir, c.Args[0])
	case GlobMatch:
		return globMatch(projectDir, c.Args[0])
	case AnyGlobMatch:
		for _, p := range c.Args {
			if globMatch(projectDir, p) {
				return true
			}
		}
		return false
	case ContentContains:
		return contentContains(projectDir, c.Args[0], c.Args[1])
	case NoteContains:
		return noteContains(st, phase.ID(c.Args[0]), c.Args[1])
	case KindInvalid:
		return false
	}
	panic(fmt.Sprintf("gate: unhandled check kind %d", c.Kind))
}

func fileExists(projectDir, rel string) bool {
	info, err := os.Stat(filepath.Join(projectDir, rel))
	return err == nil && info.Mode().IsRegular()
}

func dirExists(projectDir, rel string) bool {
	info, err := os.Stat(filepath.Join(projectDir, rel))
	return err == nil && info.IsDir()
}

// skipDirs are never searched by glob checks.
var skipDirs = map[string]bool{
	state.DirName:  true,
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
}

var errFound = errors.New("found")

// globMatch reports whether any entry below projectDir matches pattern. The
// pattern is compared against the trailing path segments of each entry, so
// "docs/slo*" matches docs/slo.md at any depth.
func globMatch(projectDir, pattern string) bool {
	want := strings.Split(filepath.ToSlash(filepath.Clean(pattern)), "/")
	err := filepath.WalkDir(projectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != projectDir {
				return fs.SkipDir
			}
			return nil
		}
		if path == projectDir {
			return nil
		}
		if d.IsDir() && skipDirs[d.Name()] {
			return fs.SkipDir
		}
		rel, err := filepath.Rel(projectDir, path)
		if err != nil {
			return nil
		}
		if matchTail(strings.Split(filepath.ToSlash(rel), "/"), want) {
			return errFound
		}
		return nil
	})
	return errors.Is(err, errFound)
}

func matchTail(segments, pattern []string) bool {
	if len(segments) < len(pattern) {
		return false
	}
	tail := segments[len(segments)-len(pattern):]
	for i, p := range pattern {
		ok, err := filepath.Match(p, tail[i])
		if err != nil || !ok {
			return false
		}
	}
	return true
}

func contentContains(projectDir, rel, substr string) bool {
	data, err := os.ReadFile(filepath.Join(projectDir, rel))
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), strings.ToLower(substr))
}

func noteContains(st *state.ProjectState, id phase.ID, substr string) bool {
	if st == nil {
		return false
	}
	rec := st.Phases.Get(id)
	if rec == nil {
		return false
	}
	needle := strings.ToLower(substr)
	for _, n := range rec.Notes {
		if strings.Contains(strings.ToLower(n), needle) {
			return true
		}
	}
	return false
}
