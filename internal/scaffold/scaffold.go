package scaffold

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jorge-barreto/sdlc/internal/phase"
	"github.com/jorge-barreto/sdlc/internal/state"
	"github.com/jorge-barreto/sdlc/internal/ux"
)

//go:embed all:templates
var templateFS embed.FS

// templateAliases maps every accepted --template value to an embedded
// template directory.
var templateAliases = map[string]string{
	"react-vite":            "react-typescript-vite",
	"react-typescript-vite": "react-typescript-vite",
	"fastapi":               "python-fastapi",
	"python-fastapi":        "python-fastapi",
	"nextjs":                "nextjs-typescript",
	"nextjs-typescript":     "nextjs-typescript",
}

// Templates returns the accepted template ids, sorted.
func Templates() []string {
	ids := make([]string, 0, len(templateAliases))
	for id := range templateAliases {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveTemplate maps a template id or alias to its embedded directory.
func ResolveTemplate(id string) (string, error) {
	name, ok := templateAliases[id]
	if !ok {
		return "", fmt.Errorf("unknown template %q (available: %s)", id, strings.Join(Templates(), ", "))
	}
	return name, nil
}

// Options controls project initialization.
type Options struct {
	ProjectName string
	OutputDir   string
	// Template is optional; empty means no project files are written.
	Template string
	Force    bool
}

// Result lists what Init wrote.
type Result struct {
	State      *state.ProjectState
	Checklists []string
	Copied     []string
	Skipped    []string
}

// Init creates the tracking directory, the initial state document, one
// checklist per phase, and optionally the files of a project template.
func Init(store *state.Store, lc *phase.Lifecycle, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.ProjectName) == "" {
		return nil, fmt.Errorf("project name must not be empty")
	}
	var tmpl string
	if opts.Template != "" {
		var err error
		if tmpl, err = ResolveTemplate(opts.Template); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", opts.OutputDir, err)
	}

	st, err := store.Initialize(opts.OutputDir, opts.ProjectName, opts.Force)
	if err != nil {
		return nil, err
	}
	if err := state.EnsureDir(opts.OutputDir); err != nil {
		return nil, err
	}
	res := &Result{State: st}

	for _, info := range lc.All() {
		p := state.ChecklistPath(opts.OutputDir, info)
		if err := os.WriteFile(p, []byte(Checklist(info)), 0644); err != nil {
			return nil, fmt.Errorf("writing checklist: %w", err)
		}
		res.Checklists = append(res.Checklists, p)
	}

	if tmpl != "" {
		if err := copyTemplate(tmpl, opts.OutputDir, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// copyTemplate copies each top-level entry of the template unless an entry
// with the same name already exists in dest.
func copyTemplate(name, dest string, res *Result) error {
	root := path.Join("templates", name)
	entries, err := fs.ReadDir(templateFS, root)
	if err != nil {
		return fmt.Errorf("reading template %s: %w", name, err)
	}
	for _, e := range entries {
		target := filepath.Join(dest, e.Name())
		if _, err := os.Lstat(target); err == nil {
			res.Skipped = append(res.Skipped, e.Name())
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := copyEntry(path.Join(root, e.Name()), target); err != nil {
			return fmt.Errorf("copying %s: %w", e.Name(), err)
		}
		res.Copied = append(res.Copied, e.Name())
	}
	return nil
}

func copyEntry(src, dest string) error {
	return fs.WalkDir(templateFS, src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, src), "/")
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		data, err := templateFS.ReadFile(p)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0644)
	})
}

// Print reports the result of Init.
func Print(projectDir string, res *Result) {
	rel := func(p string) string {
		if r, err := filepath.Rel(projectDir, p); err == nil {
			return r
		}
		return p
	}
	ux.Created(rel(state.Path(projectDir)))
	for _, p := range res.Checklists {
		ux.Created(rel(p))
	}
	for _, name := range res.Copied {
		ux.Info("✓ Copied template: %s", name)
	}
	for _, name := range res.Skipped {
		ux.Dim("Skipping %s (already exists)", name)
	}
	ux.Title("SDLC initialized for '%s'", res.State.ProjectName)
	ux.Info("Current phase: %s", res.State.CurrentPhase)
	ux.Info("Next step: sdlc orchestrate")
}
