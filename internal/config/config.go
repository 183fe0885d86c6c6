package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jorge-barreto/sdlc/internal/phase"
)

//go:embed gates.yaml
var defaultGates []byte

//go:embed workflow.yaml
var defaultWorkflow []byte

// Override file names inside the project's .sdlc directory.
const (
	GatesFile    = "gates.yaml"
	WorkflowFile = "workflow.yaml"
)

// Criterion is one exit condition of a phase gate.
type Criterion struct {
	Description string   `yaml:"description"`
	Check       string   `yaml:"check"`
	Args        []string `yaml:"args"`
}

type registryFile struct {
	Phases map[string][]Criterion `yaml:"phases"`
}

// Registry maps phases to their ordered gate criteria. It is immutable once
// loaded.
type Registry struct {
	lifecycle *phase.Lifecycle
	criteria  map[phase.ID][]Criterion
	source    string
}

// Criteria returns a copy of the criteria for id, in declaration order. A
// phase without criteria yields an empty slice.
func (r *Registry) Criteria(id phase.ID) []Criterion {
	src := r.criteria[id]
	out := make([]Criterion, len(src))
	for i, c := range src {
		c.Args = append([]string(nil), c.Args...)
		out[i] = c
	}
	return out
}

// Lifecycle returns the phase ordering the registry was validated against.
func (r *Registry) Lifecycle() *phase.Lifecycle {
	return r.lifecycle
}

// Source describes where the criteria came from.
func (r *Registry) Source() string {
	return r.source
}

// DefaultRegistry returns the built-in criteria.
func DefaultRegistry(lc *phase.Lifecycle) (*Registry, error) {
	return ParseRegistry(defaultGates, lc)
}

// ParseRegistry decodes and validates a gate criteria document.
func ParseRegistry(data []byte, lc *phase.Lifecycle) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: gates: %w", err)
	}
	r := &Registry{lifecycle: lc, criteria: make(map[phase.ID][]Criterion), source: "built-in"}
	for key, list := range f.Phases {
		id := phase.ID(key)
		if !lc.Valid(id) {
			return nil, fmt.Errorf("config: gates: unknown phase %q (must be one of: %s)", key, lc)
		}
		if err := validateCriteria(id, list); err != nil {
			return nil, err
		}
		r.criteria[id] = list
	}
	return r, nil
}

// LoadRegistry returns the built-in criteria with any phases listed in the
// project's .sdlc/gates.yaml replacing their built-in counterparts.
func LoadRegistry(projectDir string, lc *phase.Lifecycle) (*Registry, error) {
	r, err := DefaultRegistry(lc)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(projectDir, ".sdlc", GatesFile)
	data, err := readOptional(path)
	if err != nil || data == nil {
		return r, err
	}
	override, err := ParseRegistry(data, lc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for id, list := range override.criteria {
		r.criteria[id] = list
	}
	r.source = path
	return r, nil
}

// VarEntry is a single user-declared variable.
type VarEntry struct {
	Key   string
	Value string
}

// OrderedVars keeps user variables in declaration order so later values can
// reference earlier ones.
type OrderedVars []VarEntry

func (v *OrderedVars) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("vars must be a mapping")
	}
	out := make(OrderedVars, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key, val string
		if err := node.Content[i].Decode(&key); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&val); err != nil {
			return fmt.Errorf("vars: %s: %w", key, err)
		}
		out = append(out, VarEntry{Key: key, Value: val})
	}
	*v = out
	return nil
}

// Step types.
const (
	StepFile    = "file"
	StepScript  = "script"
	StepConfirm = "confirm"
	StepAsk     = "ask"
	StepChoose  = "choose"
	StepGitInit = "git-init"
)

// Step is one unit of phase work.
type Step struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Confirm     string   `yaml:"confirm"`
	Condition   string   `yaml:"condition"`
	Run         string   `yaml:"run"`
	Timeout     int      `yaml:"timeout"`
	Path        string   `yaml:"path"`
	Content     string   `yaml:"content"`
	Pause       string   `yaml:"pause"`
	Question    string   `yaml:"question"`
	Default     string   `yaml:"default"`
	Var         string   `yaml:"var"`
	Choices     []string `yaml:"choices"`
	Notes       []string `yaml:"notes"`
}

type workflowFile struct {
	Vars   OrderedVars       `yaml:"vars"`
	Phases map[string][]Step `yaml:"phases"`
}

// Workflow holds the steps performed for each phase before its gate.
type Workflow struct {
	Vars   OrderedVars
	steps  map[phase.ID][]Step
	source string
}

// Steps returns the steps for id. A phase without steps yields nil.
func (w *Workflow) Steps(id phase.ID) []Step {
	return w.steps[id]
}

// Source describes where the workflow came from.
func (w *Workflow) Source() string {
	return w.source
}

// AllSteps returns every step across the lifecycle, in lifecycle order.
func (w *Workflow) AllSteps(lc *phase.Lifecycle) []Step {
	var out []Step
	for _, id := range lc.IDs() {
		out = append(out, w.steps[id]...)
	}
	return out
}

// DefaultWorkflow returns the built-in phase work.
func DefaultWorkflow(lc *phase.Lifecycle) (*Workflow, error) {
	return ParseWorkflow(defaultWorkflow, lc)
}

// ParseWorkflow decodes and validates a workflow document.
func ParseWorkflow(data []byte, lc *phase.Lifecycle) (*Workflow, error) {
	var f workflowFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: workflow: %w", err)
	}
	w := &Workflow{Vars: f.Vars, steps: make(map[phase.ID][]Step), source: "built-in"}
	for key, steps := range f.Phases {
		id := phase.ID(key)
		if !lc.Valid(id) {
			return nil, fmt.Errorf("config: workflow: unknown phase %q (must be one of: %s)", key, lc)
		}
		w.steps[id] = steps
	}
	if err := ValidateWorkflow(w); err != nil {
		return nil, err
	}
	return w, nil
}

// LoadWorkflow returns the built-in workflow with any phases listed in the
// project's .sdlc/workflow.yaml replacing their built-in steps. Variables
// declared by the override are appended to the built-in ones.
func LoadWorkflow(projectDir string, lc *phase.Lifecycle) (*Workflow, error) {
	w, err := DefaultWorkflow(lc)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(projectDir, ".sdlc", WorkflowFile)
	data, err := readOptional(path)
	if err != nil || data == nil {
		return w, err
	}
	override, err := ParseWorkflow(data, lc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for id, steps := range override.steps {
		w.steps[id] = steps
	}
	w.Vars = append(w.Vars, override.Vars...)
	if err := ValidateWorkflow(w); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	w.source = path
	return w, nil
}

// readOptional returns nil data without error when path does not exist.
func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}
