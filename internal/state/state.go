package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jorge-barreto/sdlc/internal/phase"
)

// DirName is the hidden per-project directory holding all tracking files.
const DirName = ".sdlc"

// Status is the persisted status of a phase. "blocked" is never persisted;
// it is derived for display from the gate log.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

var (
	ErrNotFound           = errors.New("no SDLC state found")
	ErrAlreadyInitialized = errors.New("SDLC state already initialized")
	ErrCorrupt            = errors.New("SDLC state is corrupted")
)

// CorruptError reports a state document that exists but cannot be used.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("%s is corrupted: %v (reinitialize with 'sdlc init --force')", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }

// PhaseRecord is the persisted progress of a single phase.
type PhaseRecord struct {
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	GatePassed  bool       `json:"gate_passed"`
	Notes       []string   `json:"notes"`
}

// ProjectState is the root state document for one project.
type ProjectState struct {
	ProjectName  string    `json:"project_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	CurrentPhase phase.ID  `json:"current_phase"`
	Phases       Phases    `json:"phases"`
}

// Phases maps phase ids to records and keeps lifecycle order when encoded.
type Phases struct {
	order   []phase.ID
	records map[phase.ID]*PhaseRecord
}

// Get returns the record for id, or nil.
func (p Phases) Get(id phase.ID) *PhaseRecord {
	return p.records[id]
}

// IDs returns the phase ids in document order.
func (p Phases) IDs() []phase.ID {
	out := make([]phase.ID, len(p.order))
	copy(out, p.order)
	return out
}

// Len returns the number of phases.
func (p Phases) Len() int {
	return len(p.order)
}

func (p Phases) index(id phase.ID) int {
	for i, o := range p.order {
		if o == id {
			return i
		}
	}
	return -1
}

func (p *Phases) set(id phase.ID, rec *PhaseRecord) {
	if p.records == nil {
		p.records = make(map[phase.ID]*PhaseRecord)
	}
	if _, ok := p.records[id]; !ok {
		p.order = append(p.order, id)
	}
	p.records[id] = rec
}

func (p Phases) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range p.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(id))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.records[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *Phases) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("phases: expected object")
	}
	*p = Phases{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("phases: expected string key")
		}
		var rec PhaseRecord
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("phases: %s: %w", key, err)
		}
		id := phase.ID(key)
		if p.Get(id) != nil {
			return fmt.Errorf("phases: duplicate phase %q", key)
		}
		p.set(id, &rec)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Dir returns the tracking directory for a project.
func Dir(projectDir string) string {
	return filepath.Join(projectDir, DirName)
}

// Path returns the state document path for a project.
func Path(projectDir string) string {
	return filepath.Join(Dir(projectDir), "state.json")
}

// Exists reports whether a state document is present.
func Exists(projectDir string) bool {
	_, err := os.Stat(Path(projectDir))
	return err == nil
}

// Store reads and writes state documents for a fixed lifecycle.
type Store struct {
	lifecycle *phase.Lifecycle
}

// NewStore returns a store validating documents against lc.
func NewStore(lc *phase.Lifecycle) *Store {
	return &Store{lifecycle: lc}
}

// New builds a fresh state with every phase pending.
func (st *Store) New(projectName string) *ProjectState {
	ts := now()
	s := &ProjectState{
		ProjectName:  projectName,
		CreatedAt:    ts,
		UpdatedAt:    ts,
		CurrentPhase: st.lifecycle.First(),
	}
	for _, id := range st.lifecycle.IDs() {
		s.Phases.set(id, &PhaseRecord{Status: StatusPending, Notes: []string{}})
	}
	return s
}

// Load reads the state document. It returns an error wrapping ErrNotFound if
// the document is absent and a *CorruptError if it cannot be parsed or fails
// structural validation.
func (st *Store) Load(projectDir string) (*ProjectState, error) {
	path := Path(projectDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s (run 'sdlc init' first)", ErrNotFound, path)
		}
		return nil, err
	}
	var s ProjectState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	if err := st.validate(&s); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	return &s, nil
}

// validate checks the structural invariants and puts phases in lifecycle order.
func (st *Store) validate(s *ProjectState) error {
	if !st.lifecycle.Valid(s.CurrentPhase) {
		return fmt.Errorf("current_phase %q is not a known phase", s.CurrentPhase)
	}
	if s.Phases.Len() != st.lifecycle.Len() {
		return fmt.Errorf("expected %d phases, found %d", st.lifecycle.Len(), s.Phases.Len())
	}
	var ordered Phases
	for _, id := range st.lifecycle.IDs() {
		rec := s.Phases.Get(id)
		if rec == nil {
			return fmt.Errorf("phase %q is missing", id)
		}
		if !rec.Status.valid() {
			return fmt.Errorf("phase %q: unknown status %q", id, rec.Status)
		}
		if rec.Notes == nil {
			rec.Notes = []string{}
		}
		seen := make(map[string]bool, len(rec.Notes))
		for _, n := range rec.Notes {
			if seen[n] {
				return fmt.Errorf("phase %q: duplicate note %q", id, n)
			}
			seen[n] = true
		}
		ordered.set(id, rec)
	}
	s.Phases = ordered
	return nil
}

// Save stamps UpdatedAt and atomically replaces the state document.
func (st *Store) Save(projectDir string, s *ProjectState) error {
	s.UpdatedAt = now()
	return writeJSON(Path(projectDir), s)
}

// Initialize creates and persists a fresh state. Without force it fails with
// ErrAlreadyInitialized when a document exists; with force the old document
// and gate log are deleted first and all history is lost.
func (st *Store) Initialize(projectDir, projectName string, force bool) (*ProjectState, error) {
	if Exists(projectDir) {
		if !force {
			return nil, fmt.Errorf("%w in %s (use --force to reinitialize)", ErrAlreadyInitialized, projectDir)
		}
		if err := Remove(projectDir); err != nil {
			return nil, err
		}
	}
	s := st.New(projectName)
	if err := st.Save(projectDir, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Update loads the freshest document, applies fn, and saves the result.
// Nothing is written if fn returns an error.
func (st *Store) Update(projectDir string, fn func(*ProjectState) error) (*ProjectState, error) {
	s, err := st.Load(projectDir)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := st.Save(projectDir, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Remove deletes the state document and gate log.
func Remove(projectDir string) error {
	for _, p := range []string{Path(projectDir), gateLogPath(projectDir)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}
