package state

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jorge-barreto/sdlc/internal/phase"
)

// Gate outcomes recorded by the orchestrator.
const (
	OutcomePassed  = "passed"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// GateEntry records one gate evaluation or override.
type GateEntry struct {
	ID        string    `json:"id"`
	Session   string    `json:"session,omitempty"`
	Phase     phase.ID  `json:"phase"`
	CheckedAt time.Time `json:"checked_at"`
	Outcome   string    `json:"outcome"`
	Passed    []string  `json:"passed"`
	Failed    []string  `json:"failed"`
}

// GateLog is the history of gate evaluations performed by the orchestrator.
// Read-only commands load it but never write it.
type GateLog struct {
	mu      sync.Mutex
	Entries []GateEntry `json:"entries"`
}

func gateLogPath(projectDir string) string {
	return filepath.Join(Dir(projectDir), "gate-log.json")
}

// LoadGateLog reads the gate log. A missing file yields an empty log.
func LoadGateLog(projectDir string) (*GateLog, error) {
	data, err := os.ReadFile(gateLogPath(projectDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &GateLog{}, nil
		}
		return nil, err
	}
	var g GateLog
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, &CorruptError{Path: gateLogPath(projectDir), Err: err}
	}
	return &g, nil
}

// Record appends an entry, filling in its id and timestamp.
func (g *GateLog) Record(e GateEntry) GateEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CheckedAt.IsZero() {
		e.CheckedAt = now()
	}
	if e.Passed == nil {
		e.Passed = []string{}
	}
	if e.Failed == nil {
		e.Failed = []string{}
	}
	g.Entries = append(g.Entries, e)
	return e
}

// Latest returns the most recent entry for a phase.
func (g *GateLog) Latest(id phase.ID) (GateEntry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.Entries) - 1; i >= 0; i-- {
		if g.Entries[i].Phase == id {
			return g.Entries[i], true
		}
	}
	return GateEntry{}, false
}

// Flush writes the log to disk.
func (g *GateLog) Flush(projectDir string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return writeJSON(gateLogPath(projectDir), g)
}
