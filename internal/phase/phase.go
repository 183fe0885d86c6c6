package phase

import (
	"fmt"
	"strings"
)

// ID identifies one lifecycle phase.
type ID string

const (
	Requirements ID = "requirements"
	Development  ID = "development"
	CICD         ID = "cicd"
	Testing      ID = "testing"
	UAT          ID = "uat"
	Deployment   ID = "deployment"
	Monitoring   ID = "monitoring"
)

// Info is the display metadata for a phase.
type Info struct {
	ID    ID
	Order int // 1-indexed
	Name  string
}

// Title returns the long header form, e.g. "Phase 3: CI/CD Pipeline".
func (i Info) Title() string {
	return fmt.Sprintf("Phase %d: %s", i.Order, i.Name)
}

// Lifecycle is the fixed, ordered set of phases. It is built once at startup
// and passed to every component that needs phase ordering.
type Lifecycle struct {
	phases []Info
	index  map[ID]int
}

// Default returns the seven-phase delivery lifecycle.
func Default() *Lifecycle {
	return newLifecycle([]Info{
		{ID: Requirements, Order: 1, Name: "Requirements & Planning"},
		{ID: Development, Order: 2, Name: "Development & Git"},
		{ID: CICD, Order: 3, Name: "CI/CD Pipeline"},
		{ID: Testing, Order: 4, Name: "QA Testing"},
		{ID: UAT, Order: 5, Name: "User Acceptance Testing"},
		{ID: Deployment, Order: 6, Name: "Production Deployment"},
		{ID: Monitoring, Order: 7, Name: "Monitoring & SRE"},
	})
}

func newLifecycle(phases []Info) *Lifecycle {
	l := &Lifecycle{
		phases: phases,
		index:  make(map[ID]int, len(phases)),
	}
	for i, p := range phases {
		l.index[p.ID] = i
	}
	return l
}

// IDs returns the phase ids in lifecycle order. The slice is a copy.
func (l *Lifecycle) IDs() []ID {
	ids := make([]ID, len(l.phases))
	for i, p := range l.phases {
		ids[i] = p.ID
	}
	return ids
}

// All returns the phase metadata in lifecycle order. The slice is a copy.
func (l *Lifecycle) All() []Info {
	out := make([]Info, len(l.phases))
	copy(out, l.phases)
	return out
}

// Len returns the number of phases.
func (l *Lifecycle) Len() int {
	return len(l.phases)
}

// First returns the first phase id.
func (l *Lifecycle) First() ID {
	return l.phases[0].ID
}

// Index returns the position of id, or -1 if it is not a known phase.
func (l *Lifecycle) Index(id ID) int {
	i, ok := l.index[id]
	if !ok {
		return -1
	}
	return i
}

// Valid reports whether id is a known phase.
func (l *Lifecycle) Valid(id ID) bool {
	_, ok := l.index[id]
	return ok
}

// Info returns metadata for id.
func (l *Lifecycle) Info(id ID) (Info, bool) {
	i, ok := l.index[id]
	if !ok {
		return Info{}, false
	}
	return l.phases[i], true
}

// Next returns the phase after id, or false if id is the last phase.
func (l *Lifecycle) Next(id ID) (ID, bool) {
	i := l.Index(id)
	if i < 0 || i+1 >= len(l.phases) {
		return "", false
	}
	return l.phases[i+1].ID, true
}

// Parse converts a string to a phase id, returning an error listing the
// valid ids if it is unknown.
func (l *Lifecycle) Parse(s string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid(id) {
		return "", fmt.Errorf("unknown phase %q (must be one of: %s)", s, l.String())
	}
	return id, nil
}

// String lists the phase ids, comma separated.
func (l *Lifecycle) String() string {
	parts := make([]string, len(l.phases))
	for i, p := range l.phases {
		parts[i] = string(p.ID)
	}
	return strings.Join(parts, ", ")
}
