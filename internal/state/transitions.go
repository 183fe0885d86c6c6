package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jorge-barreto/sdlc/internal/phase"
)

// ErrBackward is returned when a transition would move current_phase to an
// earlier phase without an explicit jump.
var ErrBackward = errors.New("cannot move current phase backwards")

func (s *ProjectState) record(id phase.ID) (*PhaseRecord, error) {
	rec := s.Phases.Get(id)
	if rec == nil {
		return nil, fmt.Errorf("unknown phase %q", id)
	}
	return rec, nil
}

// Start moves a phase from pending to in_progress and makes it current.
// Starting an in-progress phase again keeps its original started_at. A phase
// marked completed without a passed gate is reopened so it can be gated.
func (s *ProjectState) Start(id phase.ID) error {
	rec, err := s.record(id)
	if err != nil {
		return err
	}
	if rec.Status == StatusCompleted && rec.GatePassed {
		return fmt.Errorf("phase %q is already completed", id)
	}
	if s.Phases.index(id) < s.Phases.index(s.CurrentPhase) {
		return fmt.Errorf("%w: %q is before %q", ErrBackward, id, s.CurrentPhase)
	}
	if rec.StartedAt == nil {
		ts := now()
		rec.StartedAt = &ts
	}
	rec.Status = StatusInProgress
	rec.CompletedAt = nil
	s.CurrentPhase = id
	return nil
}

// Complete closes an in-progress phase and marks its gate as passed. Callers
// reach it either after a clean gate evaluation or an explicit override.
func (s *ProjectState) Complete(id phase.ID) error {
	rec, err := s.record(id)
	if err != nil {
		return err
	}
	if rec.Status != StatusInProgress {
		return fmt.Errorf("phase %q is %s, not in_progress", id, rec.Status)
	}
	ts := now()
	rec.Status = StatusCompleted
	rec.CompletedAt = &ts
	rec.GatePassed = true
	return nil
}

// Done reports whether a phase is completed with its gate passed.
func (s *ProjectState) Done(id phase.ID) bool {
	rec := s.Phases.Get(id)
	return rec != nil && rec.Status == StatusCompleted && rec.GatePassed
}

// Advance points current_phase at the phase after id. It returns false when id
// is the last phase, leaving current_phase unchanged.
func (s *ProjectState) Advance(id phase.ID) (phase.ID, bool) {
	i := s.Phases.index(id)
	if i < 0 || i+1 >= len(s.Phases.order) {
		return "", false
	}
	next := s.Phases.order[i+1]
	if s.Phases.index(next) > s.Phases.index(s.CurrentPhase) {
		s.CurrentPhase = next
	}
	return next, true
}

// JumpTo sets current_phase directly. It is the only way to move backwards.
func (s *ProjectState) JumpTo(id phase.ID) error {
	if _, err := s.record(id); err != nil {
		return err
	}
	s.CurrentPhase = id
	return nil
}

// AddNote appends note to the phase unless an identical note exists.
// It reports whether the note was added.
func (s *ProjectState) AddNote(id phase.ID, note string) (bool, error) {
	rec, err := s.record(id)
	if err != nil {
		return false, err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return false, fmt.Errorf("note must not be empty")
	}
	for _, n := range rec.Notes {
		if n == note {
			return false, nil
		}
	}
	rec.Notes = append(rec.Notes, note)
	return true, nil
}

// Clone returns a deep copy.
func (s *ProjectState) Clone() *ProjectState {
	cp := *s
	cp.Phases = Phases{}
	for _, id := range s.Phases.order {
		rec := *s.Phases.records[id]
		rec.Notes = append([]string{}, rec.Notes...)
		if rec.StartedAt != nil {
			t := *rec.StartedAt
			rec.StartedAt = &t
		}
		if rec.CompletedAt != nil {
			t := *rec.CompletedAt
			rec.CompletedAt = &t
		}
		cp.Phases.set(id, &rec)
	}
	return &cp
}
