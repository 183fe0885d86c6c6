package state

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jorge-barreto/sdlc/internal/phase"
)

func newTestStore() *Store {
	return NewStore(phase.Default())
}

// freezeTime makes now() return a controllable clock for the test.
func freezeTime(t *testing.T, start time.Time) *time.Time {
	t.Helper()
	current := start
	orig := now
	now = func() time.Time { return current }
	t.Cleanup(func() { now = orig })
	return &current
}

func TestInitialize_FreshProject(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore()
	if _, err := st.Initialize(dir, "Demo", false); err != nil {
		t.Fatal(err)
	}
	s, err := st.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s.ProjectName != "Demo" {
		t.Fatalf("ProjectName = %q", s.ProjectName)
	}
	if s.CurrentPhase != phase.Requirements {
		t.Fatalf("CurrentPhase = %q", s.CurrentPhase)
	}
	if s.Phases.Len() != 7 {
		t.Fatalf("phases = %d, want 7", s.Phases.Len())
	}
	for _, id := range s.Phases.IDs() {
		rec := s.Phases.Get(id)
		if rec.Status != StatusPending {
			t.Fatalf("phase %s status = %q", id, rec.Status)
		}
		if rec.GatePassed || rec.StartedAt != nil || rec.CompletedAt != nil || len(rec.Notes) != 0 {
			t.Fatalf("phase %s not pristine: %+v", id, rec)
		}
	}
}

func TestInitialize_AlreadyInitialized(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore()
	if _, err := st.Initialize(dir, "Demo", false); err != nil {
		t.Fatal(err)
	}
	_, err := st.Initialize(dir, "Demo", false)
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestInitialize_ForceDiscardsHistory(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore()
	if _, err := st.Initialize(dir, "Old", false); err != nil {
		t.Fatal(err)
	}
	_, err := st.Update(dir, func(s *ProjectState) error {
		if err := s.Start(phase.Requirements); err != nil {
			return err
		}
		_, err := s.AddNote(phase.Requirements, "Stakeholder sign-off recorded for requirements")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := st.Initialize(dir, "New", true); err != nil {
		t.Fatal(err)
	}
	s, err := st.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s.ProjectName != "New" || s.CurrentPhase != phase.Requirements {
		t.Fatalf("unexpected state after force: %+v", s)
	}
	rec := s.Phases.Get(phase.Requirements)
	if rec.Status != StatusPending || len(rec.Notes) != 0 || rec.StartedAt != nil {
		t.Fatalf("history survived force reinit: %+v", rec)
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := newTestStore().Load(t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoad_CorruptBytes(t *testing.T) {
	dir := t.TempDir()
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(Path(dir), []byte("\x00not json{"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := newTestStore().Load(dir)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	var ce *CorruptError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CorruptError, got %T", err)
	}
	if !strings.Contains(err.Error(), "--force") {
		t.Fatalf("missing remediation hint: %v", err)
	}
}

func TestLoad_StructurallyInvalid(t *testing.T) {
	cases := map[string]func(m map[string]any){
		"unknown current phase": func(m map[string]any) { m["current_phase"] = "qa" },
		"missing phase": func(m map[string]any) {
			delete(m["phases"].(map[string]any), "uat")
		},
		"extra phase": func(m map[string]any) {
			m["phases"].(map[string]any)["extra"] = map[string]any{"status": "pending"}
		},
		"bad status": func(m map[string]any) {
			m["phases"].(map[string]any)["cicd"].(map[string]any)["status"] = "blocked"
		},
		"duplicate notes": func(m map[string]any) {
			m["phases"].(map[string]any)["cicd"].(map[string]any)["notes"] = []string{"a", "a"}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			st := newTestStore()
			if _, err := st.Initialize(dir, "Demo", false); err != nil {
				t.Fatal(err)
			}
			data, err := os.ReadFile(Path(dir))
			if err != nil {
				t.Fatal(err)
			}
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatal(err)
			}
			mutate(m)
			data, _ = json.Marshal(m)
			if err := os.WriteFile(Path(dir), data, 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := st.Load(dir); !errors.Is(err, ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	clock := freezeTime(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	dir := t.TempDir()
	st := newTestStore()
	original := st.New("Demo")
	if err := original.Start(phase.Requirements); err != nil {
		t.Fatal(err)
	}
	if _, err := original.AddNote(phase.Requirements, "kickoff held"); err != nil {
		t.Fatal(err)
	}

	*clock = clock.Add(time.Hour)
	if err := st.Save(dir, original); err != nil {
		t.Fatal(err)
	}
	loaded, err := st.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.UpdatedAt.Equal(*clock) {
		t.Fatalf("UpdatedAt = %v, want %v", loaded.UpdatedAt, *clock)
	}
	if loaded.ProjectName != original.ProjectName || loaded.CurrentPhase != original.CurrentPhase {
		t.Fatalf("header mismatch: %+v", loaded)
	}
	if !loaded.CreatedAt.Equal(original.CreatedAt) {
		t.Fatalf("CreatedAt = %v, want %v", loaded.CreatedAt, original.CreatedAt)
	}
	for _, id := range original.Phases.IDs() {
		a, b := original.Phases.Get(id), loaded.Phases.Get(id)
		if a.Status != b.Status || a.GatePassed != b.GatePassed || strings.Join(a.Notes, "|") != strings.Join(b.Notes, "|") {
			t.Fatalf("phase %s: saved %+v, loaded %+v", id, a, b)
		}
		if (a.StartedAt == nil) != (b.StartedAt == nil) {
			t.Fatalf("phase %s: StartedAt presence differs", id)
		}
		if a.StartedAt != nil && !a.StartedAt.Equal(*b.StartedAt) {
			t.Fatalf("phase %s: StartedAt %v vs %v", id, a.StartedAt, b.StartedAt)
		}
	}
}

func TestSave_PhasesInLifecycleOrder(t *testing.T) {
	dir := t.TempDir()
	if _, err := newTestStore().Initialize(dir, "Demo", false); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	last := -1
	for _, id := range phase.Default().IDs() {
		i := strings.Index(text, `"`+string(id)+`": {`)
		if i < 0 {
			t.Fatalf("phase %s missing from document", id)
		}
		if i < last {
			t.Fatalf("phase %s out of order", id)
		}
		last = i
	}
	if !strings.Contains(text, `"notes": []`) {
		t.Fatal("empty notes should encode as []")
	}
	if !strings.Contains(text, `"started_at": null`) {
		t.Fatal("unset timestamps should encode as null")
	}
}

func TestUpdate_ErrorLeavesDocumentUntouched(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore()
	if _, err := st.Initialize(dir, "Demo", false); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(Path(dir))
	_, err := st.Update(dir, func(s *ProjectState) error {
		s.ProjectName = "changed"
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	after, _ := os.ReadFile(Path(dir))
	if string(before) != string(after) {
		t.Fatal("document changed despite failing update")
	}
}

func TestLoad_AcceptsForeignTimestampFormat(t *testing.T) {
	dir := t.TempDir()
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	doc := `{
  "project_name": "Legacy",
  "created_at": "2025-03-01T10:00:00.123456+00:00",
  "updated_at": "2025-03-01T10:00:00.123456+00:00",
  "current_phase": "development",
  "phases": {
    "requirements": {"status": "completed", "started_at": "2025-03-01T10:00:00+00:00", "completed_at": "2025-03-02T10:00:00+00:00", "gate_passed": true, "notes": ["Stakeholder sign-off recorded for requirements"]},
    "development": {"status": "in_progress", "started_at": null, "completed_at": null, "gate_passed": false, "notes": []},
    "cicd": {"status": "pending", "started_at": null, "completed_at": null, "gate_passed": false, "notes": []},
    "testing": {"status": "pending", "started_at": null, "completed_at": null, "gate_passed": false, "notes": []},
    "uat": {"status": "pending", "started_at": null, "completed_at": null, "gate_passed": false},
    "deployment": {"status": "pending", "started_at": null, "completed_at": null, "gate_passed": false, "notes": []},
    "monitoring": {"status": "pending", "started_at": null, "completed_at": null, "gate_passed": false, "notes": []}
  }
}`
	if err := os.WriteFile(Path(dir), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := newTestStore().Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Done(phase.Requirements) {
		t.Fatal("requirements should be done")
	}
	if s.Phases.Get(phase.UAT).Notes == nil {
		t.Fatal("missing notes should load as empty, not nil")
	}
}
