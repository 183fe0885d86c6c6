package health

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jorge-barreto/sdlc/internal/phase"
	"github.com/jorge-barreto/sdlc/internal/state"
)

var now = time.Now

const (
	checklistWeight = 0.7
	gateWeight      = 0.3
	completedFloor  = 90.0
)

// PhaseRow is one dashboard line.
type PhaseRow struct {
	Info       phase.Info
	Status     state.Status
	Blocked    bool
	Checked    int
	Total      int
	GatePassed bool
	Current    bool
	Score      float64
}

// Progress returns "checked/total", or "N/A" without a checklist.
func (r PhaseRow) Progress() string {
	if r.Total == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%d/%d", r.Checked, r.Total)
}

// Report is the health summary of one project.
type Report struct {
	ProjectName     string
	AgeDays         int
	CurrentPhase    phase.Info
	Rows            []PhaseRow
	Score           float64
	Recommendations []string
	Warnings        []string

	state *state.ProjectState
}

// Build computes the report from state, the phase checklists, and the gate
// log. A phase is blocked when it is in progress and its most recent gate
// evaluation failed.
func Build(projectDir string, lc *phase.Lifecycle, st *state.ProjectState, log *state.GateLog) (*Report, error) {
	current, ok := lc.Info(st.CurrentPhase)
	if !ok {
		return nil, fmt.Errorf("unknown current phase %q", st.CurrentPhase)
	}
	r := &Report{
		ProjectName:  st.ProjectName,
		CurrentPhase: current,
		state:        st,
	}
	if !st.CreatedAt.IsZero() {
		r.AgeDays = int(now().Sub(st.CreatedAt).Hours() / 24)
	}

	var total float64
	for _, info := range lc.All() {
		rec := st.Phases.Get(info.ID)
		if rec == nil {
			return nil, fmt.Errorf("state has no record for phase %q", info.ID)
		}
		checked, boxes, err := state.CountChecklist(state.ChecklistPath(projectDir, info))
		if err != nil {
			return nil, err
		}
		row := PhaseRow{
			Info:       info,
			Status:     rec.Status,
			Checked:    checked,
			Total:      boxes,
			GatePassed: rec.GatePassed,
			Current:    info.ID == st.CurrentPhase,
		}
		if rec.Status == state.StatusInProgress && log != nil {
			if e, ok := log.Latest(info.ID); ok && e.Outcome == state.OutcomeFailed {
				row.Blocked = true
			}
		}
		row.Score = phaseScore(row)
		total += row.Score
		r.Rows = append(r.Rows, row)
	}
	if len(r.Rows) > 0 {
		r.Score = total / float64(len(r.Rows))
	}
	r.recommend(lc)
	return r, nil
}

func phaseScore(row PhaseRow) float64 {
	var pct, gate float64
	if row.Total > 0 {
		pct = float64(row.Checked) / float64(row.Total)
	}
	if row.GatePassed {
		gate = 1
	}
	score := (pct*checklistWeight + gate*gateWeight) * 100
	if row.Status == state.StatusCompleted && score < completedFloor {
		score = completedFloor
	}
	return score
}

func (r *Report) recommend(lc *phase.Lifecycle) {
	cur := r.Rows[lc.Index(r.CurrentPhase.ID)]
	switch {
	case cur.Status == state.StatusPending:
		r.Recommendations = append(r.Recommendations, fmt.Sprintf("Start working on %s phase", cur.Info.ID))
	case cur.Status == state.StatusInProgress && !cur.GatePassed:
		r.Recommendations = append(r.Recommendations, fmt.Sprintf("Complete gate criteria for %s", cur.Info.ID))
	}
	for _, row := range r.Rows[:lc.Index(r.CurrentPhase.ID)] {
		if !row.GatePassed {
			r.Warnings = append(r.Warnings, fmt.Sprintf("Phase '%s' gate not passed (before current phase)", row.Info.ID))
		}
	}
}

// Blocked returns the ids of blocked phases.
func (r *Report) Blocked() []phase.ID {
	out := []phase.ID{}
	for _, row := range r.Rows {
		if row.Blocked {
			out = append(out, row.Info.ID)
		}
	}
	return out
}

type jsonReport struct {
	*state.ProjectState
	HealthScore float64    `json:"health_score"`
	Blocked     []phase.ID `json:"blocked"`
}

// MarshalJSON emits the state document extended with the score and the
// derived blocked phases.
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonReport{
		ProjectState: r.state,
		HealthScore:  r.Score,
		Blocked:      r.Blocked(),
	})
}
