package store

import (
	"time"

	"github.com/rahul/stepwright/internal/planning"
)

// StepRecord is one stored plan step together with its execution outcome.
type StepRecord struct {
	Position    int            `json:"position"`
	StepID      string         `json:"step_id"`
	Description string         `json:"description,omitempty"`
	Tool        string         `json:"tool"`
	Status      string         `json:"status"` // resolved, unresolvable
	Reason      string         `json:"reason,omitempty"`
	DependsOn   []string       `json:"depends_on,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Provenance  []string       `json:"provenance,omitempty"`
	Outcome     string         `json:"outcome,omitempty"` // ok, failed, skipped, denied; empty until run
	Output      string         `json:"output,omitempty"`
}

// PlanRecord is a stored plan.
type PlanRecord struct {
	ID        string       `json:"id"`
	ChatID    string       `json:"chat_id"`
	Request   string       `json:"request"`
	Origin    string       `json:"origin"`
	Repairs   []string     `json:"repairs,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	Steps     []StepRecord `json:"steps,omitempty"`
}

// NewPlanRecord flattens an interpreted plan for storage.
func NewPlanRecord(chatID string, p *planning.Plan) PlanRecord {
	rec := PlanRecord{
		ID:      p.ID,
		ChatID:  chatID,
		Request: p.Request,
		Origin:  string(p.Origin),
		Repairs: append([]string(nil), p.Repairs...),
	}
	for i, s := range p.Steps {
		var fixes []string
		for _, f := range s.Provenance {
			fixes = append(fixes, f.String())
		}
		rec.Steps = append(rec.Steps, StepRecord{
			Position:    i + 1,
			StepID:      s.ID,
			Description: s.Description,
			Tool:        s.Tool,
			Status:      string(s.Status),
			Reason:      s.Reason,
			DependsOn:   append([]string(nil), s.DependsOn...),
			Parameters:  s.Parameters,
			Provenance:  fixes,
		})
	}
	return rec
}
