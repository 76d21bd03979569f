package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrPlanNotFound is returned by GetPlan for an unknown id.
var ErrPlanNotFound = errors.New("plan not found")

// SavePlan stores a plan and its steps in one transaction. CreatedAt is set
// when zero.
func (h *PlanStore) SavePlan(rec PlanRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	repairs, err := json.Marshal(rec.Repairs)
	if err != nil {
		return fmt.Errorf("encode repairs: %w", err)
	}

	tx, err := h.DB.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO plans (id, chat_id, request, origin, repairs, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ChatID, rec.Request, rec.Origin, string(repairs), rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert plan %s: %w", rec.ID, err)
	}

	for _, s := range rec.Steps {
		deps, _ := json.Marshal(s.DependsOn)
		prov, _ := json.Marshal(s.Provenance)
		params, err := json.Marshal(s.Parameters)
		if err != nil {
			return fmt.Errorf("encode parameters of %s: %w", s.StepID, err)
		}
		_, err = tx.Exec(`INSERT INTO plan_steps
			(plan_id, position, step_id, description, tool, status, reason, depends_on, parameters, provenance, outcome, output)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, s.Position, s.StepID, s.Description, s.Tool, s.Status, s.Reason,
			string(deps), string(params), string(prov), s.Outcome, s.Output)
		if err != nil {
			return fmt.Errorf("insert step %s: %w", s.StepID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RecordOutcome stores the execution result of one step.
func (h *PlanStore) RecordOutcome(planID, stepID, outcome, output string) error {
	res, err := h.DB.Exec(`UPDATE plan_steps SET outcome = ?, output = ? WHERE plan_id = ? AND step_id = ?`,
		outcome, output, planID, stepID)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record outcome %s/%s: %w", planID, stepID, ErrPlanNotFound)
	}
	return nil
}

// GetPlan loads one plan with its steps in position order.
func (h *PlanStore) GetPlan(id string) (*PlanRecord, error) {
	row := h.DB.QueryRow(`SELECT id, chat_id, request, origin, repairs, created_at FROM plans WHERE id = ?`, id)
	rec, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrPlanNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := h.DB.Query(`SELECT position, step_id, description, tool, status, reason, depends_on, parameters, provenance, outcome, output
		FROM plan_steps WHERE plan_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s StepRecord
		var deps, params, prov string
		if err := rows.Scan(&s.Position, &s.StepID, &s.Description, &s.Tool, &s.Status, &s.Reason,
			&deps, &params, &prov, &s.Outcome, &s.Output); err != nil {
			return nil, err
		}
		for _, col := range []struct {
			raw string
			dst any
		}{{deps, &s.DependsOn}, {params, &s.Parameters}, {prov, &s.Provenance}} {
			if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
				return nil, fmt.Errorf("step %s: %w", s.StepID, err)
			}
		}
		rec.Steps = append(rec.Steps, s)
	}
	return rec, rows.Err()
}

// ListPlans returns the most recent plans without their steps.
func (h *PlanStore) ListPlans(limit int) ([]PlanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.DB.Query(`SELECT id, chat_id, request, origin, repairs, created_at FROM plans
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var out []PlanRecord
	for rows.Next() {
		rec, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (*PlanRecord, error) {
	var rec PlanRecord
	var repairs, created string
	if err := row.Scan(&rec.ID, &rec.ChatID, &rec.Request, &rec.Origin, &repairs, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(repairs), &rec.Repairs); err != nil {
		return nil, fmt.Errorf("plan %s repairs: %w", rec.ID, err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("plan %s created_at: %w", rec.ID, err)
	}
	rec.CreatedAt = t
	return &rec, nil
}
