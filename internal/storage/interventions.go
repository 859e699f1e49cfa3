package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/mamori/internal/model"
)

const interventionColumns = `
	id, user_id, crisis_type, severity, status, description,
	initiated_by, assigned_to, reported_at, resolved_at,
	actions, risk, safety, safety_plan_id, follow_up,
	disposition, effectiveness, narrative, created_at, updated_at`

// InsertIntervention persists a newly initiated case.
func (db *DB) InsertIntervention(ctx context.Context, iv model.CrisisIntervention) error {
	actions, risk, safety, followUp, disposition, narrative, err := marshalInterventionFields(iv)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO crisis_interventions (
			id, user_id, crisis_type, severity, status, description,
			initiated_by, assigned_to, reported_at, resolved_at,
			actions, risk, safety, safety_plan_id, follow_up,
			disposition, effectiveness, narrative, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11::jsonb, $12::jsonb, $13::jsonb, $14, $15::jsonb,
		        $16::jsonb, $17, $18::jsonb, $19, $20)`,
		iv.ID, iv.UserID, string(iv.CrisisType), int(iv.Severity), string(iv.Status), iv.Description,
		iv.InitiatedBy, iv.AssignedTo, iv.ReportedAt, iv.ResolvedAt,
		actions, risk, safety, iv.SafetyPlanID, followUp,
		disposition, iv.Effectiveness, narrative, iv.CreatedAt, iv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: insert intervention: %w", err)
	}
	return nil
}

// GetIntervention loads one case by id. Returns model.ErrNotFound for an
// unknown id.
func (db *DB) GetIntervention(ctx context.Context, id uuid.UUID) (model.CrisisIntervention, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT`+interventionColumns+` FROM crisis_interventions WHERE id = $1`, id)
	iv, err := scanIntervention(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CrisisIntervention{}, fmt.Errorf("%w: %s", model.ErrNotFound, id)
		}
		return model.CrisisIntervention{}, fmt.Errorf("storage: get intervention: %w", err)
	}
	return iv, nil
}

// UpdateIntervention overwrites the mutable fields of a case. The caller
// holds the per-case lock, so last-write-wins is safe here.
func (db *DB) UpdateIntervention(ctx context.Context, iv model.CrisisIntervention) error {
	actions, risk, safety, followUp, disposition, narrative, err := marshalInterventionFields(iv)
	if err != nil {
		return err
	}

	tag, err := db.pool.Exec(ctx, `
		UPDATE crisis_interventions SET
			severity = $2, status = $3, assigned_to = $4, resolved_at = $5,
			actions = $6::jsonb, risk = $7::jsonb, safety = $8::jsonb,
			safety_plan_id = $9, follow_up = $10::jsonb, disposition = $11::jsonb,
			effectiveness = $12, narrative = $13::jsonb, updated_at = $14
		WHERE id = $1`,
		iv.ID, int(iv.Severity), string(iv.Status), iv.AssignedTo, iv.ResolvedAt,
		actions, risk, safety,
		iv.SafetyPlanID, followUp, disposition,
		iv.Effectiveness, narrative, iv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: update intervention: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", model.ErrNotFound, iv.ID)
	}
	return nil
}

// ActiveInterventions lists unresolved cases matching the filters, most
// severe first, oldest report first within a severity.
func (db *DB) ActiveInterventions(ctx context.Context, filters model.ActiveCrisisFilters) ([]model.CrisisIntervention, error) {
	query := `SELECT` + interventionColumns + `
		FROM crisis_interventions
		WHERE status <> 'resolved'`
	args := []any{}
	n := 0
	if filters.Severity != nil {
		n++
		query += fmt.Sprintf(" AND severity = $%d", n)
		args = append(args, int(*filters.Severity))
	}
	if filters.CrisisType != nil {
		n++
		query += fmt.Sprintf(" AND crisis_type = $%d", n)
		args = append(args, string(*filters.CrisisType))
	}
	if filters.AssignedTo != nil {
		n++
		query += fmt.Sprintf(" AND assigned_to = $%d", n)
		args = append(args, *filters.AssignedTo)
	}
	query += " ORDER BY severity DESC, reported_at ASC"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: active interventions: %w", err)
	}
	defer rows.Close()

	var out []model.CrisisIntervention
	for rows.Next() {
		iv, err := scanIntervention(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: active interventions: scan: %w", err)
		}
		out = append(out, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: active interventions: rows: %w", err)
	}
	return out, nil
}

// HasActiveSafetyPlan reports whether the user has an unresolved case with a
// safety plan attached. Feeds the protective risk factor.
func (db *DB) HasActiveSafetyPlan(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM crisis_interventions
			WHERE user_id = $1 AND status <> 'resolved' AND safety_plan_id IS NOT NULL
		)`, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: has active safety plan: %w", err)
	}
	return exists, nil
}

func marshalInterventionFields(iv model.CrisisIntervention) (actions, risk, safety, followUp, disposition, narrative []byte, err error) {
	if iv.Actions == nil {
		iv.Actions = []model.InterventionAction{}
	}
	if actions, err = json.Marshal(iv.Actions); err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("storage: marshal actions: %w", err)
	}
	if risk, err = json.Marshal(iv.Risk); err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("storage: marshal risk: %w", err)
	}
	if safety, err = json.Marshal(iv.Safety); err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("storage: marshal safety: %w", err)
	}
	if followUp, err = json.Marshal(iv.FollowUp); err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("storage: marshal follow_up: %w", err)
	}
	if iv.Disposition != nil {
		if disposition, err = json.Marshal(iv.Disposition); err != nil {
			return nil, nil, nil, nil, nil, nil, fmt.Errorf("storage: marshal disposition: %w", err)
		}
	}
	if iv.Narrative == nil {
		iv.Narrative = []string{}
	}
	if narrative, err = json.Marshal(iv.Narrative); err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("storage: marshal narrative: %w", err)
	}
	return actions, risk, safety, followUp, disposition, narrative, nil
}

func scanIntervention(row pgx.Row) (model.CrisisIntervention, error) {
	var (
		iv          model.CrisisIntervention
		crisisType  string
		severity    int
		status      string
		actions     []byte
		risk        []byte
		safety      []byte
		followUp    []byte
		disposition []byte
		narrative   []byte
	)
	err := row.Scan(
		&iv.ID, &iv.UserID, &crisisType, &severity, &status, &iv.Description,
		&iv.InitiatedBy, &iv.AssignedTo, &iv.ReportedAt, &iv.ResolvedAt,
		&actions, &risk, &safety, &iv.SafetyPlanID, &followUp,
		&disposition, &iv.Effectiveness, &narrative, &iv.CreatedAt, &iv.UpdatedAt,
	)
	if err != nil {
		return model.CrisisIntervention{}, err
	}

	iv.CrisisType = model.CrisisType(crisisType)
	iv.Severity = model.Severity(severity)
	iv.Status = model.InterventionStatus(status)
	if err := json.Unmarshal(actions, &iv.Actions); err != nil {
		return model.CrisisIntervention{}, fmt.Errorf("unmarshal actions: %w", err)
	}
	if err := json.Unmarshal(risk, &iv.Risk); err != nil {
		return model.CrisisIntervention{}, fmt.Errorf("unmarshal risk: %w", err)
	}
	if err := json.Unmarshal(safety, &iv.Safety); err != nil {
		return model.CrisisIntervention{}, fmt.Errorf("unmarshal safety: %w", err)
	}
	if err := json.Unmarshal(followUp, &iv.FollowUp); err != nil {
		return model.CrisisIntervention{}, fmt.Errorf("unmarshal follow_up: %w", err)
	}
	if len(disposition) > 0 {
		if err := json.Unmarshal(disposition, &iv.Disposition); err != nil {
			return model.CrisisIntervention{}, fmt.Errorf("unmarshal disposition: %w", err)
		}
	}
	if err := json.Unmarshal(narrative, &iv.Narrative); err != nil {
		return model.CrisisIntervention{}, fmt.Errorf("unmarshal narrative: %w", err)
	}
	return iv, nil
}
