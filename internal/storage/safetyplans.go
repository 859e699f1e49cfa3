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

// InsertSafetyPlan persists a new safety plan. Plan content is stored as
// structured JSONB; it is never written to logs or the audit trail.
func (db *DB) InsertSafetyPlan(ctx context.Context, plan model.SafetyPlan) error {
	content, err := json.Marshal(planContent{
		WarningSigns:      plan.WarningSigns,
		CopingStrategies:  plan.CopingStrategies,
		Contacts:          plan.Contacts,
		MeansRestrictions: plan.MeansRestrictions,
		ReasonsForLiving:  plan.ReasonsForLiving,
		CrisisHotlines:    plan.CrisisHotlines,
	})
	if err != nil {
		return fmt.Errorf("storage: marshal safety plan: %w", err)
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO safety_plans (id, intervention_id, user_id, content, created_at, last_reviewed)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)`,
		plan.ID, plan.InterventionID, plan.UserID, content, plan.CreatedAt, plan.LastReviewed,
	)
	if err != nil {
		return fmt.Errorf("storage: insert safety plan: %w", err)
	}
	return nil
}

// GetSafetyPlan loads one plan by id. Returns model.ErrNotFound for an
// unknown id.
func (db *DB) GetSafetyPlan(ctx context.Context, id uuid.UUID) (model.SafetyPlan, error) {
	var (
		plan    model.SafetyPlan
		content []byte
	)
	err := db.pool.QueryRow(ctx, `
		SELECT id, intervention_id, user_id, content, created_at, last_reviewed
		FROM safety_plans WHERE id = $1`, id,
	).Scan(&plan.ID, &plan.InterventionID, &plan.UserID, &content, &plan.CreatedAt, &plan.LastReviewed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SafetyPlan{}, fmt.Errorf("%w: safety plan %s", model.ErrNotFound, id)
		}
		return model.SafetyPlan{}, fmt.Errorf("storage: get safety plan: %w", err)
	}

	var c planContent
	if err := json.Unmarshal(content, &c); err != nil {
		return model.SafetyPlan{}, fmt.Errorf("storage: unmarshal safety plan: %w", err)
	}
	plan.WarningSigns = c.WarningSigns
	plan.CopingStrategies = c.CopingStrategies
	plan.Contacts = c.Contacts
	plan.MeansRestrictions = c.MeansRestrictions
	plan.ReasonsForLiving = c.ReasonsForLiving
	plan.CrisisHotlines = c.CrisisHotlines
	return plan, nil
}

// TouchSafetyPlanReview stamps a plan as reviewed now.
func (db *DB) TouchSafetyPlanReview(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE safety_plans SET last_reviewed = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: touch safety plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: safety plan %s", model.ErrNotFound, id)
	}
	return nil
}

// planContent is the JSONB shape of a plan's clinical content.
type planContent struct {
	WarningSigns      []string            `json:"warning_signs"`
	CopingStrategies  []string            `json:"coping_strategies"`
	Contacts          []model.PlanContact `json:"contacts"`
	MeansRestrictions []string            `json:"means_restrictions"`
	ReasonsForLiving  []string            `json:"reasons_for_living"`
	CrisisHotlines    []string            `json:"crisis_hotlines"`
}
