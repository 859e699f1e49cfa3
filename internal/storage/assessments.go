package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashita-ai/mamori/internal/model"
)

// InsertAssessment persists one analysis result for historical trend
// analysis. Assessments are append-only.
func (db *DB) InsertAssessment(ctx context.Context, a model.CrisisAssessment) error {
	indicators, err := json.Marshal(orEmptyIndicators(a.Indicators))
	if err != nil {
		return fmt.Errorf("storage: marshal indicators: %w", err)
	}
	factors, err := json.Marshal(orEmptyFactors(a.RiskFactors))
	if err != nil {
		return fmt.Errorf("storage: marshal risk factors: %w", err)
	}
	actions, err := json.Marshal(a.SuggestedActions)
	if err != nil {
		return fmt.Errorf("storage: marshal suggested actions: %w", err)
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO crisis_assessments (
			id, user_id, is_in_crisis, severity, confidence,
			indicators, risk_factors, suggested_actions,
			requires_immediate, language, produced_at, response_time_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8::jsonb, $9, $10, $11, $12)`,
		a.ID, a.UserID, a.IsInCrisis, int(a.Severity), a.Confidence,
		indicators, factors, actions,
		a.RequiresImmediate, a.Language, a.Timestamp, a.ResponseTimeMs,
	)
	if err != nil {
		return fmt.Errorf("storage: insert assessment: %w", err)
	}
	return nil
}

// RecentAssessments returns the user's assessments within the lookback
// window, oldest first.
func (db *DB) RecentAssessments(ctx context.Context, userID string, window time.Duration) ([]model.CrisisAssessment, error) {
	cutoff := time.Now().Add(-window)
	rows, err := db.pool.Query(ctx, `
		SELECT id, user_id, is_in_crisis, severity, confidence,
		       indicators, risk_factors, suggested_actions,
		       requires_immediate, language, produced_at, response_time_ms
		FROM crisis_assessments
		WHERE user_id = $1 AND produced_at >= $2
		ORDER BY produced_at ASC`,
		userID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: recent assessments: %w", err)
	}
	defer rows.Close()

	var out []model.CrisisAssessment
	for rows.Next() {
		var (
			a          model.CrisisAssessment
			severity   int
			indicators []byte
			factors    []byte
			actions    []byte
		)
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.IsInCrisis, &severity, &a.Confidence,
			&indicators, &factors, &actions,
			&a.RequiresImmediate, &a.Language, &a.Timestamp, &a.ResponseTimeMs,
		); err != nil {
			return nil, fmt.Errorf("storage: recent assessments: scan: %w", err)
		}
		a.Severity = model.Severity(severity)
		if err := json.Unmarshal(indicators, &a.Indicators); err != nil {
			return nil, fmt.Errorf("storage: recent assessments: unmarshal indicators: %w", err)
		}
		if err := json.Unmarshal(factors, &a.RiskFactors); err != nil {
			return nil, fmt.Errorf("storage: recent assessments: unmarshal risk factors: %w", err)
		}
		if err := json.Unmarshal(actions, &a.SuggestedActions); err != nil {
			return nil, fmt.Errorf("storage: recent assessments: unmarshal actions: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: recent assessments: rows: %w", err)
	}
	return out, nil
}

func orEmptyIndicators(in []model.Indicator) []model.Indicator {
	if in == nil {
		return []model.Indicator{}
	}
	return in
}

func orEmptyFactors(in []model.RiskFactor) []model.RiskFactor {
	if in == nil {
		return []model.RiskFactor{}
	}
	return in
}
