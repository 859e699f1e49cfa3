package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashita-ai/mamori/internal/model"
)

// InsertAuditEntry appends a compliance record. The target table is
// append-only; a database trigger rejects updates and deletes.
func (db *DB) InsertAuditEntry(ctx context.Context, e model.AuditEntry) error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("storage: marshal audit details: %w", err)
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO crisis_audit_log (request_id, event_type, actor, resource_type, resource_id, details, outcome)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
		e.RequestID, string(e.EventType), e.Actor, e.ResourceType, e.ResourceID, details, e.Outcome,
	)
	if err != nil {
		return fmt.Errorf("storage: insert audit entry: %w", err)
	}
	return nil
}

// AuditRecord is one stored audit row, as returned to reviewers.
type AuditRecord struct {
	ID           int64          `json:"id"`
	RequestID    string         `json:"request_id,omitempty"`
	EventType    string         `json:"event_type"`
	Actor        string         `json:"actor"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Details      map[string]any `json:"details"`
	Outcome      string         `json:"outcome"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditTrail returns the audit rows for one resource, oldest first, capped
// at limit.
func (db *DB) AuditTrail(ctx context.Context, resourceType, resourceID string, limit int) ([]AuditRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	rows, err := db.pool.Query(ctx, `
		SELECT id, request_id, event_type, actor, resource_type, resource_id, details, outcome, created_at
		FROM crisis_audit_log
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY id ASC
		LIMIT $3`,
		resourceType, resourceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: audit trail: %w", err)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var (
			rec     AuditRecord
			details []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.RequestID, &rec.EventType, &rec.Actor,
			&rec.ResourceType, &rec.ResourceID, &details, &rec.Outcome, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: audit trail: scan: %w", err)
		}
		if err := json.Unmarshal(details, &rec.Details); err != nil {
			return nil, fmt.Errorf("storage: audit trail: unmarshal details: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
