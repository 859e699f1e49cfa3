// Package responder delivers outbound dispatch signals to the humans who
// act on a crisis case. The engine decides the tier; this package only
// carries the signal.
package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/mamori/internal/model"
)

// Webhook posts dispatch notifications to a configured HTTP endpoint.
// The receiving system (paging, on-call rotation, care coordination) owns
// acknowledgement and retry beyond this single delivery attempt.
type Webhook struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhook creates a webhook responder. timeout bounds one delivery.
func NewWebhook(url string, timeout time.Duration, logger *slog.Logger) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// dispatchPayload is the webhook request body.
type dispatchPayload struct {
	Tier           model.ResponderTier `json:"tier"`
	InterventionID uuid.UUID           `json:"intervention_id"`
	SentAt         time.Time           `json:"sent_at"`
}

// Notify posts one dispatch signal. A non-2xx response is an error so the
// caller can log and audit the failed delivery.
func (w *Webhook) Notify(ctx context.Context, tier model.ResponderTier, interventionID uuid.UUID) error {
	body, err := json.Marshal(dispatchPayload{
		Tier:           tier,
		InterventionID: interventionID,
		SentAt:         time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("responder: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("responder: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("responder: deliver: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("responder: webhook returned %d", resp.StatusCode)
	}

	w.logger.Info("responder notified",
		"tier", tier,
		"intervention_id", interventionID)
	return nil
}

// Log is a responder that only records the dispatch in the log. Used when
// no webhook is configured (local development, tests).
type Log struct {
	Logger *slog.Logger
}

// Notify logs the dispatch and succeeds.
func (l Log) Notify(_ context.Context, tier model.ResponderTier, interventionID uuid.UUID) error {
	l.Logger.Warn("responder dispatch (no webhook configured)",
		"tier", tier,
		"intervention_id", interventionID)
	return nil
}
