package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashita-ai/mamori/internal/model"
	"github.com/ashita-ai/mamori/internal/storage"
)

// hookTimeout bounds one hook invocation.
const hookTimeout = 10 * time.Second

// EventPublisher implements the services' EventSink. Each event is sent as a
// Postgres NOTIFY payload (feeding the SSE broker, across instances) and
// fanned out to registered hooks asynchronously.
type EventPublisher struct {
	db     *storage.DB
	hooks  []CrisisHook
	logger *slog.Logger
}

// NewEventPublisher creates an event publisher. db may be nil in tests;
// events then reach hooks only.
func NewEventPublisher(db *storage.DB, hooks []CrisisHook, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{db: db, hooks: hooks, logger: logger}
}

// Publish sends one domain event. NOTIFY failures surface to the caller
// (which treats publishing as best effort); hook failures are logged.
func (p *EventPublisher) Publish(ctx context.Context, event model.CrisisEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("server: marshal event: %w", err)
	}

	p.fireHooks(event)

	if p.db == nil {
		return nil
	}
	channel := storage.ChannelInterventions
	switch event.Type {
	case model.EventAssessmentProduced, model.EventCrisisDetected, model.EventImmediateInterventionRequired:
		channel = storage.ChannelAssessments
	}
	if err := p.db.Notify(ctx, channel, string(payload)); err != nil {
		return fmt.Errorf("server: notify %s: %w", channel, err)
	}
	return nil
}

// fireHooks dispatches the event to registered hooks in goroutines.
func (p *EventPublisher) fireHooks(event model.CrisisEvent) {
	if len(p.hooks) == 0 {
		return
	}

	var call func(CrisisHook, context.Context) error
	switch event.Type {
	case model.EventCrisisDetected, model.EventImmediateInterventionRequired:
		call = func(h CrisisHook, ctx context.Context) error {
			return h.OnCrisisDetected(ctx, event)
		}
	case model.EventInterventionEscalated:
		call = func(h CrisisHook, ctx context.Context) error {
			return h.OnInterventionEscalated(ctx, event)
		}
	default:
		return
	}

	for _, hook := range p.hooks {
		go func(h CrisisHook) {
			ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
			defer cancel()
			if err := call(h, ctx); err != nil {
				p.logger.Warn("crisis hook failed",
					"event_type", event.Type,
					"user_id", event.UserID,
					"error", err)
			}
		}(hook)
	}
}
