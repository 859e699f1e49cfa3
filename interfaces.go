package mamori

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Extractor analyzes one signal class over the user's text and emits
// indicators. When provided via WithExtractors, the set replaces the built-in
// extractors entirely. An error from any extractor fails the whole analysis;
// partial indicator sets are never returned.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, userID, text string) ([]Indicator, error)
}

// HistoryStore supplies a user's recent assessments within a lookback window,
// ordered oldest first. When provided via WithHistoryStore, it replaces
// Postgres as the backing store behind the in-memory assessment cache.
type HistoryStore interface {
	RecentAssessments(ctx context.Context, userID string, window time.Duration) ([]Assessment, error)
}

// Responder receives severity-tiered immediate-response signals for active
// cases. Contacting anyone is the implementation's responsibility, including
// its own retry policy. When provided via WithResponder, it replaces the
// webhook (or log) responder selected by configuration.
type Responder interface {
	Notify(ctx context.Context, tier Tier, interventionID uuid.UUID) error
}

// FollowUpScheduler books follow-up contact after a case resolves.
// When provided via WithFollowUpScheduler, it replaces the logging default.
type FollowUpScheduler interface {
	Schedule(ctx context.Context, interventionID uuid.UUID, plan FollowUpPlan) error
}

// AuditSink appends compliance records. Record is called in the background
// with a detached timeout context; a failing sink is logged and never fails
// the originating operation. When provided via WithAuditSink, it replaces the
// append-only Postgres audit log.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

// EventHook receives async notifications for crisis lifecycle events.
// Multiple hooks may be registered via multiple WithEventHook calls.
// Hook methods run in goroutines with a bounded timeout; they must not block
// indefinitely. Failures are logged but do not fail the originating request.
type EventHook interface {
	OnCrisisDetected(ctx context.Context, event Event) error
	OnInterventionEscalated(ctx context.Context, event Event) error
}

// RouteRegistrar registers additional routes on the shared HTTP mux.
// Registered routes share the middleware chain and OTEL instrumentation with
// built-in routes. Called once during New() after built-in routes are
// registered.
type RouteRegistrar func(mux *http.ServeMux)

// Middleware wraps the root HTTP handler. Applied outermost (before
// routing), so it sees all requests including /health. Multiple middlewares
// are applied in registration order (first-registered = outermost).
type Middleware func(http.Handler) http.Handler
