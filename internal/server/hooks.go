package server

import (
	"context"

	"github.com/ashita-ai/mamori/internal/model"
)

// CrisisHook receives crisis lifecycle events within the server layer.
// Defined here (not in the root mamori package) to avoid a circular import:
// internal/server → mamori → internal/server would be a cycle.
// The root mamori package wraps mamori.EventHook into CrisisHook via an adapter.
//
// Hook methods are called asynchronously in goroutines. Implementations must not
// block indefinitely. Failures are logged and do not fail the originating request.
type CrisisHook interface {
	// OnCrisisDetected fires for crisis-detected and
	// immediate-intervention-required assessment events.
	OnCrisisDetected(ctx context.Context, event model.CrisisEvent) error

	// OnInterventionEscalated fires when an active case transitions to Escalated.
	OnInterventionEscalated(ctx context.Context, event model.CrisisEvent) error
}
