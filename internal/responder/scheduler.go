package responder

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ashita-ai/mamori/internal/model"
)

// LogScheduler records follow-up bookings in the log. A real deployment
// would hand these to a scheduling system; the engine only requires that
// the booking attempt is observable.
type LogScheduler struct {
	Logger *slog.Logger
}

// Schedule logs the follow-up plan for the resolved case.
func (s LogScheduler) Schedule(_ context.Context, interventionID uuid.UUID, plan model.FollowUpPlan) error {
	s.Logger.Info("follow-up scheduled",
		"intervention_id", interventionID,
		"contact_within", plan.ImmediateContactWithin,
		"responsible_party", plan.ResponsibleParty)
	return nil
}
