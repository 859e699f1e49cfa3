package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType categorizes a domain event emitted by the engine.
type EventType string

const (
	// Assessment events (emitted by the aggregator).
	EventAssessmentProduced            EventType = "assessment-produced"
	EventCrisisDetected                EventType = "crisis-detected"
	EventImmediateInterventionRequired EventType = "immediate-intervention-required"

	// Intervention lifecycle events (emitted by the state machine).
	EventInterventionInitiated EventType = "intervention-initiated"
	EventInterventionUpdated   EventType = "intervention-updated"
	EventInterventionEscalated EventType = "intervention-escalated"
	EventInterventionResolved  EventType = "intervention-resolved"
	EventSafetyPlanCreated     EventType = "safety-plan-created"
	EventResponderDispatched   EventType = "responder-dispatched"
)

// CrisisEvent is one typed domain event. Events flow from the producing
// service through Postgres NOTIFY to the SSE broker and registered hooks;
// consumers that need durability read the audit log instead.
type CrisisEvent struct {
	Type           EventType      `json:"type"`
	UserID         string         `json:"user_id,omitempty"`
	AssessmentID   *uuid.UUID     `json:"assessment_id,omitempty"`
	InterventionID *uuid.UUID     `json:"intervention_id,omitempty"`
	Severity       Severity       `json:"severity"`
	Detail         map[string]any `json:"detail,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// ResponderTier is the urgency tier of an outbound responder signal.
type ResponderTier string

const (
	// TierEmergency: synchronous emergency-services notification and
	// crisis-team paging. Critical and Immediate severities.
	TierEmergency ResponderTier = "emergency"
	// TierUrgent: clinician assignment within 1 hour. High severity.
	TierUrgent ResponderTier = "urgent"
	// TierCounselor: counselor assignment within 4 hours. Moderate severity.
	TierCounselor ResponderTier = "counselor"
	// TierResources: resource delivery within 24 hours. Low and below.
	TierResources ResponderTier = "resources"
)

// TierForSeverity maps a severity onto the responder dispatch tier.
func TierForSeverity(s Severity) ResponderTier {
	switch {
	case s >= SeverityCritical:
		return TierEmergency
	case s == SeverityHigh:
		return TierUrgent
	case s == SeverityModerate:
		return TierCounselor
	default:
		return TierResources
	}
}
