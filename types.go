package mamori

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the wire name of a risk level, ordered none < low < moderate <
// high < critical < immediate. Public collaborators exchange the name, not
// the internal ordinal.
type Severity string

const (
	SeverityNone      Severity = "none"
	SeverityLow       Severity = "low"
	SeverityModerate  Severity = "moderate"
	SeverityHigh      Severity = "high"
	SeverityCritical  Severity = "critical"
	SeverityImmediate Severity = "immediate"
)

// Tier is the urgency tier of an outbound responder signal.
type Tier string

const (
	TierEmergency Tier = "emergency"
	TierUrgent    Tier = "urgent"
	TierCounselor Tier = "counselor"
	TierResources Tier = "resources"
)

// Event is a crisis domain event delivered to registered EventHooks.
// It is a curated view of the internal event type with no internal imports,
// safe to use from outside the module.
type Event struct {
	Type           string
	UserID         string
	AssessmentID   *uuid.UUID
	InterventionID *uuid.UUID
	Severity       Severity
	Detail         map[string]any
	OccurredAt     time.Time
}

// Event type names as they appear in Event.Type.
const (
	EventAssessmentProduced            = "assessment-produced"
	EventCrisisDetected                = "crisis-detected"
	EventImmediateInterventionRequired = "immediate-intervention-required"
	EventInterventionInitiated         = "intervention-initiated"
	EventInterventionUpdated           = "intervention-updated"
	EventInterventionEscalated         = "intervention-escalated"
	EventInterventionResolved          = "intervention-resolved"
	EventSafetyPlanCreated             = "safety-plan-created"
	EventResponderDispatched           = "responder-dispatched"
)

// Indicator is one detected risk signal returned by a custom Extractor.
type Indicator struct {
	// Kind identifies the signal class: keyword, pattern, behavioral,
	// temporal, or linguistic.
	Kind       string
	Severity   Severity
	Confidence float64
	Language   string
	Detail     string
	Timestamp  time.Time
}

// Assessment is the reduced assessment view exchanged with a custom
// HistoryStore. Only fields the historical risk rules consume are present;
// indicator and action detail stays inside the engine.
type Assessment struct {
	ID                uuid.UUID
	UserID            string
	InCrisis          bool
	Severity          Severity
	Confidence        float64
	RequiresImmediate bool
	Timestamp         time.Time
}

// FollowUpPlan is the post-resolution contact plan handed to a
// FollowUpScheduler.
type FollowUpPlan struct {
	ContactWithin    string
	Appointments     []string
	ResponsibleParty string
	NextContactAt    *time.Time
}

// AuditEntry is one compliance record handed to a custom AuditSink.
// Details carry counts and identifiers only, never user text or safety-plan
// content.
type AuditEntry struct {
	RequestID    string
	EventType    string
	Actor        string
	ResourceType string
	ResourceID   string
	Details      map[string]any
	Outcome      string
}
