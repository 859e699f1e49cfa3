package model

import (
	"time"

	"github.com/google/uuid"
)

// InterventionStatus is the lifecycle state of a crisis case.
type InterventionStatus string

const (
	StatusActive      InterventionStatus = "active"
	StatusStabilized  InterventionStatus = "stabilized"
	StatusResolved    InterventionStatus = "resolved"
	StatusEscalated   InterventionStatus = "escalated"
	StatusTransferred InterventionStatus = "transferred"
)

// Terminal reports whether the status admits no further mutating transitions.
// Only Resolved is terminal; Escalated and Transferred cases remain workable.
func (s InterventionStatus) Terminal() bool {
	return s == StatusResolved
}

// CrisisType classifies what kind of crisis initiated a case.
type CrisisType string

const (
	CrisisSuicideAttempt    CrisisType = "suicide_attempt"
	CrisisOverdose          CrisisType = "overdose"
	CrisisHomicidalIdeation CrisisType = "homicidal_ideation"
	CrisisPsychosis         CrisisType = "psychosis"
	CrisisSuicidalIdeation  CrisisType = "suicidal_ideation"
	CrisisSelfHarm          CrisisType = "self_harm"
	CrisisSevereDepression  CrisisType = "severe_depression"
	CrisisMania             CrisisType = "mania"
	CrisisPanicAttack       CrisisType = "panic_attack"
	CrisisAcuteAnxiety      CrisisType = "acute_anxiety"
	CrisisOther             CrisisType = "other"
)

// knownCrisisTypes is the closed set accepted by Initiate.
var knownCrisisTypes = map[CrisisType]bool{
	CrisisSuicideAttempt:    true,
	CrisisOverdose:          true,
	CrisisHomicidalIdeation: true,
	CrisisPsychosis:         true,
	CrisisSuicidalIdeation:  true,
	CrisisSelfHarm:          true,
	CrisisSevereDepression:  true,
	CrisisMania:             true,
	CrisisPanicAttack:       true,
	CrisisAcuteAnxiety:      true,
	CrisisOther:             true,
}

// ValidCrisisType reports whether t is a recognized crisis type.
func ValidCrisisType(t CrisisType) bool {
	return knownCrisisTypes[t]
}

// InitialSeverityForType derives the starting severity of a new case when the
// initiator supplies no severity hint.
func InitialSeverityForType(t CrisisType) Severity {
	switch t {
	case CrisisSuicideAttempt, CrisisOverdose, CrisisHomicidalIdeation, CrisisPsychosis:
		return SeverityHigh
	case CrisisSuicidalIdeation, CrisisSelfHarm, CrisisSevereDepression, CrisisMania:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

// RiskAssessment is the structured clinical risk snapshot stored on a case.
// Partial updates merge into it field by field; absent means "unchanged".
type RiskAssessment struct {
	RiskLevel         RiskLevel `json:"risk_level"`
	SuicidalIdeation  *bool     `json:"suicidal_ideation,omitempty"`
	HomicidalIdeation *bool     `json:"homicidal_ideation,omitempty"`
	HasPlan           *bool     `json:"has_plan,omitempty"`
	HasMeans          *bool     `json:"has_means,omitempty"`
	ImmediateDanger   *bool     `json:"immediate_danger,omitempty"`
	ProtectiveFactors []string  `json:"protective_factors,omitempty"`
	RiskNotes         string    `json:"risk_notes,omitempty"`
	AssessedBy        string    `json:"assessed_by,omitempty"`
	AssessedAt        time.Time `json:"assessed_at"`
}

// Merge applies the non-zero fields of delta onto the receiver and returns
// the merged snapshot. The receiver is not modified.
func (r RiskAssessment) Merge(delta RiskAssessment) RiskAssessment {
	out := r
	if delta.RiskLevel != "" {
		out.RiskLevel = delta.RiskLevel
	}
	if delta.SuicidalIdeation != nil {
		out.SuicidalIdeation = delta.SuicidalIdeation
	}
	if delta.HomicidalIdeation != nil {
		out.HomicidalIdeation = delta.HomicidalIdeation
	}
	if delta.HasPlan != nil {
		out.HasPlan = delta.HasPlan
	}
	if delta.HasMeans != nil {
		out.HasMeans = delta.HasMeans
	}
	if delta.ImmediateDanger != nil {
		out.ImmediateDanger = delta.ImmediateDanger
	}
	if len(delta.ProtectiveFactors) > 0 {
		out.ProtectiveFactors = delta.ProtectiveFactors
	}
	if delta.RiskNotes != "" {
		out.RiskNotes = delta.RiskNotes
	}
	if delta.AssessedBy != "" {
		out.AssessedBy = delta.AssessedBy
	}
	if !delta.AssessedAt.IsZero() {
		out.AssessedAt = delta.AssessedAt
	}
	return out
}

// SafetyStatus tracks the immediate physical-safety picture of a case.
type SafetyStatus struct {
	ImmediateSafety   *bool  `json:"immediate_safety,omitempty"`
	MeansRestricted   *bool  `json:"means_restricted,omitempty"`
	SupportPresent    *bool  `json:"support_present,omitempty"`
	EnvironmentSecure *bool  `json:"environment_secure,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// Merge applies the non-nil fields of delta onto the receiver.
func (s SafetyStatus) Merge(delta SafetyStatus) SafetyStatus {
	out := s
	if delta.ImmediateSafety != nil {
		out.ImmediateSafety = delta.ImmediateSafety
	}
	if delta.MeansRestricted != nil {
		out.MeansRestricted = delta.MeansRestricted
	}
	if delta.SupportPresent != nil {
		out.SupportPresent = delta.SupportPresent
	}
	if delta.EnvironmentSecure != nil {
		out.EnvironmentSecure = delta.EnvironmentSecure
	}
	if delta.Notes != "" {
		out.Notes = delta.Notes
	}
	return out
}

// InterventionAction is one action taken on a case, in order.
type InterventionAction struct {
	Action      string    `json:"action"`
	PerformedBy string    `json:"performed_by"`
	PerformedAt time.Time `json:"performed_at"`
	Outcome     string    `json:"outcome,omitempty"`
}

// Disposition records how a case concluded. Set only at resolution.
type Disposition struct {
	Outcome          string `json:"outcome"`
	Referral         string `json:"referral,omitempty"`
	FollowUpRequired bool   `json:"follow_up_required"`
}

// FollowUpPlan is attached to every intervention at creation with a
// severity-derived default timeframe and updated with concrete appointments
// at resolution. Never nil on a stored case.
type FollowUpPlan struct {
	ImmediateContactWithin string     `json:"immediate_contact_within"`
	Appointments           []string   `json:"appointments,omitempty"`
	ResponsibleParty       string     `json:"responsible_party,omitempty"`
	NextContactAt          *time.Time `json:"next_contact_at,omitempty"`
}

// FollowUpTimeframe returns the default immediate-contact window for a severity.
func FollowUpTimeframe(s Severity) string {
	switch {
	case s >= SeverityCritical:
		return "within 1 hour"
	case s == SeverityHigh:
		return "within 4 hours"
	case s == SeverityModerate:
		return "within 24 hours"
	default:
		return "within 72 hours"
	}
}

// SafetyPlan is a structured, user/clinician-authored coping and
// means-restriction plan. At most one per intervention; the owning
// intervention controls its lifecycle.
type SafetyPlan struct {
	ID                uuid.UUID     `json:"id"`
	InterventionID    uuid.UUID     `json:"intervention_id"`
	UserID            string        `json:"user_id"`
	WarningSigns      []string      `json:"warning_signs"`
	CopingStrategies  []string      `json:"coping_strategies"`
	Contacts          []PlanContact `json:"contacts"`
	MeansRestrictions []string      `json:"means_restrictions"`
	ReasonsForLiving  []string      `json:"reasons_for_living"`
	CrisisHotlines    []string      `json:"crisis_hotlines"`
	CreatedAt         time.Time     `json:"created_at"`
	LastReviewed      time.Time     `json:"last_reviewed"`
}

// PlanContact is one support or professional contact on a safety plan.
type PlanContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Kind         string `json:"kind,omitempty"` // personal | professional | hotline
}

// CrisisIntervention is a persisted, stateful case record tracking a user's
// crisis episode end to end. Mutated only through the state machine's
// transitions; terminal cases are retained for audit and follow-up.
type CrisisIntervention struct {
	ID            uuid.UUID            `json:"id"`
	UserID        string               `json:"user_id"`
	CrisisType    CrisisType           `json:"crisis_type"`
	Severity      Severity             `json:"severity"`
	Status        InterventionStatus   `json:"status"`
	Description   string               `json:"description,omitempty"`
	InitiatedBy   string               `json:"initiated_by"`
	AssignedTo    string               `json:"assigned_to,omitempty"`
	ReportedAt    time.Time            `json:"reported_at"`
	ResolvedAt    *time.Time           `json:"resolved_at,omitempty"`
	Actions       []InterventionAction `json:"actions"`
	Risk          RiskAssessment       `json:"risk"`
	Safety        SafetyStatus         `json:"safety"`
	SafetyPlanID  *uuid.UUID           `json:"safety_plan_id,omitempty"`
	FollowUp      FollowUpPlan         `json:"follow_up"`
	Disposition   *Disposition         `json:"disposition,omitempty"`
	Effectiveness *int                 `json:"effectiveness,omitempty"` // 1..10, set at resolution
	Narrative     []string             `json:"narrative,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// ActiveCrisisFilters narrows GetActiveCrises results.
type ActiveCrisisFilters struct {
	Severity   *Severity
	CrisisType *CrisisType
	AssignedTo *string
}
