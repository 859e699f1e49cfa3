package mamori

import (
	"time"

	"github.com/google/uuid"
)

// Severity names as they appear on the wire, ordered none < low < moderate <
// high < critical < immediate.
const (
	SeverityNone      = "none"
	SeverityLow       = "low"
	SeverityModerate  = "moderate"
	SeverityHigh      = "high"
	SeverityCritical  = "critical"
	SeverityImmediate = "immediate"
)

// Crisis type names accepted by Initiate.
const (
	CrisisSuicideAttempt    = "suicide_attempt"
	CrisisOverdose          = "overdose"
	CrisisHomicidalIdeation = "homicidal_ideation"
	CrisisPsychosis         = "psychosis"
	CrisisSuicidalIdeation  = "suicidal_ideation"
	CrisisSelfHarm          = "self_harm"
	CrisisSevereDepression  = "severe_depression"
	CrisisMania             = "mania"
	CrisisPanicAttack       = "panic_attack"
	CrisisAcuteAnxiety      = "acute_anxiety"
	CrisisOther             = "other"
)

// Intervention status names.
const (
	StatusActive      = "active"
	StatusStabilized  = "stabilized"
	StatusResolved    = "resolved"
	StatusEscalated   = "escalated"
	StatusTransferred = "transferred"
)

// TypingBehavior is optional typing telemetry submitted with an analysis.
type TypingBehavior struct {
	AvgTypingSpeed  float64   `json:"avg_typing_speed"` // characters per minute
	PausePatterns   []float64 `json:"pause_patterns,omitempty"`
	DeletionRate    float64   `json:"deletion_rate"`
	HesitationScore float64   `json:"hesitation_score"`
}

// AnalyzeRequest is the request body for POST /v1/analyze.
type AnalyzeRequest struct {
	Text     string          `json:"text"`
	UserID   string          `json:"user_id,omitempty"`
	Language string          `json:"language,omitempty"`
	Behavior *TypingBehavior `json:"behavior,omitempty"`
}

// Indicator is one detected risk signal in an assessment.
type Indicator struct {
	Kind       string    `json:"kind"`
	Severity   string    `json:"severity"`
	Confidence float64   `json:"confidence"`
	Language   string    `json:"language"`
	Detail     string    `json:"detail"`
	Timestamp  time.Time `json:"timestamp"`
}

// RiskFactor is a weighted adjustment derived from the user's history.
type RiskFactor struct {
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// Assessment is the result of one analysis call.
type Assessment struct {
	ID                uuid.UUID    `json:"id"`
	UserID            string       `json:"user_id,omitempty"`
	IsInCrisis        bool         `json:"is_in_crisis"`
	Severity          string       `json:"severity"`
	Confidence        float64      `json:"confidence"`
	Indicators        []Indicator  `json:"indicators"`
	RiskFactors       []RiskFactor `json:"risk_factors"`
	SuggestedActions  []string     `json:"suggested_actions"`
	RequiresImmediate bool         `json:"requires_immediate"`
	Language          string       `json:"language"`
	Timestamp         time.Time    `json:"timestamp"`
	ResponseTimeMs    int64        `json:"response_time_ms"`
}

// RiskAssessment is the structured clinical risk snapshot stored on a case.
// In update requests, absent fields mean "unchanged".
type RiskAssessment struct {
	RiskLevel         string    `json:"risk_level,omitempty"` // low | moderate | high | imminent
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

// SafetyStatus tracks the immediate physical-safety picture of a case.
type SafetyStatus struct {
	ImmediateSafety   *bool  `json:"immediate_safety,omitempty"`
	MeansRestricted   *bool  `json:"means_restricted,omitempty"`
	SupportPresent    *bool  `json:"support_present,omitempty"`
	EnvironmentSecure *bool  `json:"environment_secure,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// InterventionAction is one action taken on a case, in order.
type InterventionAction struct {
	Action      string    `json:"action"`
	PerformedBy string    `json:"performed_by"`
	PerformedAt time.Time `json:"performed_at"`
	Outcome     string    `json:"outcome,omitempty"`
}

// Disposition records how a case concluded.
type Disposition struct {
	Outcome          string `json:"outcome"`
	Referral         string `json:"referral,omitempty"`
	FollowUpRequired bool   `json:"follow_up_required"`
}

// FollowUpPlan is the post-case contact plan. Never absent on a stored case.
type FollowUpPlan struct {
	ImmediateContactWithin string     `json:"immediate_contact_within"`
	Appointments           []string   `json:"appointments,omitempty"`
	ResponsibleParty       string     `json:"responsible_party,omitempty"`
	NextContactAt          *time.Time `json:"next_contact_at,omitempty"`
}

// PlanContact is one support or professional contact on a safety plan.
type PlanContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Kind         string `json:"kind,omitempty"` // personal | professional | hotline
}

// SafetyPlan is a structured coping and means-restriction plan attached to a
// case.
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

// Intervention is a crisis case record.
type Intervention struct {
	ID            uuid.UUID            `json:"id"`
	UserID        string               `json:"user_id"`
	CrisisType    string               `json:"crisis_type"`
	Severity      string               `json:"severity"`
	Status        string               `json:"status"`
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
	Effectiveness *int                 `json:"effectiveness,omitempty"`
	Narrative     []string             `json:"narrative,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// InitiateRequest is the request body for POST /v1/interventions.
type InitiateRequest struct {
	UserID       string  `json:"user_id"`
	CrisisType   string  `json:"crisis_type"`
	InitiatedBy  string  `json:"initiated_by"`
	Description  string  `json:"description,omitempty"`
	SeverityHint *string `json:"severity_hint,omitempty"`
}

// ActionInput is one action recorded during an assessment update.
type ActionInput struct {
	Action  string `json:"action"`
	Outcome string `json:"outcome,omitempty"`
}

// UpdateRequest is the request body for POST /v1/interventions/{id}/assessment.
type UpdateRequest struct {
	Risk       RiskAssessment `json:"risk"`
	Safety     *SafetyStatus  `json:"safety,omitempty"`
	Actions    []ActionInput  `json:"actions,omitempty"`
	AssessorID string         `json:"assessor_id"`
}

// SafetyPlanRequest is the request body for POST /v1/interventions/{id}/safety-plan.
type SafetyPlanRequest struct {
	UserID            string        `json:"user_id"`
	WarningSigns      []string      `json:"warning_signs,omitempty"`
	CopingStrategies  []string      `json:"coping_strategies,omitempty"`
	Contacts          []PlanContact `json:"contacts,omitempty"`
	MeansRestrictions []string      `json:"means_restrictions,omitempty"`
	ReasonsForLiving  []string      `json:"reasons_for_living,omitempty"`
	CrisisHotlines    []string      `json:"crisis_hotlines,omitempty"`
}

// ResolveRequest is the request body for POST /v1/interventions/{id}/resolve.
type ResolveRequest struct {
	Disposition        Disposition `json:"disposition"`
	Effectiveness      int         `json:"effectiveness"` // 1..10
	ClientSatisfaction *int        `json:"client_satisfaction,omitempty"`
	FinalNotes         string      `json:"final_notes,omitempty"`
	ResolverID         string      `json:"resolver_id"`
}

// AuditRecord is one append-only compliance record for a case.
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

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Postgres  string `json:"postgres"`
	SSEBroker string `json:"sse_broker,omitempty"`
	Uptime    int64  `json:"uptime_seconds"`
}
