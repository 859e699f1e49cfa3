package model

import (
	"fmt"
	"time"
)

// Field length limits on analysis input. These keep a single oversized
// message from blowing out extractor regex scans and Postgres TEXT columns.
const (
	MaxAnalysisTextLen = 32 * 1024 // 32 KB
	MaxActionLen       = 2 * 1024
	MaxNotesLen        = 16 * 1024
)

// AnalyzeRequest is the request body for POST /v1/analyze.
type AnalyzeRequest struct {
	Text     string          `json:"text"`
	UserID   string          `json:"user_id,omitempty"`
	Language string          `json:"language,omitempty"`
	Behavior *TypingBehavior `json:"behavior,omitempty"`
}

// Validate checks input bounds before any extractor runs.
func (r AnalyzeRequest) Validate() error {
	if r.Text == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	if len(r.Text) > MaxAnalysisTextLen {
		return fmt.Errorf("%w: text exceeds %d bytes", ErrInvalidInput, MaxAnalysisTextLen)
	}
	return nil
}

// InitiateRequest is the request body for POST /v1/interventions.
type InitiateRequest struct {
	UserID       string     `json:"user_id"`
	CrisisType   CrisisType `json:"crisis_type"`
	InitiatedBy  string     `json:"initiated_by"`
	Description  string     `json:"description,omitempty"`
	SeverityHint *Severity  `json:"severity_hint,omitempty"`
}

// Validate checks required initiation fields.
func (r InitiateRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if r.InitiatedBy == "" {
		return fmt.Errorf("%w: initiated_by is required", ErrInvalidInput)
	}
	if !ValidCrisisType(r.CrisisType) {
		return fmt.Errorf("%w: %q", ErrInvalidCrisisType, r.CrisisType)
	}
	return nil
}

// ActionInput is one new intervention action in an update request.
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

// Validate checks required update fields.
func (r UpdateRequest) Validate() error {
	if r.AssessorID == "" {
		return fmt.Errorf("%w: assessor_id is required", ErrInvalidInput)
	}
	for i, a := range r.Actions {
		if a.Action == "" {
			return fmt.Errorf("%w: actions[%d].action is required", ErrInvalidInput, i)
		}
		if len(a.Action) > MaxActionLen {
			return fmt.Errorf("%w: actions[%d].action exceeds %d bytes", ErrInvalidInput, i, MaxActionLen)
		}
	}
	return nil
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

// Validate checks required safety-plan fields.
func (r SafetyPlanRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return nil
}

// ResolveRequest is the request body for POST /v1/interventions/{id}/resolve.
type ResolveRequest struct {
	Disposition        Disposition `json:"disposition"`
	Effectiveness      int         `json:"effectiveness"`
	ClientSatisfaction *int        `json:"client_satisfaction,omitempty"`
	FinalNotes         string      `json:"final_notes,omitempty"`
	ResolverID         string      `json:"resolver_id"`
}

// Validate checks resolution bounds.
func (r ResolveRequest) Validate() error {
	if r.ResolverID == "" {
		return fmt.Errorf("%w: resolver_id is required", ErrInvalidInput)
	}
	if r.Effectiveness < 1 || r.Effectiveness > 10 {
		return fmt.Errorf("%w: effectiveness must be between 1 and 10", ErrInvalidInput)
	}
	if r.Disposition.Outcome == "" {
		return fmt.Errorf("%w: disposition.outcome is required", ErrInvalidInput)
	}
	if len(r.FinalNotes) > MaxNotesLen {
		return fmt.Errorf("%w: final_notes exceeds %d bytes", ErrInvalidInput, MaxNotesLen)
	}
	return nil
}

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeInvalidCrisisType = "INVALID_CRISIS_TYPE"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyResolved   = "ALREADY_RESOLVED"
	ErrCodeOwnershipMismatch = "OWNERSHIP_MISMATCH"
	ErrCodeExtractorFailure  = "EXTRACTOR_FAILURE"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeRateLimited       = "RATE_LIMITED"
)

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Postgres  string `json:"postgres"`
	SSEBroker string `json:"sse_broker,omitempty"`
	Uptime    int64  `json:"uptime_seconds"`
}
