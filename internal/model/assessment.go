package model

import (
	"time"

	"github.com/google/uuid"
)

// CrisisAssessment is the aggregated, timestamped output of one analysis call.
// Immutable once produced. The short-term cache and the crisis_assessments
// table keep recent assessments for historical trend analysis; neither is a
// clinical system of record for free text.
type CrisisAssessment struct {
	ID                uuid.UUID    `json:"id"`
	UserID            string       `json:"user_id,omitempty"`
	IsInCrisis        bool         `json:"is_in_crisis"`
	Severity          Severity     `json:"severity"`
	Confidence        float64      `json:"confidence"`
	Indicators        []Indicator  `json:"indicators"`
	RiskFactors       []RiskFactor `json:"risk_factors"`
	SuggestedActions  []string     `json:"suggested_actions"`
	RequiresImmediate bool         `json:"requires_immediate"`
	Language          string       `json:"language"`
	Timestamp         time.Time    `json:"timestamp"`
	ResponseTimeMs    int64        `json:"response_time_ms"`
}
