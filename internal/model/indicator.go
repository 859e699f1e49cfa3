package model

import "time"

// IndicatorKind identifies which class of extractor produced an indicator.
type IndicatorKind string

const (
	IndicatorKeyword    IndicatorKind = "keyword"
	IndicatorPattern    IndicatorKind = "pattern"
	IndicatorBehavioral IndicatorKind = "behavioral"
	IndicatorTemporal   IndicatorKind = "temporal"
	IndicatorLinguistic IndicatorKind = "linguistic"
)

// Indicator is one atomic detected risk signal from a single extractor.
// Indicators are immutable and live only for the duration of one analysis
// call; they are folded into the resulting assessment, never stored alone.
type Indicator struct {
	Kind       IndicatorKind `json:"kind"`
	Severity   Severity      `json:"severity"`
	Confidence float64       `json:"confidence"`
	Language   string        `json:"language"`
	Detail     string        `json:"detail"`
	Timestamp  time.Time     `json:"timestamp"`
}

// FactorKind categorizes a risk factor derived from history or context.
type FactorKind string

const (
	FactorHistorical FactorKind = "historical"
	FactorContextual FactorKind = "contextual"
	FactorProtective FactorKind = "protective"
	FactorWarning    FactorKind = "warning"
)

// RiskFactor is a weighted adjustment derived from a user's history or
// context, not from the current text. Positive weight increases risk;
// negative (protective) weight decreases it.
type RiskFactor struct {
	Kind        FactorKind `json:"kind"`
	Description string     `json:"description"`
	Weight      float64    `json:"weight"`
}

// TypingBehavior is the optional typing-telemetry input to an analysis call.
type TypingBehavior struct {
	AvgTypingSpeed  float64   `json:"avg_typing_speed"` // characters per minute
	PausePatterns   []float64 `json:"pause_patterns,omitempty"`
	DeletionRate    float64   `json:"deletion_rate"`
	HesitationScore float64   `json:"hesitation_score"`
}
