// Package history derives risk factors from a user's recent assessment
// history: escalating severity trends, repeat crisis episodes, and protective
// context such as an active safety plan. History is supplied by collaborators,
// never owned here.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ashita-ai/mamori/internal/model"
)

// Store supplies a user's recent assessments within a lookback window,
// ordered oldest first. Implemented by the storage layer, usually behind
// a Cache.
type Store interface {
	RecentAssessments(ctx context.Context, userID string, window time.Duration) ([]model.CrisisAssessment, error)
}

// CaseLookup reports protective context from the user's current case state.
type CaseLookup interface {
	HasActiveSafetyPlan(ctx context.Context, userID string) (bool, error)
}

// Factor weights. The trend and repeat weights exceed the aggregator's 0.7
// severity-raise threshold on purpose: either finding alone is enough to
// treat the user as high risk.
const (
	TrendWeight      = 0.8
	RepeatWeight     = 0.7
	ProtectiveWeight = -0.3

	// TrendRatio is the fraction of consecutive assessment pairs that must
	// be non-decreasing in severity for the trend factor to fire.
	TrendRatio = 0.6

	// minTrendAssessments guards the trend rule against firing on a single
	// pair. A flat run of benign assessments must also not count as a
	// trend, see the latest-severity check in Analyze.
	minTrendAssessments = 3

	// repeatCount is the number of crisis-positive assessments in the
	// window that marks a repeat episode.
	repeatCount = 3
)

// Analyzer produces RiskFactor adjustments for one user from externally
// supplied history.
type Analyzer struct {
	store  Store
	cases  CaseLookup
	window time.Duration
	logger *slog.Logger
}

// NewAnalyzer builds an Analyzer over the given collaborators. cases may be
// nil when no case state is available; the protective-factor rule is then
// skipped.
func NewAnalyzer(store Store, cases CaseLookup, window time.Duration, logger *slog.Logger) *Analyzer {
	return &Analyzer{store: store, cases: cases, window: window, logger: logger}
}

// Window returns the configured lookback window.
func (a *Analyzer) Window() time.Duration { return a.window }

// Analyze pulls the user's assessments within the lookback window and
// derives risk factors. An empty userID yields no factors; anonymous
// analysis carries no history.
func (a *Analyzer) Analyze(ctx context.Context, userID string) ([]model.RiskFactor, error) {
	if userID == "" {
		return nil, nil
	}

	assessments, err := a.store.RecentAssessments(ctx, userID, a.window)
	if err != nil {
		return nil, fmt.Errorf("history: recent assessments: %w", err)
	}
	sort.SliceStable(assessments, func(i, j int) bool {
		return assessments[i].Timestamp.Before(assessments[j].Timestamp)
	})

	var factors []model.RiskFactor

	if len(assessments) >= minTrendAssessments && assessments[len(assessments)-1].Severity > model.SeverityNone {
		pairs := len(assessments) - 1
		nonDecreasing := 0
		for i := 1; i < len(assessments); i++ {
			if assessments[i].Severity >= assessments[i-1].Severity {
				nonDecreasing++
			}
		}
		if float64(nonDecreasing)/float64(pairs) >= TrendRatio {
			factors = append(factors, model.RiskFactor{
				Kind:        model.FactorWarning,
				Description: "escalating severity trend across recent assessments",
				Weight:      TrendWeight,
			})
		}
	}

	crisisPositive := 0
	for _, assessment := range assessments {
		if assessment.IsInCrisis {
			crisisPositive++
		}
	}
	if crisisPositive >= repeatCount {
		factors = append(factors, model.RiskFactor{
			Kind:        model.FactorHistorical,
			Description: fmt.Sprintf("%d crisis-positive assessments in lookback window", crisisPositive),
			Weight:      RepeatWeight,
		})
	}

	if a.cases != nil {
		hasPlan, err := a.cases.HasActiveSafetyPlan(ctx, userID)
		if err != nil {
			// Protective credit is optional context. Losing it makes the
			// assessment more conservative, never less safe.
			a.logger.Warn("history: safety plan lookup failed", "user_id", userID, "error", err)
		} else if hasPlan {
			factors = append(factors, model.RiskFactor{
				Kind:        model.FactorProtective,
				Description: "active safety plan on current case",
				Weight:      ProtectiveWeight,
			})
		}
	}

	return factors, nil
}
