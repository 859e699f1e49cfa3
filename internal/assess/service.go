// Package assess implements the crisis assessment pipeline shared by the
// HTTP API and MCP handlers: concurrent signal extraction, historical risk
// adjustment, and aggregation into a single assessment with recommended
// actions.
package assess

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/mamori/internal/extract"
	"github.com/ashita-ai/mamori/internal/history"
	"github.com/ashita-ai/mamori/internal/lexicon"
	"github.com/ashita-ai/mamori/internal/model"
	"github.com/ashita-ai/mamori/internal/telemetry"
)

// EventSink receives domain events for subscribers (SSE broker, hooks).
// Delivery is best effort; a failed publish is logged, never surfaced.
type EventSink interface {
	Publish(ctx context.Context, event model.CrisisEvent) error
}

// AuditSink appends compliance records. Implementations write in the
// background with their own timeout and retry policy.
type AuditSink interface {
	Record(ctx context.Context, entry model.AuditEntry)
}

// Recorder keeps freshly produced assessments available for the historical
// analyzer's short-term window.
type Recorder interface {
	Record(a model.CrisisAssessment)
}

// Store persists assessments for trend analysis across restarts. May be nil
// when the engine runs without a database.
type Store interface {
	InsertAssessment(ctx context.Context, a model.CrisisAssessment) error
}

// Service runs the full analysis pipeline. Safe for concurrent use across
// sessions; per-user mutable state lives inside the extractors and recorder.
type Service struct {
	extractors []extract.Extractor
	lexicons   *lexicon.Store
	analyzer   *history.Analyzer
	recorder   Recorder
	store      Store
	audit      AuditSink
	events     EventSink
	logger     *slog.Logger

	analyzeDuration metric.Float64Histogram
}

// New creates the assessment Service. analyzer, recorder, store, audit, and
// events may each be nil; the corresponding step is skipped.
func New(extractors []extract.Extractor, lexicons *lexicon.Store, analyzer *history.Analyzer, recorder Recorder, store Store, audit AuditSink, events EventSink, logger *slog.Logger) *Service {
	meter := telemetry.Meter("mamori/assess")
	dur, _ := meter.Float64Histogram("mamori.analyze.duration",
		metric.WithDescription("Time to run one full analysis (ms)"),
		metric.WithUnit("ms"),
	)
	return &Service{
		extractors:      extractors,
		lexicons:        lexicons,
		analyzer:        analyzer,
		recorder:        recorder,
		store:           store,
		audit:           audit,
		events:          events,
		logger:          logger,
		analyzeDuration: dur,
	}
}

// Analyze runs every extractor over the text, folds in historical risk
// factors, and aggregates the result. An analysis either completes all
// extractors or fails; partial indicator sets are never returned, because
// under-counting indicators could mask risk.
func (s *Service) Analyze(ctx context.Context, req model.AnalyzeRequest) (model.CrisisAssessment, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return model.CrisisAssessment{}, fmt.Errorf("assess: %w", err)
	}

	normalized := lexicon.Normalize(req.Text)
	var lang *lexicon.Language
	if req.Language != "" {
		lang = s.lexicons.Resolve(req.Language)
	} else {
		lang = s.lexicons.Detect(normalized)
	}

	in := extract.Input{
		UserID:     req.UserID,
		Raw:        req.Text,
		Normalized: normalized,
		Language:   lang,
		Behavior:   req.Behavior,
	}

	// Extractor results keep their slot so the indicator order is stable
	// regardless of goroutine scheduling.
	results := make([][]model.Indicator, len(s.extractors))
	g, gctx := errgroup.WithContext(ctx)
	for i, ex := range s.extractors {
		g.Go(func() error {
			indicators, err := ex.Extract(gctx, in)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", model.ErrExtractorFailure, ex.Name(), err)
			}
			results[i] = indicators
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.CrisisAssessment{}, fmt.Errorf("assess: %w", err)
	}

	var indicators []model.Indicator
	for _, r := range results {
		indicators = append(indicators, r...)
	}

	var factors []model.RiskFactor
	if s.analyzer != nil {
		var err error
		factors, err = s.analyzer.Analyze(ctx, req.UserID)
		if err != nil {
			// History is part of the calibrated decision. Failing here is
			// safer than scoring without it: the caller falls back to its
			// conservative path instead of trusting an uncalibrated result.
			return model.CrisisAssessment{}, fmt.Errorf("assess: %w", err)
		}
	}

	agg := aggregate(indicators, factors)
	assessment := model.CrisisAssessment{
		ID:                uuid.New(),
		UserID:            req.UserID,
		IsInCrisis:        agg.isInCrisis,
		Severity:          agg.severity,
		Confidence:        agg.confidence,
		Indicators:        indicators,
		RiskFactors:       factors,
		SuggestedActions:  suggestedActions(agg.severity, indicators, factors),
		RequiresImmediate: agg.requiresImmediate,
		Language:          lang.Tag,
		Timestamp:         time.Now().UTC(),
		ResponseTimeMs:    time.Since(start).Milliseconds(),
	}

	if s.recorder != nil {
		s.recorder.Record(assessment)
	}
	s.persistAsync(assessment)
	s.emit(ctx, assessment)

	if s.analyzeDuration != nil {
		s.analyzeDuration.Record(ctx, float64(assessment.ResponseTimeMs))
	}
	s.logger.Info("analysis complete",
		"assessment_id", assessment.ID,
		"severity", assessment.Severity,
		"in_crisis", assessment.IsInCrisis,
		"indicators", len(indicators),
		"language", lang.Tag,
		"response_time_ms", assessment.ResponseTimeMs,
	)
	return assessment, nil
}

// persistAsync writes the assessment for cross-restart trend analysis.
// Best effort: the severity decision is already made and returned; a failed
// write only shrinks the historical window.
func (s *Service) persistAsync(a model.CrisisAssessment) {
	if s.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.InsertAssessment(ctx, a); err != nil {
			s.logger.Error("assess: persist assessment", "assessment_id", a.ID, "error", err)
		}
	}()
}

func (s *Service) emit(ctx context.Context, a model.CrisisAssessment) {
	if s.audit != nil {
		s.audit.Record(ctx, model.AuditEntry{
			EventType:    model.EventAssessmentProduced,
			Actor:        "engine",
			ResourceType: "assessment",
			ResourceID:   a.ID.String(),
			Details: map[string]any{
				"severity":           a.Severity.String(),
				"confidence":         a.Confidence,
				"is_in_crisis":       a.IsInCrisis,
				"requires_immediate": a.RequiresImmediate,
				"indicator_count":    len(a.Indicators),
				"language":           a.Language,
			},
			Outcome: "success",
		})
	}
	if s.events == nil {
		return
	}

	publish := func(eventType model.EventType) {
		event := model.CrisisEvent{
			Type:         eventType,
			UserID:       a.UserID,
			AssessmentID: &a.ID,
			Severity:     a.Severity,
			OccurredAt:   a.Timestamp,
		}
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Error("assess: publish event", "type", eventType, "error", err)
		}
	}

	publish(model.EventAssessmentProduced)
	if a.IsInCrisis {
		publish(model.EventCrisisDetected)
	}
	if a.RequiresImmediate {
		publish(model.EventImmediateInterventionRequired)
	}
}
