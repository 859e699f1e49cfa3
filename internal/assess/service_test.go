package assess

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/mamori/internal/extract"
	"github.com/ashita-ai/mamori/internal/history"
	"github.com/ashita-ai/mamori/internal/lexicon"
	"github.com/ashita-ai/mamori/internal/model"
)

type capturingSink struct {
	mu      sync.Mutex
	events  []model.CrisisEvent
	entries []model.AuditEntry
}

func (c *capturingSink) Publish(_ context.Context, event model.CrisisEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturingSink) Record(_ context.Context, entry model.AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *capturingSink) eventTypes() []model.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.EventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

type stubHistoryStore struct {
	assessments []model.CrisisAssessment
}

func (s *stubHistoryStore) RecentAssessments(_ context.Context, _ string, _ time.Duration) ([]model.CrisisAssessment, error) {
	return s.assessments, nil
}

type failingExtractor struct{}

func (failingExtractor) Name() string { return "failing" }
func (failingExtractor) Extract(context.Context, extract.Input) ([]model.Indicator, error) {
	return nil, errors.New("boom")
}

func newTestService(t *testing.T, historical []model.CrisisAssessment) (*Service, *capturingSink) {
	t.Helper()
	store, err := lexicon.Load(slog.Default(), lexicon.DefaultFS())
	require.NoError(t, err)

	extractors := extract.Defaults(
		extract.NewBehaviorHistory(10),
		extract.DefaultLinguisticConfig(),
		extract.DefaultTypingConfig(),
	)
	analyzer := history.NewAnalyzer(&stubHistoryStore{assessments: historical}, nil, 24*time.Hour, slog.Default())
	sink := &capturingSink{}
	svc := New(extractors, store, analyzer, nil, nil, sink, sink, slog.Default())
	return svc, sink
}

func TestAnalyzeImmediateCrisis(t *testing.T) {
	svc, sink := newTestService(t, nil)

	got, err := svc.Analyze(context.Background(), model.AnalyzeRequest{
		Text:   "I want to kill myself tonight, I have a plan",
		UserID: "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, model.SeverityImmediate, got.Severity)
	assert.True(t, got.IsInCrisis)
	assert.True(t, got.RequiresImmediate)
	assert.Equal(t, "en", got.Language)

	var hasImmediateKeyword, hasPlanPattern bool
	for _, in := range got.Indicators {
		if in.Kind == model.IndicatorKeyword && in.Severity == model.SeverityImmediate {
			hasImmediateKeyword = true
		}
		if in.Kind == model.IndicatorPattern && in.Detail == lexicon.FamilyPlanMentions {
			hasPlanPattern = true
		}
	}
	assert.True(t, hasImmediateKeyword, "expected an immediate keyword indicator")
	assert.True(t, hasPlanPattern, "expected a plan-mention pattern indicator")

	require.NotEmpty(t, got.SuggestedActions)
	assert.Equal(t, "URGENT: remove access to means", got.SuggestedActions[0])
	assert.Contains(t, got.SuggestedActions, "connect to emergency services")

	assert.Equal(t, []model.EventType{
		model.EventAssessmentProduced,
		model.EventCrisisDetected,
		model.EventImmediateInterventionRequired,
	}, sink.eventTypes())
	require.Len(t, sink.entries, 1)
	assert.Equal(t, model.EventAssessmentProduced, sink.entries[0].EventType)
}

func TestAnalyzeSpanishModerate(t *testing.T) {
	svc, _ := newTestService(t, nil)

	got, err := svc.Analyze(context.Background(), model.AnalyzeRequest{
		Text: "estoy deprimido y ansioso",
	})
	require.NoError(t, err)

	assert.Equal(t, "es", got.Language)
	assert.Equal(t, model.SeverityModerate, got.Severity)
	assert.True(t, got.IsInCrisis)
	assert.False(t, got.RequiresImmediate)
}

func TestAnalyzeBenign(t *testing.T) {
	svc, sink := newTestService(t, nil)

	got, err := svc.Analyze(context.Background(), model.AnalyzeRequest{
		Text: "I had a pretty good day today",
	})
	require.NoError(t, err)

	assert.Empty(t, got.Indicators)
	assert.Equal(t, model.SeverityNone, got.Severity)
	assert.False(t, got.IsInCrisis)
	assert.Equal(t, []model.EventType{model.EventAssessmentProduced}, sink.eventTypes())
}

func TestAnalyzeEscalatingHistory(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	historical := []model.CrisisAssessment{
		{UserID: "user-1", Severity: model.SeverityModerate, IsInCrisis: true, Timestamp: base},
		{UserID: "user-1", Severity: model.SeverityHigh, IsInCrisis: true, Timestamp: base.Add(time.Minute)},
		{UserID: "user-1", Severity: model.SeverityCritical, IsInCrisis: true, Timestamp: base.Add(2 * time.Minute)},
	}
	svc, _ := newTestService(t, historical)

	got, err := svc.Analyze(context.Background(), model.AnalyzeRequest{
		Text:   "estoy deprimido",
		UserID: "user-1",
	})
	require.NoError(t, err)

	var warning *model.RiskFactor
	for i := range got.RiskFactors {
		if got.RiskFactors[i].Kind == model.FactorWarning {
			warning = &got.RiskFactors[i]
		}
	}
	require.NotNil(t, warning, "expected a warning factor from the escalating run")
	assert.GreaterOrEqual(t, warning.Weight, 0.8)
	assert.GreaterOrEqual(t, got.Severity, model.SeverityHigh)
}

func TestAnalyzeIdempotence(t *testing.T) {
	svc, _ := newTestService(t, nil)
	req := model.AnalyzeRequest{Text: "No one would miss me. I feel hopeless.", UserID: "user-1"}

	first, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Severity, second.Severity)
	assert.Equal(t, first.IsInCrisis, second.IsInCrisis)
	assert.Equal(t, first.Confidence, second.Confidence)
	require.Len(t, second.Indicators, len(first.Indicators))
	for i := range first.Indicators {
		assert.Equal(t, first.Indicators[i].Kind, second.Indicators[i].Kind)
		assert.Equal(t, first.Indicators[i].Detail, second.Indicators[i].Detail)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty text", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		_, err := svc.Analyze(ctx, model.AnalyzeRequest{})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("extractor failure fails the whole analysis", func(t *testing.T) {
		store, err := lexicon.Load(slog.Default(), lexicon.DefaultFS())
		require.NoError(t, err)
		svc := New([]extract.Extractor{&extract.KeywordExtractor{}, failingExtractor{}}, store, nil, nil, nil, nil, nil, slog.Default())

		_, err = svc.Analyze(ctx, model.AnalyzeRequest{Text: "I feel hopeless"})
		assert.ErrorIs(t, err, model.ErrExtractorFailure)
	})
}

func TestAnalyzeUnsupportedLanguageFallsBack(t *testing.T) {
	svc, _ := newTestService(t, nil)

	got, err := svc.Analyze(context.Background(), model.AnalyzeRequest{
		Text:     "I feel hopeless",
		Language: "zh-CN",
	})
	require.NoError(t, err)
	assert.Equal(t, "en", got.Language)
	assert.NotEmpty(t, got.Indicators)
}
