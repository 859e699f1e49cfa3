package extract

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/mamori/internal/lexicon"
	"github.com/ashita-ai/mamori/internal/model"
)

func testInput(t *testing.T, text, langTag string) Input {
	t.Helper()
	store, err := lexicon.Load(slog.Default(), lexicon.DefaultFS())
	require.NoError(t, err)
	return Input{
		UserID:     "user-1",
		Raw:        text,
		Normalized: lexicon.Normalize(text),
		Language:   store.Resolve(langTag),
	}
}

func details(indicators []model.Indicator) []string {
	out := make([]string, 0, len(indicators))
	for _, in := range indicators {
		out = append(out, in.Detail)
	}
	return out
}

func TestKeywordExtractor(t *testing.T) {
	var e KeywordExtractor
	ctx := context.Background()

	t.Run("immediate tier", func(t *testing.T) {
		got, err := e.Extract(ctx, testInput(t, "I want to kill myself tonight, and I have a plan.", "en"))
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Contains(t, details(got), "kill myself")
		for _, in := range got {
			if in.Detail == "kill myself" {
				assert.Equal(t, model.SeverityImmediate, in.Severity)
				assert.Equal(t, lexicon.ConfidenceImmediate, in.Confidence)
				assert.Equal(t, model.IndicatorKeyword, in.Kind)
			}
		}
	})

	t.Run("moderate tier in spanish", func(t *testing.T) {
		got, err := e.Extract(ctx, testInput(t, "Estoy deprimido y ansioso", "es"))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.ElementsMatch(t, []string{"deprimido", "ansioso"}, details(got))
		for _, in := range got {
			assert.Equal(t, model.SeverityModerate, in.Severity)
			assert.Equal(t, lexicon.ConfidenceModerate, in.Confidence)
			assert.Equal(t, "es", in.Language)
		}
	})

	t.Run("benign text", func(t *testing.T) {
		got, err := e.Extract(ctx, testInput(t, "I had a pretty good day today", "en"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("word boundaries", func(t *testing.T) {
		// "numbers" must not match the keyword "numb".
		got, err := e.Extract(ctx, testInput(t, "I crunched numbers all afternoon", "en"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestPatternExtractor(t *testing.T) {
	var e PatternExtractor
	ctx := context.Background()

	t.Run("plan mention", func(t *testing.T) {
		got, err := e.Extract(ctx, testInput(t, "I want to kill myself tonight, and I have a plan.", "en"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, lexicon.FamilyPlanMentions, got[0].Detail)
		assert.Equal(t, model.SeverityCritical, got[0].Severity)
		assert.Equal(t, model.IndicatorPattern, got[0].Kind)
	})

	t.Run("one indicator per family", func(t *testing.T) {
		got, err := e.Extract(ctx, testInput(t, "I have a plan. I have it planned down to the hour.", "en"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, lexicon.FamilyPlanMentions, got[0].Detail)
	})

	t.Run("multiple families", func(t *testing.T) {
		got, err := e.Extract(ctx, testInput(t, "No one would miss me. There is no way out.", "en"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{lexicon.FamilyIsolation, lexicon.FamilyHopelessness}, details(got))
	})

	t.Run("benign text", func(t *testing.T) {
		got, err := e.Extract(ctx, testInput(t, "We planned a birthday party for Saturday", "en"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestLinguisticExtractor(t *testing.T) {
	e := LinguisticExtractor{Config: DefaultLinguisticConfig()}
	ctx := context.Background()

	t.Run("fragmented and negation heavy", func(t *testing.T) {
		got, err := e.Extract(ctx, testInput(t, "Can't sleep. Can't eat. Nothing helps. It hurts.", "en"))
		require.NoError(t, err)
		assert.Contains(t, details(got), "fragmented_speech")
		assert.Contains(t, details(got), "negation_heavy")
	})

	t.Run("self focused", func(t *testing.T) {
		got, err := e.Extract(ctx, testInput(t, "I hate what I did and I blame myself for all of it", "en"))
		require.NoError(t, err)
		assert.Contains(t, details(got), "self_focused")
	})

	t.Run("benign text", func(t *testing.T) {
		got, err := e.Extract(ctx, testInput(t, "The weather was lovely for the whole long weekend", "en"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("too few sentences for fragmentation", func(t *testing.T) {
		got, err := e.Extract(ctx, testInput(t, "Short one. Short two.", "en"))
		require.NoError(t, err)
		assert.NotContains(t, details(got), "fragmented_speech")
	})

	t.Run("empty text", func(t *testing.T) {
		got, err := e.Extract(ctx, testInput(t, "...", "en"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestTypingExtractor(t *testing.T) {
	ctx := context.Background()

	newInput := func(t *testing.T, b *model.TypingBehavior) Input {
		in := testInput(t, "just checking in", "en")
		in.Behavior = b
		return in
	}

	t.Run("nil behavior", func(t *testing.T) {
		e := TypingExtractor{History: NewBehaviorHistory(10)}
		got, err := e.Extract(ctx, newInput(t, nil))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("speed deviation against baseline", func(t *testing.T) {
		hist := NewBehaviorHistory(10)
		hist.Record("user-1", 60)
		hist.Record("user-1", 64)

		e := TypingExtractor{History: hist}
		got, err := e.Extract(ctx, newInput(t, &model.TypingBehavior{AvgTypingSpeed: 25}))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "typing_speed_deviation", got[0].Detail)
		assert.Equal(t, model.IndicatorBehavioral, got[0].Kind)
		assert.Equal(t, model.SeverityModerate, got[0].Severity)
	})

	t.Run("no baseline means no deviation signal", func(t *testing.T) {
		e := TypingExtractor{History: NewBehaviorHistory(10)}
		got, err := e.Extract(ctx, newInput(t, &model.TypingBehavior{AvgTypingSpeed: 25}))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("hesitation and deletion", func(t *testing.T) {
		e := TypingExtractor{History: NewBehaviorHistory(10)}
		got, err := e.Extract(ctx, newInput(t, &model.TypingBehavior{
			HesitationScore: 0.85,
			DeletionRate:    0.45,
		}))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"high_hesitation", "high_deletion_rate"}, details(got))

		// Hesitation is the stronger distress signal; deletion alone must
		// not push an otherwise clean assessment over the crisis threshold.
		for _, in := range got {
			switch in.Detail {
			case "high_hesitation":
				assert.Equal(t, model.SeverityModerate, in.Severity)
			case "high_deletion_rate":
				assert.Equal(t, model.SeverityLow, in.Severity)
			}
		}
	})

	t.Run("zero speed leaves the baseline untouched", func(t *testing.T) {
		hist := NewBehaviorHistory(10)
		hist.Record("user-1", 60)

		e := TypingExtractor{History: hist}
		_, err := e.Extract(ctx, newInput(t, &model.TypingBehavior{DeletionRate: 0.45}))
		require.NoError(t, err)

		baseline, ok := hist.Baseline("user-1")
		require.True(t, ok)
		assert.InDelta(t, 60, baseline, 0.001)
	})

	t.Run("sample recorded after scoring", func(t *testing.T) {
		hist := NewBehaviorHistory(10)
		e := TypingExtractor{History: hist}

		_, err := e.Extract(ctx, newInput(t, &model.TypingBehavior{AvgTypingSpeed: 50}))
		require.NoError(t, err)

		baseline, ok := hist.Baseline("user-1")
		require.True(t, ok)
		assert.InDelta(t, 50, baseline, 0.001)
	})
}

func TestBehaviorHistoryWindow(t *testing.T) {
	hist := NewBehaviorHistory(10)
	for i := 0; i < 25; i++ {
		hist.Record("user-1", float64(i))
	}

	// Only the last 10 samples (15..24) remain: mean 19.5.
	baseline, ok := hist.Baseline("user-1")
	require.True(t, ok)
	assert.InDelta(t, 19.5, baseline, 0.001)

	_, ok = hist.Baseline("user-2")
	assert.False(t, ok)
}

func TestDefaults(t *testing.T) {
	got := Defaults(NewBehaviorHistory(10), DefaultLinguisticConfig(), DefaultTypingConfig())
	require.Len(t, got, 4)
	names := make([]string, 0, len(got))
	for _, e := range got {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"keyword", "pattern", "linguistic", "typing"}, names)
}
