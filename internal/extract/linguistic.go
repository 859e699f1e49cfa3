package extract

import (
	"context"
	"strings"
	"time"

	"github.com/ashita-ai/mamori/internal/lexicon"
	"github.com/ashita-ai/mamori/internal/model"
)

// LinguisticConfig holds the thresholds for the statistical text heuristics.
// Zero values are replaced with the defaults below so a partially populated
// config from the environment still behaves sensibly.
type LinguisticConfig struct {
	// FragmentedAvgWords is the average sentence length, in words, below
	// which speech counts as fragmented.
	FragmentedAvgWords float64
	// FragmentedMinSentences is the minimum sentence count before the
	// fragmentation heuristic applies at all.
	FragmentedMinSentences int
	// NegationDensity is the negation-to-word ratio above which the text
	// counts as negation heavy.
	NegationDensity float64
	// FirstPersonDensity is the first-person-pronoun ratio above which the
	// text counts as excessively self focused.
	FirstPersonDensity float64
}

// DefaultLinguisticConfig returns the tuned production thresholds.
func DefaultLinguisticConfig() LinguisticConfig {
	return LinguisticConfig{
		FragmentedAvgWords:     5,
		FragmentedMinSentences: 2,
		NegationDensity:        0.15,
		FirstPersonDensity:     0.2,
	}
}

func (c LinguisticConfig) withDefaults() LinguisticConfig {
	d := DefaultLinguisticConfig()
	if c.FragmentedAvgWords <= 0 {
		c.FragmentedAvgWords = d.FragmentedAvgWords
	}
	if c.FragmentedMinSentences <= 0 {
		c.FragmentedMinSentences = d.FragmentedMinSentences
	}
	if c.NegationDensity <= 0 {
		c.NegationDensity = d.NegationDensity
	}
	if c.FirstPersonDensity <= 0 {
		c.FirstPersonDensity = d.FirstPersonDensity
	}
	return c
}

// LinguisticExtractor scores statistical properties of the text rather than
// its vocabulary: fragmented speech, negation density, and first-person
// fixation. Each heuristic contributes at most one indicator per call.
type LinguisticExtractor struct {
	Config LinguisticConfig
}

// Name implements Extractor.
func (e *LinguisticExtractor) Name() string { return "linguistic" }

// Extract implements Extractor.
func (e *LinguisticExtractor) Extract(_ context.Context, in Input) ([]model.Indicator, error) {
	cfg := e.Config.withDefaults()
	now := time.Now().UTC()

	words := lexicon.Tokenize(in.Raw)
	if len(words) == 0 {
		return nil, nil
	}

	var out []model.Indicator

	if sentences := splitSentences(in.Raw); len(sentences) > cfg.FragmentedMinSentences {
		total := 0
		for _, s := range sentences {
			total += len(lexicon.Tokenize(s))
		}
		avg := float64(total) / float64(len(sentences))
		if avg < cfg.FragmentedAvgWords {
			out = append(out, model.Indicator{
				Kind:       model.IndicatorLinguistic,
				Severity:   model.SeverityModerate,
				Confidence: 0.6,
				Language:   in.Language.Tag,
				Detail:     "fragmented_speech",
				Timestamp:  now,
			})
		}
	}

	negations := 0
	firstPerson := 0
	for _, w := range words {
		if in.Language.IsNegation(w) {
			negations++
		}
		if in.Language.IsFirstPerson(w) {
			firstPerson++
		}
	}

	if density := float64(negations) / float64(len(words)); density > cfg.NegationDensity {
		out = append(out, model.Indicator{
			Kind:       model.IndicatorLinguistic,
			Severity:   model.SeverityModerate,
			Confidence: 0.6,
			Language:   in.Language.Tag,
			Detail:     "negation_heavy",
			Timestamp:  now,
		})
	}

	if density := float64(firstPerson) / float64(len(words)); density > cfg.FirstPersonDensity {
		out = append(out, model.Indicator{
			Kind:       model.IndicatorLinguistic,
			Severity:   model.SeverityLow,
			Confidence: 0.5,
			Language:   in.Language.Tag,
			Detail:     "self_focused",
			Timestamp:  now,
		})
	}

	return out, nil
}

// splitSentences breaks text on terminal punctuation. Empty fragments, as
// produced by "..." or trailing punctuation, are dropped.
func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
