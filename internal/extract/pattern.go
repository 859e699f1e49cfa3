package extract

import (
	"context"
	"time"

	"github.com/ashita-ai/mamori/internal/model"
)

// PatternExtractor matches the behavioral pattern families of the resolved
// language against the normalized text: final statements, plan mentions,
// isolation language, hopelessness language, and farewell/gift-giving
// language. Only the first match per family is emitted per call.
type PatternExtractor struct{}

// Name implements Extractor.
func (e *PatternExtractor) Name() string { return "pattern" }

// Extract implements Extractor.
func (e *PatternExtractor) Extract(_ context.Context, in Input) ([]model.Indicator, error) {
	now := time.Now().UTC()

	var out []model.Indicator
	for i := range in.Language.Patterns {
		fam := &in.Language.Patterns[i]
		if !fam.Match(in.Normalized) {
			continue
		}
		// Detail carries the family name only — never the matched text, so
		// raw message content stays out of indicators and downstream logs.
		out = append(out, model.Indicator{
			Kind:       model.IndicatorPattern,
			Severity:   fam.Severity,
			Confidence: fam.Confidence,
			Language:   in.Language.Tag,
			Detail:     fam.Family,
			Timestamp:  now,
		})
	}
	return out, nil
}
