// Package extract implements the signal extractors feeding the assessment
// aggregator. Each extractor analyzes one signal class (keywords, behavioral
// patterns, linguistic statistics, typing telemetry) and emits indicators.
//
// Extractors are pure with respect to the text input and safe for concurrent
// use across sessions; the typing analyzer is the one that keeps per-user
// state (a bounded sample history) and serializes access per user key.
package extract

import (
	"context"

	"github.com/ashita-ai/mamori/internal/lexicon"
	"github.com/ashita-ai/mamori/internal/model"
)

// Input is the prepared per-call input shared by all extractors.
type Input struct {
	UserID     string
	Raw        string
	Normalized string // lexicon.Normalize(Raw)
	Language   *lexicon.Language
	Behavior   *model.TypingBehavior
}

// Extractor analyzes one signal class and emits zero or more indicators.
// An error from any extractor fails the whole analysis — partial indicator
// sets are never allowed to stand in for a complete one.
//
// The interface is the substitution point for a future statistical scorer:
// the aggregator depends on "a set of extractors producing indicators",
// never on pattern syntax.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, in Input) ([]model.Indicator, error)
}

// Defaults returns the built-in extractor set in a stable order.
// history may be shared with other components that inspect typing state.
func Defaults(history *BehaviorHistory, cfg LinguisticConfig, typingCfg TypingConfig) []Extractor {
	return []Extractor{
		&KeywordExtractor{},
		&PatternExtractor{},
		&LinguisticExtractor{Config: cfg},
		&TypingExtractor{History: history, Config: typingCfg},
	}
}
