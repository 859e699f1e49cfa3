package extract

import (
	"context"
	"strings"
	"time"

	"github.com/ashita-ai/mamori/internal/lexicon"
	"github.com/ashita-ai/mamori/internal/model"
)

// KeywordExtractor matches the language-scoped three-tier keyword lexicon
// against the normalized text. Each distinct matched keyword yields one
// indicator with tier-fixed severity and confidence; repeated occurrences of
// the same keyword within one call are not duplicated.
type KeywordExtractor struct{}

// Name implements Extractor.
func (e *KeywordExtractor) Name() string { return "keyword" }

// Extract implements Extractor.
func (e *KeywordExtractor) Extract(_ context.Context, in Input) ([]model.Indicator, error) {
	now := time.Now().UTC()

	var out []model.Indicator
	emit := func(keywords []string, severity model.Severity, confidence float64) {
		for _, kw := range keywords {
			if containsKeyword(in.Normalized, kw) {
				out = append(out, model.Indicator{
					Kind:       model.IndicatorKeyword,
					Severity:   severity,
					Confidence: confidence,
					Language:   in.Language.Tag,
					Detail:     kw,
					Timestamp:  now,
				})
			}
		}
	}

	emit(in.Language.Keywords.Immediate, model.SeverityImmediate, lexicon.ConfidenceImmediate)
	emit(in.Language.Keywords.High, model.SeverityHigh, lexicon.ConfidenceHigh)
	emit(in.Language.Keywords.Moderate, model.SeverityModerate, lexicon.ConfidenceModerate)
	return out, nil
}

// containsKeyword reports whether the normalized text contains the keyword
// with word boundaries on both sides. Multi-word keywords match as phrases.
func containsKeyword(text, keyword string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], keyword)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(keyword)
		beforeOK := idx == 0 || !isWordByte(text[idx-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 0x80
}
