// Package lexicon loads and serves the per-language detection tables: keyword
// tiers, behavioral pattern families, and the word lists the linguistic
// analyzer needs. Default tables are embedded; a directory of JSON files can
// override them at runtime so tuning never requires a code change.
package lexicon

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/language"

	"github.com/ashita-ai/mamori/internal/model"
)

// Tier confidence is fixed per keyword tier across all languages.
const (
	ConfidenceImmediate = 0.95
	ConfidenceHigh      = 0.85
	ConfidenceModerate  = 0.75
)

// Pattern family names. The aggregator keys action overrides off these, so
// they are part of the contract between lexicon data and the engine.
const (
	FamilyFinalStatements = "final_statements"
	FamilyPlanMentions    = "plan_mentions"
	FamilyIsolation       = "isolation"
	FamilyHopelessness    = "hopelessness"
	FamilyFarewell        = "farewell"
)

// Keywords holds the three-tier keyword lexicon for one language.
type Keywords struct {
	Immediate []string `json:"immediate"`
	High      []string `json:"high"`
	Moderate  []string `json:"moderate"`
}

// PatternFamily is one behavioral pattern family: a set of alternative
// expressions with a single severity and confidence. Only the first match
// per family is reported per analysis call.
type PatternFamily struct {
	Family     string         `json:"family"`
	Severity   model.Severity `json:"severity"`
	Confidence float64        `json:"confidence"`
	Patterns   []string       `json:"patterns"`

	compiled []*regexp.Regexp
}

// Match returns true if any expression in the family matches text.
func (f *PatternFamily) Match(text string) bool {
	for _, re := range f.compiled {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Language is the full detection table for one language.
type Language struct {
	Tag           string          `json:"language"`
	Keywords      Keywords        `json:"keywords"`
	Patterns      []PatternFamily `json:"patterns"`
	NegationWords []string        `json:"negation_words"`
	FirstPerson   []string        `json:"first_person"`
	StopWords     []string        `json:"stop_words"`

	negations   map[string]bool
	firstPerson map[string]bool
	stopWords   map[string]bool
}

// IsNegation reports whether word is in this language's negation list.
func (l *Language) IsNegation(word string) bool { return l.negations[word] }

// IsFirstPerson reports whether word is a first-person pronoun.
func (l *Language) IsFirstPerson(word string) bool { return l.firstPerson[word] }

// Store holds the loaded lexicons for all supported languages and resolves
// requested or detected languages to a supported table.
type Store struct {
	languages map[string]*Language
	matcher   language.Matcher
	tags      []language.Tag
	fallback  string
	logger    *slog.Logger
}

// DefaultLanguage is the fallback when neither the caller nor detection
// yields a supported language.
const DefaultLanguage = "en"

// Load reads every *.json lexicon file from fsys and builds a Store.
// Files loaded later override earlier ones with the same language tag,
// which is how a runtime override directory layers on the embedded defaults.
func Load(logger *slog.Logger, filesystems ...fs.FS) (*Store, error) {
	s := &Store{
		languages: make(map[string]*Language),
		fallback:  DefaultLanguage,
		logger:    logger,
	}

	for _, fsys := range filesystems {
		if fsys == nil {
			continue
		}
		entries, err := fs.ReadDir(fsys, ".")
		if err != nil {
			return nil, fmt.Errorf("lexicon: read dir: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			raw, err := fs.ReadFile(fsys, entry.Name())
			if err != nil {
				return nil, fmt.Errorf("lexicon: read %s: %w", entry.Name(), err)
			}
			var lang Language
			if err := json.Unmarshal(raw, &lang); err != nil {
				return nil, fmt.Errorf("lexicon: parse %s: %w", entry.Name(), err)
			}
			if err := lang.compile(); err != nil {
				return nil, fmt.Errorf("lexicon: compile %s: %w", entry.Name(), err)
			}
			s.languages[lang.Tag] = &lang
		}
	}

	if len(s.languages) == 0 {
		return nil, fmt.Errorf("lexicon: no language tables loaded")
	}
	if _, ok := s.languages[s.fallback]; !ok {
		return nil, fmt.Errorf("lexicon: fallback language %q not loaded", s.fallback)
	}

	// Build the matcher over supported tags so BCP 47 variants ("en-US",
	// "es-MX") resolve to the right table.
	for tag := range s.languages {
		parsed, err := language.Parse(tag)
		if err != nil {
			return nil, fmt.Errorf("lexicon: invalid language tag %q: %w", tag, err)
		}
		s.tags = append(s.tags, parsed)
	}
	s.matcher = language.NewMatcher(s.tags)

	logger.Info("lexicon loaded", "languages", len(s.languages))
	return s, nil
}

func (l *Language) compile() error {
	if l.Tag == "" {
		return fmt.Errorf("missing language tag")
	}
	for i := range l.Patterns {
		fam := &l.Patterns[i]
		for _, p := range fam.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("family %s: %w", fam.Family, err)
			}
			fam.compiled = append(fam.compiled, re)
		}
	}
	l.negations = wordSet(l.NegationWords)
	l.firstPerson = wordSet(l.FirstPerson)
	l.stopWords = wordSet(l.StopWords)
	return nil
}

func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = true
	}
	return set
}

// Supported returns the loaded language tags.
func (s *Store) Supported() []string {
	out := make([]string, 0, len(s.languages))
	for tag := range s.languages {
		out = append(out, tag)
	}
	return out
}

// Resolve maps a requested BCP 47 tag to a supported lexicon table. An empty
// or unparseable tag falls back to the default language; a parseable but
// unsupported tag resolves to the closest supported match per x/text rules.
func (s *Store) Resolve(requested string) *Language {
	if requested == "" {
		return s.languages[s.fallback]
	}
	parsed, err := language.Parse(requested)
	if err != nil {
		return s.languages[s.fallback]
	}
	_, idx, conf := s.matcher.Match(parsed)
	if conf == language.No {
		return s.languages[s.fallback]
	}
	base, _ := s.tags[idx].Base()
	if lang, ok := s.languages[base.String()]; ok {
		return lang
	}
	return s.languages[s.fallback]
}

// Detect guesses the language of text by stop-word frequency across the
// loaded languages. It is a cheap heuristic sufficient for routing to the
// right keyword table; ties and unknowns fall back to the default language.
func (s *Store) Detect(text string) *Language {
	words := Tokenize(text)
	if len(words) == 0 {
		return s.languages[s.fallback]
	}

	best := s.languages[s.fallback]
	bestScore := 0
	for _, lang := range s.languages {
		score := 0
		for _, w := range words {
			if lang.stopWords[w] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = lang, score
		}
	}
	return best
}

// Tokenize lowercases text and splits it into words, dropping punctuation.
// All extractors share this so word-boundary semantics stay consistent.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '\'':
		return true
	case r >= 0x00C0: // accented letters and beyond
		return true
	default:
		return false
	}
}

// Normalize prepares raw input for matching: lowercased with collapsed
// whitespace. Keyword containment and pattern matching both run on this.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
