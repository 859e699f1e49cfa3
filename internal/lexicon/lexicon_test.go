package lexicon

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Load(slog.Default(), DefaultFS())
	require.NoError(t, err)
	return s
}

func TestLoadEmbeddedDefaults(t *testing.T) {
	s := testStore(t)
	assert.ElementsMatch(t, []string{"en", "es"}, s.Supported())
}

func TestResolve(t *testing.T) {
	s := testStore(t)

	assert.Equal(t, "en", s.Resolve("").Tag)
	assert.Equal(t, "en", s.Resolve("en").Tag)
	assert.Equal(t, "en", s.Resolve("en-US").Tag)
	assert.Equal(t, "es", s.Resolve("es").Tag)
	assert.Equal(t, "es", s.Resolve("es-MX").Tag)
	// Unsupported languages fall back to the default.
	assert.Equal(t, "en", s.Resolve("zh").Tag)
	assert.Equal(t, "en", s.Resolve("not-a-tag!").Tag)
}

func TestDetect(t *testing.T) {
	s := testStore(t)

	assert.Equal(t, "en", s.Detect("I had a pretty good day today").Tag)
	assert.Equal(t, "es", s.Detect("estoy deprimido y ansioso").Tag)
	assert.Equal(t, "en", s.Detect("").Tag)
	assert.Equal(t, "en", s.Detect("???").Tag)
}

func TestPatternFamilies(t *testing.T) {
	s := testStore(t)
	en := s.Resolve("en")

	var plan *PatternFamily
	for i := range en.Patterns {
		if en.Patterns[i].Family == FamilyPlanMentions {
			plan = &en.Patterns[i]
		}
	}
	require.NotNil(t, plan, "english lexicon must carry a plan_mentions family")
	assert.True(t, plan.Match(Normalize("I want to kill myself tonight, I have a plan")))
	assert.False(t, plan.Match(Normalize("we planned a birthday party")))
}

func TestWordLists(t *testing.T) {
	s := testStore(t)
	en := s.Resolve("en")

	assert.True(t, en.IsNegation("never"))
	assert.False(t, en.IsNegation("always"))
	assert.True(t, en.IsFirstPerson("myself"))
	assert.False(t, en.IsFirstPerson("yourself"))
}

func TestTokenizeAndNormalize(t *testing.T) {
	assert.Equal(t, []string{"i", "can't", "cope"}, Tokenize("I can't cope!"))
	assert.Equal(t, "i can't cope!", Normalize("  I   CAN'T cope!  "))
	assert.Empty(t, Tokenize("...!!!"))
}
