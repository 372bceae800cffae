package classify

import (
	"strings"

	"github.com/prodpulse/prodpulse/internal/models"
)

// Thresholds on the compound score, mirroring common lexicon scorers: the
// band (-0.05, 0.05) is neutral.
const (
	positiveThreshold = 0.05
	negativeThreshold = -0.05
)

// Lexicon is the deterministic fallback scorer. It never calls an external
// service and never fails, producing sentiment only (no aspects).
type Lexicon struct {
	positive map[string]struct{}
	negative map[string]struct{}
	negators map[string]struct{}
}

// NewLexicon builds the scorer with its built-in vocabulary.
func NewLexicon() *Lexicon {
	return &Lexicon{
		positive: wordSet(
			"good", "great", "excellent", "amazing", "awesome", "love",
			"loved", "loves", "fantastic", "wonderful", "best", "perfect",
			"nice", "happy", "fast", "reliable", "intuitive", "solid",
			"smooth", "beautiful", "helpful", "impressive", "easy",
			"recommend", "delightful", "enjoy", "enjoyed", "pleasant",
			"superb", "brilliant", "flawless", "stable", "responsive",
		),
		negative: wordSet(
			"bad", "terrible", "awful", "horrible", "hate", "hated",
			"hates", "worst", "broken", "slow", "buggy", "crash",
			"crashes", "crashed", "unusable", "disappointing",
			"disappointed", "useless", "annoying", "frustrating",
			"frustrated", "laggy", "expensive", "confusing", "poor",
			"ugly", "unreliable", "painful", "garbage", "refund",
			"regret", "glitchy", "unstable", "clunky",
		),
		negators: wordSet("not", "no", "never", "dont", "don't", "cant", "can't", "isnt", "isn't", "wont", "won't"),
	}
}

// Score returns (sentiment, compound) for the text. A negator flips the
// polarity of the sentiment word that follows it. The compound score is the
// net polarity over all tokens, clamped to [-1, 1].
func (l *Lexicon) Score(text string) (string, float64) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return models.SentimentNeutral, 0
	}

	var (
		net     float64
		negated bool
	)

	for _, token := range tokens {
		if _, ok := l.negators[token]; ok {
			negated = true
			continue
		}

		polarity := 0.0

		if _, ok := l.positive[token]; ok {
			polarity = 1
		} else if _, ok := l.negative[token]; ok {
			polarity = -1
		}

		if polarity != 0 && negated {
			polarity = -polarity
		}

		if polarity != 0 {
			negated = false
		}

		net += polarity
	}

	compound := net / float64(len(tokens))
	compound = max(-1, min(1, compound))

	switch {
	case compound >= positiveThreshold:
		return models.SentimentPositive, compound
	case compound <= negativeThreshold:
		return models.SentimentNegative, compound
	default:
		return models.SentimentNeutral, compound
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '\'':
			return false
		default:
			return true
		}
	})
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))

	for _, w := range words {
		set[w] = struct{}{}
	}

	return set
}
