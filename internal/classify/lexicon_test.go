package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prodpulse/prodpulse/internal/models"
)

func TestLexicon_Score(t *testing.T) {
	lexicon := NewLexicon()

	tests := []struct {
		name          string
		text          string
		wantSentiment string
	}{
		{"positive words", "this app is great and reliable", models.SentimentPositive},
		{"negative words", "terrible and buggy, it crashes constantly", models.SentimentNegative},
		{"no sentiment words", "the package arrived on tuesday", models.SentimentNeutral},
		{"negated positive flips", "not good at all honestly", models.SentimentNegative},
		{"negated negative flips", "not bad for the price honestly", models.SentimentPositive},
		{"empty text", "", models.SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sentiment, score := lexicon.Score(tt.text)

			assert.Equal(t, tt.wantSentiment, sentiment)
			assert.GreaterOrEqual(t, score, -1.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}

	t.Run("empty text scores zero", func(t *testing.T) {
		_, score := lexicon.Score("")

		assert.Zero(t, score)
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		s1, c1 := lexicon.Score("love the design, hate the battery")
		s2, c2 := lexicon.Score("love the design, hate the battery")

		assert.Equal(t, s1, s2)
		assert.Equal(t, c1, c2)
	})
}
