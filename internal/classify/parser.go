package classify

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prodpulse/prodpulse/internal/models"
)

// ErrInvalidResponse marks a provider response that could not be parsed or
// failed validation. It is permanent: the caller falls back instead of retrying.
var ErrInvalidResponse = errors.New("classify: invalid provider response")

// expectedAspects is the closed vocabulary the primary provider is prompted
// with; anything outside it is dropped during validation.
var expectedAspects = []string{
	"price", "quality", "usability", "performance", "reliability",
	"support", "design", "features", "battery", "shipping",
}

type rawBatchResponse struct {
	Results []rawClassification `json:"results"`
}

type rawClassification struct {
	Sentiment string                   `json:"sentiment"`
	Score     float64                  `json:"score"`
	Aspects   []models.AspectSentiment `json:"aspects"`
}

// parseBatchResponse validates a JSON batch completion into index-aligned
// per-item outcomes. An unparseable payload or a count mismatch fails the
// whole batch; a single invalid member only fails that member.
func parseBatchResponse(content string, want int) ([]Outcome, error) {
	var raw rawBatchResponse

	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if len(raw.Results) != want {
		return nil, fmt.Errorf("%w: got %d results, want %d", ErrInvalidResponse, len(raw.Results), want)
	}

	outcomes := make([]Outcome, 0, len(raw.Results))

	for _, rc := range raw.Results {
		result, err := validateClassification(rc)
		if err != nil {
			outcomes = append(outcomes, Outcome{Err: err})
			continue
		}

		outcomes = append(outcomes, Outcome{Result: &result})
	}

	return outcomes, nil
}

func validateClassification(rc rawClassification) (Result, error) {
	if !validSentiment(rc.Sentiment) {
		return Result{}, fmt.Errorf("%w: unknown sentiment %q", ErrInvalidResponse, rc.Sentiment)
	}

	if rc.Score < -1 || rc.Score > 1 {
		return Result{}, fmt.Errorf("%w: score %v out of [-1, 1]", ErrInvalidResponse, rc.Score)
	}

	var aspects []models.AspectSentiment

	for _, a := range rc.Aspects {
		if !knownAspect(a.Aspect) || !validSentiment(a.Sentiment) {
			continue
		}

		aspects = append(aspects, a)
	}

	return Result{
		Sentiment: rc.Sentiment,
		Score:     rc.Score,
		Aspects:   aspects,
	}, nil
}

func validSentiment(s string) bool {
	return s == models.SentimentPositive || s == models.SentimentNeutral || s == models.SentimentNegative
}

func knownAspect(aspect string) bool {
	for _, a := range expectedAspects {
		if a == aspect {
			return true
		}
	}

	return false
}
