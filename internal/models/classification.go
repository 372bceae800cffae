package models

import (
	"time"

	"github.com/google/uuid"
)

// Sentiment labels produced by the classification engine.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Classification providers recorded on results. An empty provider means no
// provider was invoked (e.g. whitespace-only text).
const (
	ProviderPrimary  = "primary"
	ProviderFallback = "fallback"
)

// AspectSentiment is one (aspect, sentiment) pair extracted by the primary
// provider. The fallback scorer never produces aspects.
type AspectSentiment struct {
	Aspect    string `json:"aspect"`
	Sentiment string `json:"sentiment"`
}

// ClassificationResult is the immutable outcome of classifying one source
// item. Reprocessing, if ever enabled, appends a new version rather than
// overwriting.
type ClassificationResult struct {
	ID           uuid.UUID         `json:"id"`
	SourceItemID uuid.UUID         `json:"source_item_id"`
	Version      int               `json:"version"`
	Sentiment    string            `json:"sentiment"`
	Score        float64           `json:"score"`
	Aspects      []AspectSentiment `json:"aspects,omitempty"`
	Provider     *string           `json:"provider,omitempty"`
	ModelTag     *string           `json:"model_tag,omitempty"`
	ClassifiedAt time.Time         `json:"classified_at"`
}
