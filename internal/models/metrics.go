package models

import (
	"time"

	"github.com/google/uuid"
)

// Window bounds a metrics computation by origin timestamp.
type Window struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// Coverage states the metrics denominator explicitly so partial coverage is
// never mistaken for full coverage: percentages are computed over Classified
// items only.
type Coverage struct {
	Classified int `json:"classified"`
	Total      int `json:"total"`
}

// SentimentDistribution holds per-label counts and percentages for one
// product. Percentages sum to 100 over classified items.
type SentimentDistribution struct {
	ProductID uuid.UUID          `json:"product_id"`
	Counts    map[string]int     `json:"counts"`
	Percent   map[string]float64 `json:"percent"`
}

// AspectStat is one aspect ranked by frequency, tie-broken by the absolute
// mean sentiment score of the items mentioning it.
type AspectStat struct {
	Aspect    string  `json:"aspect"`
	Count     int     `json:"count"`
	MeanScore float64 `json:"mean_score"`
}

// ComparisonDelta is the per-label percentage-point difference between two
// products' sentiment distributions (A minus B).
type ComparisonDelta struct {
	ProductA uuid.UUID          `json:"product_a"`
	ProductB uuid.UUID          `json:"product_b"`
	Delta    map[string]float64 `json:"delta"`
}

// MetricsSnapshot is computed on demand and never persisted or cached
// inside the core.
type MetricsSnapshot struct {
	Window      Window                     `json:"window"`
	Coverage    Coverage                   `json:"coverage"`
	Sentiment   []SentimentDistribution    `json:"sentiment"`
	VoiceShare  map[uuid.UUID]float64      `json:"voice_share"`
	TopAspects  map[uuid.UUID][]AspectStat `json:"top_aspects"`
	Comparisons []ComparisonDelta          `json:"comparisons"`
	GeneratedAt time.Time                  `json:"generated_at"`
}
