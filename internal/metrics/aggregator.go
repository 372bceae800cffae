// Package metrics computes on-demand cohort statistics over classified
// items. Pure read side: it never mutates pipeline state and never caches
// beyond a single request.
package metrics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/prodpulse/prodpulse/internal/models"
	"github.com/prodpulse/prodpulse/internal/repository"
)

// topAspectsLimit caps the aspects reported per product.
const topAspectsLimit = 10

// Reader is the slice of the metrics repository the aggregator needs.
type Reader interface {
	StateCounts(ctx context.Context, productIDs []uuid.UUID, window models.Window) ([]repository.StateCountRow, error)
	SentimentCounts(ctx context.Context, productIDs []uuid.UUID, window models.Window) ([]repository.SentimentCountRow, error)
	AspectRows(ctx context.Context, productIDs []uuid.UUID, window models.Window) ([]repository.AspectRow, error)
}

// Aggregator computes metrics snapshots.
type Aggregator struct {
	reader Reader
}

// NewAggregator creates a metrics aggregator.
func NewAggregator(reader Reader) *Aggregator {
	return &Aggregator{reader: reader}
}

// Snapshot computes sentiment distributions, voice share, top aspects, and
// pairwise comparison deltas for the given products and window. All
// percentages are over successfully classified items only; the coverage
// field states that denominator explicitly.
func (a *Aggregator) Snapshot(
	ctx context.Context, productIDs []uuid.UUID, window models.Window,
) (*models.MetricsSnapshot, error) {
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("at least one product id is required")
	}

	stateCounts, err := a.reader.StateCounts(ctx, productIDs, window)
	if err != nil {
		return nil, fmt.Errorf("read state counts: %w", err)
	}

	sentimentCounts, err := a.reader.SentimentCounts(ctx, productIDs, window)
	if err != nil {
		return nil, fmt.Errorf("read sentiment counts: %w", err)
	}

	aspectRows, err := a.reader.AspectRows(ctx, productIDs, window)
	if err != nil {
		return nil, fmt.Errorf("read aspect rows: %w", err)
	}

	snapshot := &models.MetricsSnapshot{
		Window:      window,
		Coverage:    coverage(stateCounts),
		Sentiment:   distributions(productIDs, sentimentCounts),
		VoiceShare:  voiceShare(productIDs, sentimentCounts),
		TopAspects:  topAspects(productIDs, aspectRows),
		GeneratedAt: time.Now().UTC(),
	}

	snapshot.Comparisons = comparisons(productIDs, snapshot.Sentiment)

	return snapshot, nil
}

// coverage counts classified (CLASSIFIED or VECTORIZED) items against all
// items in the window. FAILED and still-PENDING items only appear in the
// total, never in any percentage.
func coverage(rows []repository.StateCountRow) models.Coverage {
	var cov models.Coverage

	for _, row := range rows {
		cov.Total += row.Count

		if row.State == models.StateClassified || row.State == models.StateVectorized {
			cov.Classified += row.Count
		}
	}

	return cov
}

func distributions(productIDs []uuid.UUID, rows []repository.SentimentCountRow) []models.SentimentDistribution {
	byProduct := make(map[uuid.UUID]map[string]int, len(productIDs))
	for _, id := range productIDs {
		byProduct[id] = map[string]int{}
	}

	for _, row := range rows {
		if counts, ok := byProduct[row.ProductID]; ok {
			counts[row.Sentiment] += row.Count
		}
	}

	out := make([]models.SentimentDistribution, 0, len(productIDs))

	for _, id := range productIDs {
		counts := byProduct[id]

		total := 0
		for _, n := range counts {
			total += n
		}

		percent := make(map[string]float64, len(counts))
		for label, n := range counts {
			if total > 0 {
				percent[label] = 100 * float64(n) / float64(total)
			}
		}

		out = append(out, models.SentimentDistribution{
			ProductID: id,
			Counts:    counts,
			Percent:   percent,
		})
	}

	return out
}

// voiceShare is each product's share of the total classified volume in the window.
func voiceShare(productIDs []uuid.UUID, rows []repository.SentimentCountRow) map[uuid.UUID]float64 {
	volumes := make(map[uuid.UUID]int, len(productIDs))
	total := 0

	for _, row := range rows {
		volumes[row.ProductID] += row.Count
		total += row.Count
	}

	share := make(map[uuid.UUID]float64, len(productIDs))

	for _, id := range productIDs {
		if total > 0 {
			share[id] = float64(volumes[id]) / float64(total)
		} else {
			share[id] = 0
		}
	}

	return share
}

// topAspects ranks aspects per product by mention frequency, tie-broken by
// the absolute mean score of the items mentioning them, then by name for a
// stable order.
func topAspects(productIDs []uuid.UUID, rows []repository.AspectRow) map[uuid.UUID][]models.AspectStat {
	type accum struct {
		count    int
		scoreSum float64
	}

	byProduct := make(map[uuid.UUID]map[string]*accum, len(productIDs))
	for _, id := range productIDs {
		byProduct[id] = map[string]*accum{}
	}

	for _, row := range rows {
		aspects, ok := byProduct[row.ProductID]
		if !ok {
			continue
		}

		for _, a := range row.Aspects {
			acc := aspects[a.Aspect]
			if acc == nil {
				acc = &accum{}
				aspects[a.Aspect] = acc
			}

			acc.count++
			acc.scoreSum += row.Score
		}
	}

	out := make(map[uuid.UUID][]models.AspectStat, len(productIDs))

	for _, id := range productIDs {
		stats := make([]models.AspectStat, 0, len(byProduct[id]))

		for aspect, acc := range byProduct[id] {
			stats = append(stats, models.AspectStat{
				Aspect:    aspect,
				Count:     acc.count,
				MeanScore: acc.scoreSum / float64(acc.count),
			})
		}

		sort.Slice(stats, func(i, j int) bool {
			if stats[i].Count != stats[j].Count {
				return stats[i].Count > stats[j].Count
			}

			if absI, absJ := math.Abs(stats[i].MeanScore), math.Abs(stats[j].MeanScore); absI != absJ {
				return absI > absJ
			}

			return stats[i].Aspect < stats[j].Aspect
		})

		if len(stats) > topAspectsLimit {
			stats = stats[:topAspectsLimit]
		}

		out[id] = stats
	}

	return out
}

// comparisons computes per-label percentage-point deltas for every ordered
// product pair (A earlier in the request than B; delta = A minus B).
func comparisons(productIDs []uuid.UUID, distributions []models.SentimentDistribution) []models.ComparisonDelta {
	byProduct := make(map[uuid.UUID]map[string]float64, len(distributions))
	for _, dist := range distributions {
		byProduct[dist.ProductID] = dist.Percent
	}

	labels := []string{models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative}

	var out []models.ComparisonDelta

	for i := 0; i < len(productIDs); i++ {
		for j := i + 1; j < len(productIDs); j++ {
			a, b := productIDs[i], productIDs[j]

			delta := make(map[string]float64, len(labels))
			for _, label := range labels {
				delta[label] = byProduct[a][label] - byProduct[b][label]
			}

			out = append(out, models.ComparisonDelta{ProductA: a, ProductB: b, Delta: delta})
		}
	}

	return out
}
