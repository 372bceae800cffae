package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodpulse/prodpulse/internal/models"
	"github.com/prodpulse/prodpulse/internal/repository"
)

type mockReader struct {
	stateCounts     []repository.StateCountRow
	sentimentCounts []repository.SentimentCountRow
	aspectRows      []repository.AspectRow
}

func (m *mockReader) StateCounts(_ context.Context, _ []uuid.UUID, _ models.Window) ([]repository.StateCountRow, error) {
	return m.stateCounts, nil
}

func (m *mockReader) SentimentCounts(_ context.Context, _ []uuid.UUID, _ models.Window) ([]repository.SentimentCountRow, error) {
	return m.sentimentCounts, nil
}

func (m *mockReader) AspectRows(_ context.Context, _ []uuid.UUID, _ models.Window) ([]repository.AspectRow, error) {
	return m.aspectRows, nil
}

func testWindow() models.Window {
	return models.Window{
		Since: time.Now().Add(-30 * 24 * time.Hour),
		Until: time.Now(),
	}
}

func TestAggregator_Snapshot(t *testing.T) {
	productA := uuid.New()
	productB := uuid.New()

	t.Run("requires at least one product id", func(t *testing.T) {
		agg := NewAggregator(&mockReader{})

		_, err := agg.Snapshot(context.Background(), nil, testWindow())

		assert.Error(t, err)
	})

	t.Run("percentages are over classified items only, with explicit coverage", func(t *testing.T) {
		// 10 items total: 3 failed, 5 vectorized, 2 classified. The 7
		// non-failed split 4 positive / 2 neutral / 1 negative.
		reader := &mockReader{
			stateCounts: []repository.StateCountRow{
				{ProductID: productA, State: models.StateFailed, Count: 3},
				{ProductID: productA, State: models.StateVectorized, Count: 5},
				{ProductID: productA, State: models.StateClassified, Count: 2},
			},
			sentimentCounts: []repository.SentimentCountRow{
				{ProductID: productA, Sentiment: models.SentimentPositive, Count: 4},
				{ProductID: productA, Sentiment: models.SentimentNeutral, Count: 2},
				{ProductID: productA, Sentiment: models.SentimentNegative, Count: 1},
			},
		}
		agg := NewAggregator(reader)

		snapshot, err := agg.Snapshot(context.Background(), []uuid.UUID{productA}, testWindow())

		require.NoError(t, err)
		assert.Equal(t, models.Coverage{Classified: 7, Total: 10}, snapshot.Coverage)

		require.Len(t, snapshot.Sentiment, 1)
		percent := snapshot.Sentiment[0].Percent
		assert.InDelta(t, 100.0*4/7, percent[models.SentimentPositive], 1e-9)
		assert.InDelta(t, 100.0*2/7, percent[models.SentimentNeutral], 1e-9)
		assert.InDelta(t, 100.0*1/7, percent[models.SentimentNegative], 1e-9)

		sum := 0.0
		for _, p := range percent {
			sum += p
		}

		assert.InDelta(t, 100.0, sum, 1e-9)
	})

	t.Run("zero classified items yields empty percentages, not NaN", func(t *testing.T) {
		reader := &mockReader{
			stateCounts: []repository.StateCountRow{
				{ProductID: productA, State: models.StatePending, Count: 4},
			},
		}
		agg := NewAggregator(reader)

		snapshot, err := agg.Snapshot(context.Background(), []uuid.UUID{productA}, testWindow())

		require.NoError(t, err)
		assert.Equal(t, models.Coverage{Classified: 0, Total: 4}, snapshot.Coverage)
		require.Len(t, snapshot.Sentiment, 1)
		assert.Empty(t, snapshot.Sentiment[0].Percent)
		assert.Zero(t, snapshot.VoiceShare[productA])
	})

	t.Run("voice share splits total classified volume", func(t *testing.T) {
		reader := &mockReader{
			sentimentCounts: []repository.SentimentCountRow{
				{ProductID: productA, Sentiment: models.SentimentPositive, Count: 6},
				{ProductID: productB, Sentiment: models.SentimentNegative, Count: 2},
			},
		}
		agg := NewAggregator(reader)

		snapshot, err := agg.Snapshot(context.Background(), []uuid.UUID{productA, productB}, testWindow())

		require.NoError(t, err)
		assert.InDelta(t, 0.75, snapshot.VoiceShare[productA], 1e-9)
		assert.InDelta(t, 0.25, snapshot.VoiceShare[productB], 1e-9)
	})

	t.Run("top aspects rank by frequency then absolute mean score then name", func(t *testing.T) {
		reader := &mockReader{
			aspectRows: []repository.AspectRow{
				{ProductID: productA, Aspects: []models.AspectSentiment{{Aspect: "battery"}}, Score: 0.9},
				{ProductID: productA, Aspects: []models.AspectSentiment{{Aspect: "battery"}}, Score: 0.5},
				{ProductID: productA, Aspects: []models.AspectSentiment{{Aspect: "design"}}, Score: -0.9},
				{ProductID: productA, Aspects: []models.AspectSentiment{{Aspect: "quality"}}, Score: 0.9},
				{ProductID: productA, Aspects: []models.AspectSentiment{{Aspect: "price"}}, Score: 0.1},
			},
		}
		agg := NewAggregator(reader)

		snapshot, err := agg.Snapshot(context.Background(), []uuid.UUID{productA}, testWindow())

		require.NoError(t, err)

		stats := snapshot.TopAspects[productA]
		require.Len(t, stats, 4)

		// battery mentioned twice, so it leads. design and quality tie on
		// count and |mean|, so name breaks that tie; price trails on |mean|.
		assert.Equal(t, "battery", stats[0].Aspect)
		assert.Equal(t, 2, stats[0].Count)
		assert.Equal(t, "design", stats[1].Aspect)
		assert.Equal(t, "quality", stats[2].Aspect)
		assert.Equal(t, "price", stats[3].Aspect)
	})

	t.Run("comparison deltas cover every ordered pair", func(t *testing.T) {
		reader := &mockReader{
			sentimentCounts: []repository.SentimentCountRow{
				{ProductID: productA, Sentiment: models.SentimentPositive, Count: 3},
				{ProductID: productA, Sentiment: models.SentimentNegative, Count: 1},
				{ProductID: productB, Sentiment: models.SentimentPositive, Count: 1},
				{ProductID: productB, Sentiment: models.SentimentNegative, Count: 3},
			},
		}
		agg := NewAggregator(reader)

		snapshot, err := agg.Snapshot(context.Background(), []uuid.UUID{productA, productB}, testWindow())

		require.NoError(t, err)
		require.Len(t, snapshot.Comparisons, 1)

		delta := snapshot.Comparisons[0]
		assert.Equal(t, productA, delta.ProductA)
		assert.Equal(t, productB, delta.ProductB)
		assert.InDelta(t, 50.0, delta.Delta[models.SentimentPositive], 1e-9)
		assert.InDelta(t, -50.0, delta.Delta[models.SentimentNegative], 1e-9)
		assert.InDelta(t, 0.0, delta.Delta[models.SentimentNeutral], 1e-9)
	})
}
