package search

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodpulse/prodpulse/internal/vectorstore"
)

type mockEmbedder struct {
	embedFunc func(ctx context.Context, input string) ([]float32, error)
	calls     int
}

func (m *mockEmbedder) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	m.calls++

	if m.embedFunc != nil {
		return m.embedFunc(ctx, input)
	}

	return []float32{0.5, 0.5}, nil
}

func testService(t *testing.T, embedder Embedder, store vectorstore.Store) *Service {
	t.Helper()

	cache, err := lru.New[string, []float32](16)
	require.NoError(t, err)

	return NewService(Params{Embedder: embedder, Store: store, QueryCache: cache})
}

func TestService_Search(t *testing.T) {
	t.Run("empty query is rejected", func(t *testing.T) {
		svc := testService(t, &mockEmbedder{}, vectorstore.NewMockStore())

		_, err := svc.Search(context.Background(), "   ", 10, nil)

		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("returns hits from the store", func(t *testing.T) {
		store := vectorstore.NewMockStore()
		id := uuid.New()
		store.PutOrphan(id, vectorstore.Metadata{Text: "battery praise"})

		svc := testService(t, &mockEmbedder{}, store)

		hits, err := svc.Search(context.Background(), "battery life", 10, nil)

		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, id, hits[0].ExternalID)
	})

	t.Run("repeated queries embed once", func(t *testing.T) {
		embedder := &mockEmbedder{}
		svc := testService(t, embedder, vectorstore.NewMockStore())

		for i := 0; i < 3; i++ {
			_, err := svc.Search(context.Background(), "same query", 5, nil)
			require.NoError(t, err)
		}

		assert.Equal(t, 1, embedder.calls)
	})

	t.Run("product filter narrows the hits", func(t *testing.T) {
		productID := uuid.New()
		otherID := uuid.New()

		store := vectorstore.NewMockStore()
		store.PutOrphan(uuid.New(), vectorstore.Metadata{ProductID: &productID})
		store.PutOrphan(uuid.New(), vectorstore.Metadata{ProductID: &otherID})

		svc := testService(t, &mockEmbedder{}, store)

		hits, err := svc.Search(context.Background(), "anything", 10, &productID)

		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, productID, *hits[0].Metadata.ProductID)
	})

	t.Run("embedder failure surfaces as an error", func(t *testing.T) {
		embedder := &mockEmbedder{
			embedFunc: func(_ context.Context, _ string) ([]float32, error) {
				return nil, errors.New("provider down")
			},
		}
		svc := testService(t, embedder, vectorstore.NewMockStore())

		_, err := svc.Search(context.Background(), "query", 10, nil)

		assert.Error(t, err)
	})
}
