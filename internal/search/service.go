// Package search provides semantic search over synced vector objects.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/prodpulse/prodpulse/internal/vectorstore"
)

const defaultTopK = 10

// ErrEmptyQuery is returned when the query is empty after trimming.
var ErrEmptyQuery = errors.New("query is required and must be non-empty")

// Embedder produces the embedding for a search query.
type Embedder interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// Service embeds queries and runs nearest-neighbor lookups against the
// vector store. Query embeddings are cached; concurrent misses for the same
// query are coalesced so a burst triggers one provider call, not N.
type Service struct {
	embedder   Embedder
	store      vectorstore.Store
	queryCache *lru.Cache[string, []float32]
	loadGroup  singleflight.Group
	logger     *slog.Logger
}

// Params configures Service. QueryCache may be nil (no caching).
type Params struct {
	Embedder   Embedder
	Store      vectorstore.Store
	QueryCache *lru.Cache[string, []float32]
	Logger     *slog.Logger
}

// NewService creates a search service.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		embedder:   p.Embedder,
		store:      p.Store,
		queryCache: p.QueryCache,
		logger:     logger,
	}
}

// Search returns up to topK vector-store hits nearest to the query,
// optionally filtered by product.
func (s *Service) Search(
	ctx context.Context, query string, topK int, productID *uuid.UUID,
) ([]vectorstore.Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if topK <= 0 {
		topK = defaultTopK
	}

	var (
		embedding []float32
		err       error
	)

	if s.queryCache != nil {
		embedding, err = s.queryEmbeddingCached(ctx, query)
	} else {
		embedding, err = s.embedder.CreateEmbedding(ctx, query)
	}

	if err != nil {
		s.logger.Error("search: create embedding failed", "error", err)

		return nil, fmt.Errorf("create query embedding: %w", err)
	}

	hits, err := s.store.NearQuery(ctx, embedding, topK, productID)
	if err != nil {
		s.logger.Error("search: near query failed", "error", err)

		return nil, fmt.Errorf("near query: %w", err)
	}

	return hits, nil
}

func (s *Service) queryEmbeddingCached(ctx context.Context, query string) ([]float32, error) {
	if vec, ok := s.queryCache.Get(query); ok {
		return vec, nil
	}

	val, err, _ := s.loadGroup.Do(query, func() (any, error) {
		vec, loadErr := s.embedder.CreateEmbedding(ctx, query)
		if loadErr != nil {
			return nil, loadErr
		}

		s.queryCache.Add(query, vec)

		return vec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	return val.([]float32), nil
}
