// Package vectorstore abstracts the external vector index. Implementations
// must never share a transaction with the relational ledger: the store is an
// eventually-consistent secondary index whose divergence is detected by
// reconciliation, not prevented by distributed transactions.
package vectorstore

import (
	"context"

	"github.com/google/uuid"
)

// Metadata is the payload stored alongside each vector object.
type Metadata struct {
	ContentIdentity string     `json:"content_identity"`
	ProductID       *uuid.UUID `json:"product_id,omitempty"`
	Platform        string     `json:"platform"`
	Sentiment       string     `json:"sentiment,omitempty"`
	Aspects         []string   `json:"aspects,omitempty"`
	Text            string     `json:"text"`
}

// Hit is one nearest-neighbor search result. Score is cosine similarity in [0, 1].
type Hit struct {
	ExternalID uuid.UUID `json:"external_id"`
	Score      float64   `json:"score"`
	Metadata   Metadata  `json:"metadata"`
}

// Store is the vector-store boundary. Upsert overwrites any existing object
// under the same id, so retried syncs never create duplicates.
type Store interface {
	Upsert(ctx context.Context, id uuid.UUID, embedding []float32, meta Metadata) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// ListIDs returns object ids in the inclusive [from, to] range, for reconciliation.
	ListIDs(ctx context.Context, from, to uuid.UUID) ([]uuid.UUID, error)
	// NearQuery returns up to limit hits nearest to the query embedding,
	// optionally filtered by product.
	NearQuery(ctx context.Context, embedding []float32, limit int, productID *uuid.UUID) ([]Hit, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
