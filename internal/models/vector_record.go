package models

import (
	"time"

	"github.com/google/uuid"
)

// VectorRecord maps a source item to the vector store object created for it.
// It exists iff the corresponding vector-store object should exist; any
// disagreement is drift to be reported by reconciliation.
type VectorRecord struct {
	SourceItemID    uuid.UUID `json:"source_item_id"`
	ContentIdentity string    `json:"content_identity"`
	ExternalID      uuid.UUID `json:"external_id"`
	EmbeddingModel  string    `json:"embedding_model"`
	SyncedAt        time.Time `json:"synced_at"`
}

// DriftKind classifies one reconciliation finding.
type DriftKind string

const (
	// DriftMissingInStore: the ledger says VECTORIZED but the store has no object.
	DriftMissingInStore DriftKind = "missing_in_store"
	// DriftOrphanedInStore: the store has an object with no matching VectorRecord.
	DriftOrphanedInStore DriftKind = "orphaned_in_store"
)

// DriftFinding is one inconsistency between the ledger and the vector store.
type DriftFinding struct {
	Kind       DriftKind `json:"kind"`
	ExternalID uuid.UUID `json:"external_id"`
}

// DriftReport is the outcome of a reconciliation scan. Reconciliation only
// reports; repair is a separate, explicitly invoked operation.
type DriftReport struct {
	Checked  int            `json:"checked"`
	Findings []DriftFinding `json:"findings"`
}
