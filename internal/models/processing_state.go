package models

import (
	"time"

	"github.com/google/uuid"
)

// State is the ledger state of a source item. Transitions are monotonic:
// PENDING -> CLASSIFIED -> VECTORIZED, with FAILED terminal except through
// an explicit requeue.
type State string

const (
	StatePending    State = "PENDING"
	StateClassified State = "CLASSIFIED"
	StateVectorized State = "VECTORIZED"
	StateFailed     State = "FAILED"
)

// FailReason is the recorded cause when an item exhausts its retry budget.
type FailReason string

const (
	FailProviderError    FailReason = "provider_error"
	FailRateLimited      FailReason = "rate_limited"
	FailInvalidInput     FailReason = "invalid_input"
	FailStoreUnavailable FailReason = "store_unavailable"
)

// ProcessingState is the per-item idempotency and recovery record.
type ProcessingState struct {
	SourceItemID uuid.UUID   `json:"source_item_id"`
	State        State       `json:"state"`
	FailReason   *FailReason `json:"fail_reason,omitempty"`
	Attempts     int         `json:"attempts"`
	ClaimedBy    *string     `json:"claimed_by,omitempty"`
	ClaimedAt    *time.Time  `json:"claimed_at,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ClaimedItem is a source item handed to a stage worker together with the
// state it was claimed in.
type ClaimedItem struct {
	Item  SourceItem
	State State
}
