package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prodpulse/prodpulse/internal/models"
	"github.com/prodpulse/prodpulse/internal/pulseerrors"
)

// LedgerRepository arbitrates the per-item processing state machine. The
// relational store is the only arbiter of claims: every transition is a
// conditional update keyed on the expected current state.
type LedgerRepository struct {
	db *pgxpool.Pool
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// ClaimBatch claims up to limit items currently in state for the given
// worker and returns them with their source items. An item is claimable
// when unclaimed or when its claim is older than staleness (crash
// recovery). FOR UPDATE SKIP LOCKED guarantees two concurrent workers never
// claim the same item.
func (r *LedgerRepository) ClaimBatch(
	ctx context.Context, state models.State, limit int, claimedBy string, staleness time.Duration,
) ([]models.SourceItem, error) {
	cutoff := time.Now().Add(-staleness)

	rows, err := r.db.Query(ctx, `
		UPDATE processing_states ps
		SET claimed_by = $1, claimed_at = now(), attempts = ps.attempts + 1, updated_at = now()
		FROM (
			SELECT source_item_id FROM processing_states
			WHERE state = $2 AND (claimed_at IS NULL OR claimed_at < $3)
			ORDER BY updated_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		) claimable
		WHERE ps.source_item_id = claimable.source_item_id
		RETURNING ps.source_item_id`,
		claimedBy, state, cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan claimed id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating claimed ids: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	return r.listItems(ctx, ids)
}

// listItems fetches the source items for the given ids.
func (r *LedgerRepository) listItems(ctx context.Context, ids []uuid.UUID) ([]models.SourceItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, content_identity, platform, native_id, product_id,
			raw_text, author_ref, created_at, fetched_at
		FROM source_items
		WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("list claimed items: %w", err)
	}
	defer rows.Close()

	var items []models.SourceItem

	for rows.Next() {
		var item models.SourceItem

		err := rows.Scan(
			&item.ID, &item.ContentIdentity, &item.Platform, &item.NativeID, &item.ProductID,
			&item.RawText, &item.AuthorRef, &item.CreatedAt, &item.FetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan claimed item: %w", err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating claimed items: %w", err)
	}

	return items, nil
}

// Release clears the claim on an item without changing its state, making it
// immediately claimable again (e.g. after a cancelled batch).
func (r *LedgerRepository) Release(ctx context.Context, itemID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE processing_states
		SET claimed_by = NULL, claimed_at = NULL, updated_at = now()
		WHERE source_item_id = $1`, itemID,
	)
	if err != nil {
		return fmt.Errorf("release claim: %w", err)
	}

	return nil
}

// MarkFailed moves an item from the expected state to FAILED with a reason.
// Returns StaleStateError when the item is no longer in that state.
func (r *LedgerRepository) MarkFailed(
	ctx context.Context, itemID uuid.UUID, from models.State, reason models.FailReason,
) error {
	result, err := r.db.Exec(ctx, `
		UPDATE processing_states
		SET state = $1, fail_reason = $2, claimed_by = NULL, claimed_at = NULL, updated_at = now()
		WHERE source_item_id = $3 AND state = $4`,
		models.StateFailed, reason, itemID, from,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return pulseerrors.NewStaleStateError(string(from), "")
	}

	return nil
}

// Requeue moves a FAILED item back to its prior state, derived from durable
// evidence: items with a classification result return to CLASSIFIED,
// everything else to PENDING. The ledger never resurrects items on its own;
// this is the explicit administrative operation.
func (r *LedgerRepository) Requeue(ctx context.Context, itemID uuid.UUID) (models.State, error) {
	var state models.State

	err := r.db.QueryRow(ctx, `
		UPDATE processing_states ps
		SET state = CASE
				WHEN EXISTS (
					SELECT 1 FROM classification_results cr
					WHERE cr.source_item_id = ps.source_item_id
				) THEN $1::text
				ELSE $2::text
			END,
			fail_reason = NULL, claimed_by = NULL, claimed_at = NULL, attempts = 0, updated_at = now()
		WHERE ps.source_item_id = $3 AND ps.state = $4
		RETURNING ps.state`,
		models.StateClassified, models.StatePending, itemID, models.StateFailed,
	).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", pulseerrors.NewNotFoundError("failed item", "item not found or not FAILED")
		}

		return "", fmt.Errorf("requeue failed item: %w", err)
	}

	return state, nil
}

// GetState retrieves the processing state row for an item.
func (r *LedgerRepository) GetState(ctx context.Context, itemID uuid.UUID) (*models.ProcessingState, error) {
	var ps models.ProcessingState

	err := r.db.QueryRow(ctx, `
		SELECT source_item_id, state, fail_reason, attempts, claimed_by, claimed_at, updated_at
		FROM processing_states
		WHERE source_item_id = $1`, itemID,
	).Scan(&ps.SourceItemID, &ps.State, &ps.FailReason, &ps.Attempts, &ps.ClaimedBy, &ps.ClaimedAt, &ps.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pulseerrors.NewNotFoundError("processing state", "processing state not found")
		}

		return nil, fmt.Errorf("get processing state: %w", err)
	}

	return &ps, nil
}

// ListFailed returns FAILED items with their reasons so operators can
// inspect and requeue them.
func (r *LedgerRepository) ListFailed(ctx context.Context, limit int) ([]models.ProcessingState, error) {
	rows, err := r.db.Query(ctx, `
		SELECT source_item_id, state, fail_reason, attempts, claimed_by, claimed_at, updated_at
		FROM processing_states
		WHERE state = $1
		ORDER BY updated_at DESC
		LIMIT $2`,
		models.StateFailed, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list failed items: %w", err)
	}
	defer rows.Close()

	var states []models.ProcessingState

	for rows.Next() {
		var ps models.ProcessingState

		err := rows.Scan(&ps.SourceItemID, &ps.State, &ps.FailReason, &ps.Attempts, &ps.ClaimedBy, &ps.ClaimedAt, &ps.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan failed item: %w", err)
		}

		states = append(states, ps)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating failed items: %w", err)
	}

	return states, nil
}
