// Package repository provides data access for the pipeline's durable state.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prodpulse/prodpulse/internal/models"
	"github.com/prodpulse/prodpulse/internal/pulseerrors"
)

// SourceItemsRepository handles data access for source items.
type SourceItemsRepository struct {
	db *pgxpool.Pool
}

// NewSourceItemsRepository creates a new source items repository.
func NewSourceItemsRepository(db *pgxpool.Pool) *SourceItemsRepository {
	return &SourceItemsRepository{db: db}
}

// InsertIfAbsent atomically inserts a source item and its PENDING processing
// state unless a row with the same content identity already exists. Returns
// false with no error on a duplicate: repeated ingestion is a no-op.
func (r *SourceItemsRepository) InsertIfAbsent(ctx context.Context, item *models.SourceItem) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin insert source item: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var id uuid.UUID

	err = tx.QueryRow(ctx, `
		INSERT INTO source_items (
			id, content_identity, platform, native_id, product_id,
			raw_text, author_ref, created_at, fetched_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (content_identity) DO NOTHING
		RETURNING id`,
		item.ID, item.ContentIdentity, item.Platform, item.NativeID, item.ProductID,
		item.RawText, item.AuthorRef, item.CreatedAt, item.FetchedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Duplicate content identity: collapsed by design.
			return false, nil
		}

		return false, fmt.Errorf("insert source item: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO processing_states (source_item_id, state, attempts, updated_at)
		VALUES ($1, $2, 0, now())`,
		id, models.StatePending,
	)
	if err != nil {
		return false, fmt.Errorf("insert processing state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit insert source item: %w", err)
	}

	return true, nil
}

// GetByID retrieves a single source item.
func (r *SourceItemsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SourceItem, error) {
	var item models.SourceItem

	err := r.db.QueryRow(ctx, `
		SELECT id, content_identity, platform, native_id, product_id,
			raw_text, author_ref, created_at, fetched_at
		FROM source_items
		WHERE id = $1`, id,
	).Scan(
		&item.ID, &item.ContentIdentity, &item.Platform, &item.NativeID, &item.ProductID,
		&item.RawText, &item.AuthorRef, &item.CreatedAt, &item.FetchedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pulseerrors.NewNotFoundError("source item", "source item not found")
		}

		return nil, fmt.Errorf("get source item: %w", err)
	}

	return &item, nil
}

// AttachProduct sets product_id on a source item where it is still null
// (late resolution). Attaching the same product twice is a no-op.
func (r *SourceItemsRepository) AttachProduct(ctx context.Context, id, productID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `
		UPDATE source_items SET product_id = $1
		WHERE id = $2 AND (product_id IS NULL OR product_id = $1)`,
		productID, id,
	)
	if err != nil {
		return fmt.Errorf("attach product: %w", err)
	}

	if result.RowsAffected() == 0 {
		return pulseerrors.NewValidationError("product_id", "source item already resolved to a different product")
	}

	return nil
}

// ListRecentTexts returns the newest classified texts for a product, for
// summary generation.
func (r *SourceItemsRepository) ListRecentTexts(ctx context.Context, productID uuid.UUID, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT si.raw_text
		FROM source_items si
		INNER JOIN processing_states ps ON ps.source_item_id = si.id
		WHERE si.product_id = $1 AND ps.state IN ($2, $3)
		ORDER BY si.created_at DESC
		LIMIT $4`,
		productID, models.StateClassified, models.StateVectorized, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent texts: %w", err)
	}
	defer rows.Close()

	var texts []string

	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan recent text: %w", err)
		}

		texts = append(texts, text)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recent texts: %w", err)
	}

	return texts, nil
}
