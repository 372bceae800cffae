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

// VectorRecordsRepository handles the durable mapping from source items to
// vector-store objects.
type VectorRecordsRepository struct {
	db *pgxpool.Pool
}

// NewVectorRecordsRepository creates a new vector records repository.
func NewVectorRecordsRepository(db *pgxpool.Pool) *VectorRecordsRepository {
	return &VectorRecordsRepository{db: db}
}

// CreateAndAdvance writes the vector record and advances the item
// CLASSIFIED -> VECTORIZED in one transaction. The vector-store upsert
// happens before this call and outside any relational transaction; a crash
// between the upsert and this commit leaves the item CLASSIFIED, and the
// deterministic external id makes the retried upsert overwrite in place.
// Returns StaleStateError when the item is no longer CLASSIFIED.
func (r *VectorRecordsRepository) CreateAndAdvance(ctx context.Context, record *models.VectorRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create vector record: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	advanced, err := tx.Exec(ctx, `
		UPDATE processing_states
		SET state = $1, claimed_by = NULL, claimed_at = NULL, updated_at = now()
		WHERE source_item_id = $2 AND state = $3`,
		models.StateVectorized, record.SourceItemID, models.StateClassified,
	)
	if err != nil {
		return fmt.Errorf("advance to vectorized: %w", err)
	}

	if advanced.RowsAffected() == 0 {
		return pulseerrors.NewStaleStateError(string(models.StateClassified), "")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO vector_records (source_item_id, content_identity, external_id, embedding_model, synced_at)
		VALUES ($1, $2, $3, $4, $5)`,
		record.SourceItemID, record.ContentIdentity, record.ExternalID, record.EmbeddingModel, record.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("insert vector record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create vector record: %w", err)
	}

	return nil
}

// GetBySourceItem returns the vector record for a source item.
func (r *VectorRecordsRepository) GetBySourceItem(ctx context.Context, sourceItemID uuid.UUID) (*models.VectorRecord, error) {
	var record models.VectorRecord

	err := r.db.QueryRow(ctx, `
		SELECT source_item_id, content_identity, external_id, embedding_model, synced_at
		FROM vector_records
		WHERE source_item_id = $1`, sourceItemID,
	).Scan(&record.SourceItemID, &record.ContentIdentity, &record.ExternalID, &record.EmbeddingModel, &record.SyncedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pulseerrors.NewNotFoundError("vector record", "vector record not found")
		}

		return nil, fmt.Errorf("get vector record: %w", err)
	}

	return &record, nil
}

// GetByExternalID returns the vector record owning a store object id.
func (r *VectorRecordsRepository) GetByExternalID(ctx context.Context, externalID uuid.UUID) (*models.VectorRecord, error) {
	var record models.VectorRecord

	err := r.db.QueryRow(ctx, `
		SELECT source_item_id, content_identity, external_id, embedding_model, synced_at
		FROM vector_records
		WHERE external_id = $1`, externalID,
	).Scan(&record.SourceItemID, &record.ContentIdentity, &record.ExternalID, &record.EmbeddingModel, &record.SyncedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pulseerrors.NewNotFoundError("vector record", "vector record not found")
		}

		return nil, fmt.Errorf("get vector record by external id: %w", err)
	}

	return &record, nil
}

// ListExternalIDsInRange returns the external ids of vector records in the
// inclusive [from, to] id range, for reconciliation scans.
func (r *VectorRecordsRepository) ListExternalIDsInRange(ctx context.Context, from, to uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT external_id FROM vector_records
		WHERE external_id >= $1 AND external_id <= $2
		ORDER BY external_id`, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list external ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan external id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating external ids: %w", err)
	}

	return ids, nil
}
