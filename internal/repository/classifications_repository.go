package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prodpulse/prodpulse/internal/models"
	"github.com/prodpulse/prodpulse/internal/pulseerrors"
)

// ClassificationsRepository handles data access for classification results.
type ClassificationsRepository struct {
	db *pgxpool.Pool
}

// NewClassificationsRepository creates a new classifications repository.
func NewClassificationsRepository(db *pgxpool.Pool) *ClassificationsRepository {
	return &ClassificationsRepository{db: db}
}

// CreateAndAdvance writes a classification result and advances the item
// PENDING -> CLASSIFIED in one transaction: both happen or neither. Returns
// StaleStateError when the item is no longer PENDING (lost race or
// duplicate worker); the result is not written in that case.
func (r *ClassificationsRepository) CreateAndAdvance(ctx context.Context, result *models.ClassificationResult) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create classification: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	advanced, err := tx.Exec(ctx, `
		UPDATE processing_states
		SET state = $1, claimed_by = NULL, claimed_at = NULL, updated_at = now()
		WHERE source_item_id = $2 AND state = $3`,
		models.StateClassified, result.SourceItemID, models.StatePending,
	)
	if err != nil {
		return fmt.Errorf("advance to classified: %w", err)
	}

	if advanced.RowsAffected() == 0 {
		return pulseerrors.NewStaleStateError(string(models.StatePending), "")
	}

	var aspects []byte

	if len(result.Aspects) > 0 {
		aspects, err = json.Marshal(result.Aspects)
		if err != nil {
			return fmt.Errorf("marshal aspects: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO classification_results (
			id, source_item_id, version, sentiment, score, aspects,
			provider, model_tag, classified_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		result.ID, result.SourceItemID, result.Version, result.Sentiment, result.Score, aspects,
		result.Provider, result.ModelTag, result.ClassifiedAt,
	)
	if err != nil {
		return fmt.Errorf("insert classification result: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create classification: %w", err)
	}

	return nil
}

// GetBySourceItem returns the latest classification result for an item.
func (r *ClassificationsRepository) GetBySourceItem(ctx context.Context, sourceItemID uuid.UUID) (*models.ClassificationResult, error) {
	var (
		result  models.ClassificationResult
		aspects []byte
	)

	err := r.db.QueryRow(ctx, `
		SELECT id, source_item_id, version, sentiment, score, aspects,
			provider, model_tag, classified_at
		FROM classification_results
		WHERE source_item_id = $1
		ORDER BY version DESC
		LIMIT 1`, sourceItemID,
	).Scan(
		&result.ID, &result.SourceItemID, &result.Version, &result.Sentiment, &result.Score, &aspects,
		&result.Provider, &result.ModelTag, &result.ClassifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pulseerrors.NewNotFoundError("classification result", "classification result not found")
		}

		return nil, fmt.Errorf("get classification result: %w", err)
	}

	if len(aspects) > 0 {
		if err := json.Unmarshal(aspects, &result.Aspects); err != nil {
			return nil, fmt.Errorf("unmarshal aspects: %w", err)
		}
	}

	return &result, nil
}
