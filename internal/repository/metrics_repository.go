package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prodpulse/prodpulse/internal/models"
)

// MetricsRepository is the read side for the aggregator: pure queries over
// source items and classification results, never mutating pipeline state.
type MetricsRepository struct {
	db *pgxpool.Pool
}

// NewMetricsRepository creates a new metrics repository.
func NewMetricsRepository(db *pgxpool.Pool) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// StateCountRow is one (product, state) count of source items in a window.
type StateCountRow struct {
	ProductID uuid.UUID
	State     models.State
	Count     int
}

// SentimentCountRow is one (product, sentiment) count over classified items.
type SentimentCountRow struct {
	ProductID uuid.UUID
	Sentiment string
	Count     int
}

// AspectRow is the aspects and score of one classified item.
type AspectRow struct {
	ProductID uuid.UUID
	Aspects   []models.AspectSentiment
	Score     float64
}

// StateCounts returns per-product, per-state item counts within the window.
// The aggregator derives coverage (classified / total) from these.
func (r *MetricsRepository) StateCounts(
	ctx context.Context, productIDs []uuid.UUID, window models.Window,
) ([]StateCountRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT si.product_id, ps.state, COUNT(*)
		FROM source_items si
		INNER JOIN processing_states ps ON ps.source_item_id = si.id
		WHERE si.product_id = ANY($1) AND si.created_at >= $2 AND si.created_at <= $3
		GROUP BY si.product_id, ps.state`,
		productIDs, window.Since, window.Until,
	)
	if err != nil {
		return nil, fmt.Errorf("state counts: %w", err)
	}
	defer rows.Close()

	var out []StateCountRow

	for rows.Next() {
		var row StateCountRow
		if err := rows.Scan(&row.ProductID, &row.State, &row.Count); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state counts: %w", err)
	}

	return out, nil
}

// SentimentCounts returns per-product sentiment counts over successfully
// classified items (state CLASSIFIED or VECTORIZED) in the window, using the
// latest classification version per item.
func (r *MetricsRepository) SentimentCounts(
	ctx context.Context, productIDs []uuid.UUID, window models.Window,
) ([]SentimentCountRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT si.product_id, latest.sentiment, COUNT(*)
		FROM source_items si
		INNER JOIN processing_states ps ON ps.source_item_id = si.id
		INNER JOIN (
			SELECT DISTINCT ON (source_item_id) source_item_id, sentiment
			FROM classification_results
			ORDER BY source_item_id, version DESC
		) latest ON latest.source_item_id = si.id
		WHERE si.product_id = ANY($1)
		  AND si.created_at >= $2 AND si.created_at <= $3
		  AND ps.state IN ($4, $5)
		GROUP BY si.product_id, latest.sentiment`,
		productIDs, window.Since, window.Until, models.StateClassified, models.StateVectorized,
	)
	if err != nil {
		return nil, fmt.Errorf("sentiment counts: %w", err)
	}
	defer rows.Close()

	var out []SentimentCountRow

	for rows.Next() {
		var row SentimentCountRow
		if err := rows.Scan(&row.ProductID, &row.Sentiment, &row.Count); err != nil {
			return nil, fmt.Errorf("scan sentiment count: %w", err)
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sentiment counts: %w", err)
	}

	return out, nil
}

// AspectRows returns the aspects and score of each successfully classified
// item in the window that carries at least one aspect.
func (r *MetricsRepository) AspectRows(
	ctx context.Context, productIDs []uuid.UUID, window models.Window,
) ([]AspectRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT si.product_id, latest.aspects, latest.score
		FROM source_items si
		INNER JOIN processing_states ps ON ps.source_item_id = si.id
		INNER JOIN (
			SELECT DISTINCT ON (source_item_id) source_item_id, aspects, score
			FROM classification_results
			ORDER BY source_item_id, version DESC
		) latest ON latest.source_item_id = si.id
		WHERE si.product_id = ANY($1)
		  AND si.created_at >= $2 AND si.created_at <= $3
		  AND ps.state IN ($4, $5)
		  AND latest.aspects IS NOT NULL`,
		productIDs, window.Since, window.Until, models.StateClassified, models.StateVectorized,
	)
	if err != nil {
		return nil, fmt.Errorf("aspect rows: %w", err)
	}
	defer rows.Close()

	var out []AspectRow

	for rows.Next() {
		var (
			row AspectRow
			raw []byte
		)

		if err := rows.Scan(&row.ProductID, &raw, &row.Score); err != nil {
			return nil, fmt.Errorf("scan aspect row: %w", err)
		}

		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &row.Aspects); err != nil {
				return nil, fmt.Errorf("unmarshal aspects: %w", err)
			}
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating aspect rows: %w", err)
	}

	return out, nil
}
