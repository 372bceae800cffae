package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/prodpulse/prodpulse/internal/pulseerrors"
)

// PgVectorStore implements Store on a pgvector table. It may share a
// database server with the ledger but never a transaction; every operation
// here is an independent call that can fail on its own.
type PgVectorStore struct {
	db *pgxpool.Pool
}

// Ensure PgVectorStore implements Store.
var _ Store = (*PgVectorStore)(nil)

// NewPgVectorStore creates a vector store backed by the vector_objects table.
func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

// Upsert writes the object under id, overwriting embedding and metadata on conflict.
func (s *PgVectorStore) Upsert(ctx context.Context, id uuid.UUID, embedding []float32, meta Metadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal vector metadata: %w", err)
	}

	vec := pgvector.NewVector(embedding)

	_, err = s.db.Exec(ctx, `
		INSERT INTO vector_objects (external_id, embedding, metadata, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (external_id)
		DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata, updated_at = now()`,
		id, vec, raw,
	)
	if err != nil {
		return pulseerrors.NewStoreUnavailableError(fmt.Sprintf("vector upsert: %v", err))
	}

	return nil
}

// Exists reports whether an object is present and queryable.
func (s *PgVectorStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var one int

	err := s.db.QueryRow(ctx, `SELECT 1 FROM vector_objects WHERE external_id = $1`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		return false, pulseerrors.NewStoreUnavailableError(fmt.Sprintf("vector exists: %v", err))
	}

	return true, nil
}

// ListIDs returns object ids in the inclusive [from, to] range.
func (s *PgVectorStore) ListIDs(ctx context.Context, from, to uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT external_id FROM vector_objects
		WHERE external_id >= $1 AND external_id <= $2
		ORDER BY external_id`, from, to,
	)
	if err != nil {
		return nil, pulseerrors.NewStoreUnavailableError(fmt.Sprintf("vector list ids: %v", err))
	}
	defer rows.Close()

	var ids []uuid.UUID

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan vector object id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector object ids: %w", err)
	}

	return ids, nil
}

// NearQuery returns the nearest objects by cosine distance; score = 1 - distance.
func (s *PgVectorStore) NearQuery(
	ctx context.Context, embedding []float32, limit int, productID *uuid.UUID,
) ([]Hit, error) {
	queryVec := pgvector.NewVector(embedding)

	var (
		rows pgx.Rows
		err  error
	)

	if productID == nil {
		rows, err = s.db.Query(ctx, `
			SELECT external_id, (1 - (embedding <=> $1)) AS score, metadata
			FROM vector_objects
			ORDER BY embedding <=> $1
			LIMIT $2`, queryVec, limit)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT external_id, (1 - (embedding <=> $1)) AS score, metadata
			FROM vector_objects
			WHERE metadata->>'product_id' = $2
			ORDER BY embedding <=> $1
			LIMIT $3`, queryVec, productID.String(), limit)
	}

	if err != nil {
		return nil, pulseerrors.NewStoreUnavailableError(fmt.Sprintf("vector near query: %v", err))
	}
	defer rows.Close()

	var hits []Hit

	for rows.Next() {
		var (
			hit Hit
			raw []byte
		)

		if err := rows.Scan(&hit.ExternalID, &hit.Score, &raw); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}

		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &hit.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal hit metadata: %w", err)
			}
		}

		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search hits: %w", err)
	}

	return hits, nil
}

// Delete removes an object. Deleting a missing object is a no-op.
func (s *PgVectorStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM vector_objects WHERE external_id = $1`, id)
	if err != nil {
		return pulseerrors.NewStoreUnavailableError(fmt.Sprintf("vector delete: %v", err))
	}

	return nil
}
