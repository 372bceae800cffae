// Package vectorsync moves classified items into the vector store and keeps
// the durable id mapping that makes drift detectable. External object ids
// are derived deterministically from content identity, so a retried upsert
// after a crash overwrites the same object instead of duplicating it.
package vectorsync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/prodpulse/prodpulse/internal/models"
	"github.com/prodpulse/prodpulse/internal/observability"
	"github.com/prodpulse/prodpulse/internal/pulseerrors"
	"github.com/prodpulse/prodpulse/internal/retry"
	"github.com/prodpulse/prodpulse/internal/textutil"
	"github.com/prodpulse/prodpulse/internal/vectorstore"
)

// externalIDNamespace is the fixed UUIDv5 namespace for external object ids.
// Changing it would orphan every existing vector-store object.
var externalIDNamespace = uuid.MustParse("9a7b6c5d-1e2f-4a3b-8c9d-0e1f2a3b4c5d")

// ExternalID derives the deterministic vector-store object id for a content
// identity. Same identity, same id, on every run.
func ExternalID(contentIdentity string) uuid.UUID {
	return uuid.NewSHA1(externalIDNamespace, []byte(contentIdentity))
}

// Embedder produces the embedding for a canonical text.
type Embedder interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// Ledger is the slice of the processing ledger the syncer needs.
type Ledger interface {
	ClaimBatch(ctx context.Context, state models.State, limit int, claimedBy string, staleness time.Duration) ([]models.SourceItem, error)
	Release(ctx context.Context, itemID uuid.UUID) error
	MarkFailed(ctx context.Context, itemID uuid.UUID, from models.State, reason models.FailReason) error
}

// ClassificationReader looks up the classification carried into vector metadata.
type ClassificationReader interface {
	GetBySourceItem(ctx context.Context, sourceItemID uuid.UUID) (*models.ClassificationResult, error)
}

// RecordStore persists the item-to-object mapping and advances the ledger atomically.
type RecordStore interface {
	CreateAndAdvance(ctx context.Context, record *models.VectorRecord) error
}

// Syncer claims CLASSIFIED items, embeds them, and upserts into the vector store.
type Syncer struct {
	ledger          Ledger
	classifications ClassificationReader
	records         RecordStore
	embedder        Embedder
	store           vectorstore.Store
	policy          retry.Policy
	metrics         *observability.PipelineMetrics
	logger          *slog.Logger
	embeddingModel  string
	batchSize       int
	staleness       time.Duration
}

// NewSyncer creates a vector syncer.
func NewSyncer(
	ledger Ledger,
	classifications ClassificationReader,
	records RecordStore,
	embedder Embedder,
	store vectorstore.Store,
	policy retry.Policy,
	metrics *observability.PipelineMetrics,
	logger *slog.Logger,
	embeddingModel string,
	batchSize int,
	staleness time.Duration,
) *Syncer {
	return &Syncer{
		ledger:          ledger,
		classifications: classifications,
		records:         records,
		embedder:        embedder,
		store:           store,
		policy:          policy,
		metrics:         metrics,
		logger:          logger,
		embeddingModel:  embeddingModel,
		batchSize:       batchSize,
		staleness:       staleness,
	}
}

// Report summarizes one sync pass.
type Report struct {
	Claimed int `json:"claimed"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Races   int `json:"races"`
	Errors  int `json:"errors"`
}

// Run claims one batch of CLASSIFIED items and syncs each into the vector
// store. Per-item failures never abort the pass.
func (s *Syncer) Run(ctx context.Context) (Report, error) {
	workerID := "vectorsync-" + uuid.NewString()

	items, err := s.ledger.ClaimBatch(ctx, models.StateClassified, s.batchSize, workerID, s.staleness)
	if err != nil {
		return Report{}, err
	}

	report := Report{Claimed: len(items)}

	for idx, item := range items {
		if ctx.Err() != nil {
			s.releaseAll(ctx, items[idx:])
			return report, ctx.Err()
		}

		s.syncItem(ctx, &report, item)
	}

	s.logger.Info("vector sync pass complete",
		"claimed", report.Claimed,
		"synced", report.Synced,
		"failed", report.Failed,
		"races", report.Races,
		"errors", report.Errors,
	)

	return report, nil
}

// syncItem embeds and upserts one item, then records the mapping and
// advances the ledger in one relational transaction. The upsert deliberately
// happens first and outside that transaction: a crash in between leaves the
// item CLASSIFIED and the retried upsert overwrites in place.
func (s *Syncer) syncItem(ctx context.Context, report *Report, item models.SourceItem) {
	canonical := textutil.Normalize(item.RawText)
	if canonical == "" {
		// Whitespace-only items carry no embeddable content; the sentiment
		// label still is the canonical representation.
		canonical = "(no content)"
	}

	meta := vectorstore.Metadata{
		ContentIdentity: item.ContentIdentity,
		ProductID:       item.ProductID,
		Platform:        item.Platform,
		Text:            canonical,
	}

	var classification *models.ClassificationResult

	err := s.policy.Do(ctx, func(ctx context.Context) error {
		result, readErr := s.classifications.GetBySourceItem(ctx, item.ID)
		if readErr != nil {
			if errors.Is(readErr, pulseerrors.ErrNotFound) {
				// Tolerated: the item syncs without sentiment metadata.
				return nil
			}

			return readErr
		}

		classification = result

		return nil
	})
	if err != nil {
		// A relational read blip is not a definitive failure; put the item
		// back for the next pass instead of marking it FAILED.
		report.Errors++

		s.logger.Error("read classification failed", "source_item_id", item.ID, "error", err)

		if releaseErr := s.ledger.Release(ctx, item.ID); releaseErr != nil {
			s.logger.Error("release claim failed", "source_item_id", item.ID, "error", releaseErr)
		}

		return
	}

	if classification != nil {
		meta.Sentiment = classification.Sentiment
		for _, aspect := range classification.Aspects {
			meta.Aspects = append(meta.Aspects, aspect.Aspect)
		}
	}

	var embedding []float32

	err = s.policy.Do(ctx, func(ctx context.Context) error {
		var embedErr error
		embedding, embedErr = s.embedder.CreateEmbedding(ctx, canonical)

		return embedErr
	})
	if err != nil {
		s.fail(ctx, report, item, models.FailProviderError, err)
		return
	}

	externalID := ExternalID(item.ContentIdentity)

	err = s.policy.Do(ctx, func(ctx context.Context) error {
		return s.store.Upsert(ctx, externalID, embedding, meta)
	})
	if err != nil {
		s.fail(ctx, report, item, models.FailStoreUnavailable, err)
		return
	}

	record := &models.VectorRecord{
		SourceItemID:    item.ID,
		ContentIdentity: item.ContentIdentity,
		ExternalID:      externalID,
		EmbeddingModel:  s.embeddingModel,
		SyncedAt:        time.Now().UTC(),
	}

	err = s.records.CreateAndAdvance(ctx, record)
	if err != nil {
		var staleErr *pulseerrors.StaleStateError
		if errors.As(err, &staleErr) {
			report.Races++
			return
		}

		report.Errors++

		s.logger.Error("persist vector record failed", "source_item_id", item.ID, "error", err)

		if releaseErr := s.ledger.Release(ctx, item.ID); releaseErr != nil {
			s.logger.Error("release claim failed", "source_item_id", item.ID, "error", releaseErr)
		}

		return
	}

	report.Synced++

	s.metrics.RecordSynced(ctx, 1)
}

// fail marks the item FAILED after its retry budget is spent.
func (s *Syncer) fail(
	ctx context.Context, report *Report, item models.SourceItem, reason models.FailReason, cause error,
) {
	s.logger.Error("vector sync failed for item",
		"source_item_id", item.ID, "reason", reason, "error", cause)

	err := s.ledger.MarkFailed(ctx, item.ID, models.StateClassified, reason)
	if err != nil {
		var staleErr *pulseerrors.StaleStateError
		if errors.As(err, &staleErr) {
			report.Races++
			return
		}

		report.Errors++

		s.logger.Error("mark failed errored", "source_item_id", item.ID, "error", err)

		return
	}

	report.Failed++

	s.metrics.RecordFailed(ctx, string(reason))
}

// releaseAll clears claims on items the pass did not reach.
func (s *Syncer) releaseAll(ctx context.Context, items []models.SourceItem) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	for _, item := range items {
		if err := s.ledger.Release(releaseCtx, item.ID); err != nil {
			s.logger.Error("release claim failed", "source_item_id", item.ID, "error", err)
		}
	}
}
