package vectorsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/prodpulse/prodpulse/internal/models"
	"github.com/prodpulse/prodpulse/internal/pulseerrors"
	"github.com/prodpulse/prodpulse/internal/textutil"
	"github.com/prodpulse/prodpulse/internal/vectorstore"
)

// RecordReader is the read side of the vector record mapping used by reconciliation.
type RecordReader interface {
	ListExternalIDsInRange(ctx context.Context, from, to uuid.UUID) ([]uuid.UUID, error)
	GetByExternalID(ctx context.Context, externalID uuid.UUID) (*models.VectorRecord, error)
}

// ItemReader looks up source items during repair.
type ItemReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.SourceItem, error)
}

// Reconciler compares the ledger's vector records against the store's actual
// contents. Scan only reports; Repair is a separate, explicitly invoked
// operation.
type Reconciler struct {
	records         RecordReader
	items           ItemReader
	classifications ClassificationReader
	store           vectorstore.Store
	embedder        Embedder
	logger          *slog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(
	records RecordReader,
	items ItemReader,
	classifications ClassificationReader,
	store vectorstore.Store,
	embedder Embedder,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		records:         records,
		items:           items,
		classifications: classifications,
		store:           store,
		embedder:        embedder,
		logger:          logger,
	}
}

// Scan compares vector records against store objects in the inclusive
// [from, to] external-id range and reports every disagreement. It never
// mutates either side.
func (r *Reconciler) Scan(ctx context.Context, from, to uuid.UUID) (models.DriftReport, error) {
	recorded, err := r.records.ListExternalIDsInRange(ctx, from, to)
	if err != nil {
		return models.DriftReport{}, fmt.Errorf("list vector records: %w", err)
	}

	stored, err := r.store.ListIDs(ctx, from, to)
	if err != nil {
		return models.DriftReport{}, fmt.Errorf("list store objects: %w", err)
	}

	recordedSet := make(map[uuid.UUID]struct{}, len(recorded))
	for _, id := range recorded {
		recordedSet[id] = struct{}{}
	}

	storedSet := make(map[uuid.UUID]struct{}, len(stored))
	for _, id := range stored {
		storedSet[id] = struct{}{}
	}

	report := models.DriftReport{Findings: []models.DriftFinding{}}

	for _, id := range recorded {
		if _, ok := storedSet[id]; !ok {
			report.Findings = append(report.Findings, models.DriftFinding{
				Kind:       models.DriftMissingInStore,
				ExternalID: id,
			})
		}
	}

	for _, id := range stored {
		if _, ok := recordedSet[id]; !ok {
			report.Findings = append(report.Findings, models.DriftFinding{
				Kind:       models.DriftOrphanedInStore,
				ExternalID: id,
			})
		}
	}

	report.Checked = len(recordedSet)

	for id := range storedSet {
		if _, ok := recordedSet[id]; !ok {
			report.Checked++
		}
	}

	if len(report.Findings) > 0 {
		r.logger.Warn("reconciliation found drift",
			"checked", report.Checked, "findings", len(report.Findings))
	}

	return report, nil
}

// Repair resolves the findings of a prior scan: missing-in-store objects are
// re-embedded and upserted under their original external id; orphaned store
// objects are deleted. Ledger state never regresses during repair.
func (r *Reconciler) Repair(ctx context.Context, findings []models.DriftFinding) (int, error) {
	repaired := 0

	for _, finding := range findings {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}

		switch finding.Kind {
		case models.DriftMissingInStore:
			if err := r.restoreObject(ctx, finding.ExternalID); err != nil {
				return repaired, fmt.Errorf("restore %s: %w", finding.ExternalID, err)
			}
		case models.DriftOrphanedInStore:
			if err := r.store.Delete(ctx, finding.ExternalID); err != nil {
				return repaired, fmt.Errorf("delete orphan %s: %w", finding.ExternalID, err)
			}
		default:
			return repaired, fmt.Errorf("unknown drift kind %q", finding.Kind)
		}

		repaired++
	}

	r.logger.Info("drift repair complete", "repaired", repaired)

	return repaired, nil
}

func (r *Reconciler) restoreObject(ctx context.Context, externalID uuid.UUID) error {
	record, err := r.records.GetByExternalID(ctx, externalID)
	if err != nil {
		return fmt.Errorf("get vector record: %w", err)
	}

	item, err := r.items.GetByID(ctx, record.SourceItemID)
	if err != nil {
		return fmt.Errorf("get source item: %w", err)
	}

	canonical := textutil.Normalize(item.RawText)
	if canonical == "" {
		canonical = "(no content)"
	}

	embedding, err := r.embedder.CreateEmbedding(ctx, canonical)
	if err != nil {
		return fmt.Errorf("re-embed: %w", err)
	}

	meta := vectorstore.Metadata{
		ContentIdentity: item.ContentIdentity,
		ProductID:       item.ProductID,
		Platform:        item.Platform,
		Text:            canonical,
	}

	// A restored object carries the same classification metadata a freshly
	// synced one would.
	classification, err := r.classifications.GetBySourceItem(ctx, record.SourceItemID)
	if err == nil {
		meta.Sentiment = classification.Sentiment
		for _, aspect := range classification.Aspects {
			meta.Aspects = append(meta.Aspects, aspect.Aspect)
		}
	} else if !errors.Is(err, pulseerrors.ErrNotFound) {
		return fmt.Errorf("get classification: %w", err)
	}

	return r.store.Upsert(ctx, externalID, embedding, meta)
}
