// Package ingest deduplicates raw connector items and persists them as
// pending work. Ingesting the same item any number of times yields exactly
// one source item; malformed items are rejected and reported without
// aborting the batch.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/prodpulse/prodpulse/internal/connector"
	"github.com/prodpulse/prodpulse/internal/models"
	"github.com/prodpulse/prodpulse/internal/observability"
	"github.com/prodpulse/prodpulse/internal/textutil"
)

// Rejection reasons reported on IngestReport entries.
const (
	reasonMissingPlatform  = "missing_platform"
	reasonMissingNativeID  = "missing_native_id"
	reasonMissingTimestamp = "missing_timestamp"
)

// ItemStore persists deduplicated source items.
type ItemStore interface {
	InsertIfAbsent(ctx context.Context, item *models.SourceItem) (bool, error)
}

// Coordinator runs ingestion: fetch from connectors, normalize, dedup, persist.
type Coordinator struct {
	connectors []connector.Connector
	items      ItemStore
	scope      models.IdentityScope
	batchSize  int
	metrics    *observability.PipelineMetrics
	logger     *slog.Logger
}

// NewCoordinator creates an ingestion coordinator. batchSize bounds the
// items persisted between cancellation checks.
func NewCoordinator(
	connectors []connector.Connector,
	items ItemStore,
	scope models.IdentityScope,
	batchSize int,
	metrics *observability.PipelineMetrics,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		connectors: connectors,
		items:      items,
		scope:      scope,
		batchSize:  batchSize,
		metrics:    metrics,
		logger:     logger,
	}
}

// Run fetches from every connector and ingests the results. A connector
// failure skips that connector and continues; its items simply do not
// arrive this pass and will be picked up by a later one.
func (c *Coordinator) Run(ctx context.Context, since time.Time, productHints []string) (models.IngestReport, error) {
	var report models.IngestReport

	for _, conn := range c.connectors {
		raw, err := conn.Fetch(ctx, since, productHints)
		if err != nil {
			c.logger.Error("connector fetch failed", "platform", conn.Platform(), "error", err)
			continue
		}

		partial, err := c.Ingest(ctx, raw)
		if err != nil {
			return report, err
		}

		report.Inserted += partial.Inserted
		report.Duplicates += partial.Duplicates
		report.Rejected = append(report.Rejected, partial.Rejected...)
	}

	return report, nil
}

// Ingest validates, normalizes, and persists a batch of raw items. Items
// whose content identity already exists are counted as duplicates and
// otherwise ignored. Whitespace-only text is not a rejection: such items
// flow through and classify as neutral downstream.
func (c *Coordinator) Ingest(ctx context.Context, raw []models.RawItem) (models.IngestReport, error) {
	report := models.IngestReport{Rejected: []models.RejectedItem{}}

	for _, chunk := range textutil.Chunk(raw, c.batchSize) {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := c.ingestChunk(ctx, &report, chunk); err != nil {
			return report, err
		}
	}

	c.metrics.RecordIngested(ctx, int64(report.Inserted), int64(report.Duplicates), int64(len(report.Rejected)))

	c.logger.Info("ingestion batch complete",
		"received", len(raw),
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"rejected", len(report.Rejected),
	)

	return report, nil
}

func (c *Coordinator) ingestChunk(ctx context.Context, report *models.IngestReport, chunk []models.RawItem) error {
	for _, item := range chunk {
		if reason, ok := validate(item); !ok {
			report.Rejected = append(report.Rejected, models.RejectedItem{
				Platform: item.Platform,
				NativeID: item.NativeID,
				Reason:   reason,
			})

			continue
		}

		sourceItem := &models.SourceItem{
			ID:              uuid.New(),
			ContentIdentity: models.ContentIdentity(c.scope, item.Platform, item.NativeID),
			Platform:        item.Platform,
			NativeID:        item.NativeID,
			ProductID:       item.ProductHint,
			RawText:         textutil.Normalize(item.Text),
			AuthorRef:       item.AuthorRef,
			CreatedAt:       item.CreatedAt,
			FetchedAt:       time.Now().UTC(),
		}

		inserted, err := c.items.InsertIfAbsent(ctx, sourceItem)
		if err != nil {
			return err
		}

		if inserted {
			report.Inserted++
		} else {
			report.Duplicates++
		}
	}

	return nil
}

func validate(item models.RawItem) (string, bool) {
	switch {
	case item.Platform == "":
		return reasonMissingPlatform, false
	case item.NativeID == "":
		return reasonMissingNativeID, false
	case item.CreatedAt.IsZero():
		return reasonMissingTimestamp, false
	default:
		return "", true
	}
}
