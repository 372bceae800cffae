package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/prodpulse/prodpulse"

// PipelineMetrics records stage-level counters. A nil *PipelineMetrics is
// valid and records nothing, so callers never need nil checks at each site.
type PipelineMetrics struct {
	itemsIngested   metric.Int64Counter
	itemsDuplicate  metric.Int64Counter
	itemsRejected   metric.Int64Counter
	itemsClassified metric.Int64Counter
	itemsSynced     metric.Int64Counter
	itemsFailed     metric.Int64Counter
	providerErrors  metric.Int64Counter
}

// NewPipelineMetrics creates counters on the global meter provider.
func NewPipelineMetrics() *PipelineMetrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &PipelineMetrics{}

	var err error

	if m.itemsIngested, err = meter.Int64Counter("pipeline.items.ingested"); err != nil {
		slog.Warn("metrics: counter init failed", "name", "pipeline.items.ingested", "error", err)
	}

	if m.itemsDuplicate, err = meter.Int64Counter("pipeline.items.duplicate"); err != nil {
		slog.Warn("metrics: counter init failed", "name", "pipeline.items.duplicate", "error", err)
	}

	if m.itemsRejected, err = meter.Int64Counter("pipeline.items.rejected"); err != nil {
		slog.Warn("metrics: counter init failed", "name", "pipeline.items.rejected", "error", err)
	}

	if m.itemsClassified, err = meter.Int64Counter("pipeline.items.classified"); err != nil {
		slog.Warn("metrics: counter init failed", "name", "pipeline.items.classified", "error", err)
	}

	if m.itemsSynced, err = meter.Int64Counter("pipeline.items.synced"); err != nil {
		slog.Warn("metrics: counter init failed", "name", "pipeline.items.synced", "error", err)
	}

	if m.itemsFailed, err = meter.Int64Counter("pipeline.items.failed"); err != nil {
		slog.Warn("metrics: counter init failed", "name", "pipeline.items.failed", "error", err)
	}

	if m.providerErrors, err = meter.Int64Counter("pipeline.provider.errors"); err != nil {
		slog.Warn("metrics: counter init failed", "name", "pipeline.provider.errors", "error", err)
	}

	return m
}

// RecordIngested adds to the ingestion counters.
func (m *PipelineMetrics) RecordIngested(ctx context.Context, inserted, duplicates, rejected int64) {
	if m == nil {
		return
	}

	if m.itemsIngested != nil {
		m.itemsIngested.Add(ctx, inserted)
	}

	if m.itemsDuplicate != nil {
		m.itemsDuplicate.Add(ctx, duplicates)
	}

	if m.itemsRejected != nil {
		m.itemsRejected.Add(ctx, rejected)
	}
}

// RecordClassified counts items that reached CLASSIFIED, labeled by provider.
func (m *PipelineMetrics) RecordClassified(ctx context.Context, provider string) {
	if m == nil || m.itemsClassified == nil {
		return
	}

	m.itemsClassified.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordSynced counts items that reached VECTORIZED.
func (m *PipelineMetrics) RecordSynced(ctx context.Context, n int64) {
	if m == nil || m.itemsSynced == nil {
		return
	}

	m.itemsSynced.Add(ctx, n)
}

// RecordFailed counts items moved to FAILED, labeled by reason.
func (m *PipelineMetrics) RecordFailed(ctx context.Context, reason string) {
	if m == nil || m.itemsFailed == nil {
		return
	}

	m.itemsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordProviderError counts provider call failures, labeled by kind.
func (m *PipelineMetrics) RecordProviderError(ctx context.Context, kind string) {
	if m == nil || m.providerErrors == nil {
		return
	}

	m.providerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
