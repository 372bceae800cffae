// Package connector defines the source-connector boundary: adapters that
// fetch raw items from external platforms for the ingestion coordinator.
package connector

import (
	"context"
	"log/slog"
	"time"

	"github.com/prodpulse/prodpulse/internal/models"
)

// Connector fetches raw items created since the given time, optionally
// narrowed by product hints (names or aliases to search for). Implementations
// own their transport retries and rate limits.
type Connector interface {
	Platform() string
	Fetch(ctx context.Context, since time.Time, productHints []string) ([]models.RawItem, error)
}

// SourceSuggester proposes candidate sources (subreddits, channels) for a
// product, ranked by how often recent activity mentions it.
type SourceSuggester interface {
	Suggest(ctx context.Context, productName string) ([]string, error)
}

// Runner is one scheduled unit of pipeline work.
type Runner interface {
	RunOnce(ctx context.Context) error
}

// Poller runs a Runner at a fixed interval, starting immediately.
type Poller struct {
	interval time.Duration
	name     string
	logger   *slog.Logger
}

// NewPoller creates a poller with the given interval and name.
func NewPoller(interval time.Duration, name string, logger *slog.Logger) *Poller {
	return &Poller{
		interval: interval,
		name:     name,
		logger:   logger,
	}
}

// Start begins running the runner at the configured interval. The first run
// happens immediately; a failed run never stops the schedule. Polling stops
// when the context is cancelled.
func (p *Poller) Start(ctx context.Context, runner Runner) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.logger.Info("starting poller", "name", p.name, "interval", p.interval)

		if err := runner.RunOnce(ctx); err != nil {
			p.logger.Error("initial run failed", "name", p.name, "error", err)
		}

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("poller shutting down", "name", p.name)
				return
			case <-ticker.C:
				if err := runner.RunOnce(ctx); err != nil {
					p.logger.Error("scheduled run failed", "name", p.name, "error", err)
				}
			}
		}
	}()
}
