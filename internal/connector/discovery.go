package connector

import (
	"context"
	"log/slog"
)

// Discovery fans a product name across the configured per-platform
// suggesters and collects candidate sources.
type Discovery struct {
	suggesters map[string]SourceSuggester
	logger     *slog.Logger
}

// NewDiscovery creates a discovery service over the given suggesters, keyed
// by platform.
func NewDiscovery(suggesters map[string]SourceSuggester, logger *slog.Logger) *Discovery {
	return &Discovery{
		suggesters: suggesters,
		logger:     logger,
	}
}

// Discover returns candidate sources per platform. One platform failing
// never hides another's suggestions; Discover errors only when every
// platform failed.
func (d *Discovery) Discover(ctx context.Context, productName string) (map[string][]string, error) {
	sources := make(map[string][]string, len(d.suggesters))

	var lastErr error

	for platform, suggester := range d.suggesters {
		suggestions, err := suggester.Suggest(ctx, productName)
		if err != nil {
			d.logger.Error("source discovery failed", "platform", platform, "error", err)
			lastErr = err

			continue
		}

		sources[platform] = suggestions
	}

	if len(sources) == 0 && lastErr != nil {
		return nil, lastErr
	}

	return sources, nil
}
