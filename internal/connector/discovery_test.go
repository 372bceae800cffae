package connector

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSuggester struct {
	suggestFunc func(ctx context.Context, productName string) ([]string, error)
}

func (m *mockSuggester) Suggest(ctx context.Context, productName string) ([]string, error) {
	return m.suggestFunc(ctx, productName)
}

func TestDiscovery_Discover(t *testing.T) {
	t.Run("collects suggestions per platform", func(t *testing.T) {
		discovery := NewDiscovery(map[string]SourceSuggester{
			"reddit": &mockSuggester{
				suggestFunc: func(_ context.Context, product string) ([]string, error) {
					assert.Equal(t, "widget", product)

					return []string{"r/widgets", "r/gadgets"}, nil
				},
			},
			"youtube": &mockSuggester{
				suggestFunc: func(_ context.Context, _ string) ([]string, error) {
					return []string{"Widget Reviews"}, nil
				},
			},
		}, slog.Default())

		sources, err := discovery.Discover(context.Background(), "widget")

		require.NoError(t, err)
		assert.Equal(t, []string{"r/widgets", "r/gadgets"}, sources["reddit"])
		assert.Equal(t, []string{"Widget Reviews"}, sources["youtube"])
	})

	t.Run("one platform failing never hides the other", func(t *testing.T) {
		discovery := NewDiscovery(map[string]SourceSuggester{
			"reddit": &mockSuggester{
				suggestFunc: func(_ context.Context, _ string) ([]string, error) {
					return nil, errors.New("rate limited")
				},
			},
			"youtube": &mockSuggester{
				suggestFunc: func(_ context.Context, _ string) ([]string, error) {
					return []string{"Widget Reviews"}, nil
				},
			},
		}, slog.Default())

		sources, err := discovery.Discover(context.Background(), "widget")

		require.NoError(t, err)
		assert.NotContains(t, sources, "reddit")
		assert.Equal(t, []string{"Widget Reviews"}, sources["youtube"])
	})

	t.Run("errors only when every platform fails", func(t *testing.T) {
		boom := errors.New("all down")
		discovery := NewDiscovery(map[string]SourceSuggester{
			"reddit":  &mockSuggester{suggestFunc: func(_ context.Context, _ string) ([]string, error) { return nil, boom }},
			"youtube": &mockSuggester{suggestFunc: func(_ context.Context, _ string) ([]string, error) { return nil, boom }},
		}, slog.Default())

		_, err := discovery.Discover(context.Background(), "widget")

		assert.ErrorIs(t, err, boom)
	})

	t.Run("no suggesters yields an empty result", func(t *testing.T) {
		discovery := NewDiscovery(nil, slog.Default())

		sources, err := discovery.Discover(context.Background(), "widget")

		require.NoError(t, err)
		assert.Empty(t, sources)
	})
}
