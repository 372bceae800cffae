package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatchResponse(t *testing.T) {
	t.Run("valid batch parses in order", func(t *testing.T) {
		content := `{"results":[
			{"sentiment":"positive","score":0.8,"aspects":[{"aspect":"battery","sentiment":"positive"}]},
			{"sentiment":"negative","score":-0.4,"aspects":[]}
		]}`

		outcomes, err := parseBatchResponse(content, 2)

		require.NoError(t, err)
		require.Len(t, outcomes, 2)
		require.NotNil(t, outcomes[0].Result)
		assert.Equal(t, "positive", outcomes[0].Result.Sentiment)
		assert.Equal(t, 0.8, outcomes[0].Result.Score)
		require.Len(t, outcomes[0].Result.Aspects, 1)
		assert.Equal(t, "battery", outcomes[0].Result.Aspects[0].Aspect)
		require.NotNil(t, outcomes[1].Result)
		assert.Equal(t, "negative", outcomes[1].Result.Sentiment)
	})

	t.Run("malformed json fails the batch", func(t *testing.T) {
		_, err := parseBatchResponse(`not json`, 1)

		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("count mismatch fails the batch", func(t *testing.T) {
		content := `{"results":[{"sentiment":"neutral","score":0}]}`

		_, err := parseBatchResponse(content, 2)

		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("invalid member fails only that member", func(t *testing.T) {
		content := `{"results":[
			{"sentiment":"ecstatic","score":0.9},
			{"sentiment":"neutral","score":0}
		]}`

		outcomes, err := parseBatchResponse(content, 2)

		require.NoError(t, err)
		require.Len(t, outcomes, 2)
		assert.Nil(t, outcomes[0].Result)
		assert.ErrorIs(t, outcomes[0].Err, ErrInvalidResponse)
		assert.NotNil(t, outcomes[1].Result)
	})

	t.Run("score out of range fails the member", func(t *testing.T) {
		content := `{"results":[{"sentiment":"positive","score":1.5}]}`

		outcomes, err := parseBatchResponse(content, 1)

		require.NoError(t, err)
		assert.ErrorIs(t, outcomes[0].Err, ErrInvalidResponse)
	})

	t.Run("unknown aspects are dropped, known kept", func(t *testing.T) {
		content := `{"results":[{"sentiment":"positive","score":0.5,"aspects":[
			{"aspect":"battery","sentiment":"positive"},
			{"aspect":"vibes","sentiment":"positive"},
			{"aspect":"price","sentiment":"wild"}
		]}]}`

		outcomes, err := parseBatchResponse(content, 1)

		require.NoError(t, err)
		require.NotNil(t, outcomes[0].Result)
		require.Len(t, outcomes[0].Result.Aspects, 1)
		assert.Equal(t, "battery", outcomes[0].Result.Aspects[0].Aspect)
	})
}
