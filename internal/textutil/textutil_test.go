package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Great Product", "great product"},
		{"strips urls", "check https://example.com/x?y=1 out", "check out"},
		{"collapses whitespace", "too   many\n\nspaces", "too many spaces"},
		{"whitespace only becomes empty", "   \t\n ", ""},
		{"url only becomes empty", "https://example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestChunk(t *testing.T) {
	t.Run("splits into even chunks with remainder", func(t *testing.T) {
		chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)

		assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks)
	})

	t.Run("size below one yields single chunk", func(t *testing.T) {
		chunks := Chunk([]int{1, 2, 3}, 0)

		assert.Equal(t, [][]int{{1, 2, 3}}, chunks)
	})

	t.Run("empty input yields no chunks", func(t *testing.T) {
		assert.Nil(t, Chunk([]int{}, 3))
		assert.Nil(t, Chunk([]int{}, 0))
	})
}
