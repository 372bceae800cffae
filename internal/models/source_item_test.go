package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentIdentity(t *testing.T) {
	t.Run("same input yields same identity", func(t *testing.T) {
		a := ContentIdentity(IdentityScopePerPlatform, "reddit", "t3_abc123")
		b := ContentIdentity(IdentityScopePerPlatform, "reddit", "t3_abc123")

		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("per-platform scope distinguishes platforms", func(t *testing.T) {
		a := ContentIdentity(IdentityScopePerPlatform, "reddit", "abc123")
		b := ContentIdentity(IdentityScopePerPlatform, "youtube", "abc123")

		assert.NotEqual(t, a, b)
	})

	t.Run("cross-platform scope collapses platforms", func(t *testing.T) {
		a := ContentIdentity(IdentityScopeCrossPlatform, "reddit", "abc123")
		b := ContentIdentity(IdentityScopeCrossPlatform, "youtube", "abc123")

		assert.Equal(t, a, b)
	})

	t.Run("different native ids never collide on separator", func(t *testing.T) {
		// "red" + "dit_x" must not hash like "reddit" + "_x".
		a := ContentIdentity(IdentityScopePerPlatform, "red", "dit_x")
		b := ContentIdentity(IdentityScopePerPlatform, "reddit", "_x")

		assert.NotEqual(t, a, b)
	})
}
