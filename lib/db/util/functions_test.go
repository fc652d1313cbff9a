package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		assert.Equal(t, HashString("roots;https://a", 7), HashString("roots;https://a", 7))
	})

	t.Run("SeedChangesHash", func(t *testing.T) {
		assert.NotEqual(t, HashString("key", 1), HashString("key", 2))
	})

	t.Run("KeyChangesHash", func(t *testing.T) {
		assert.NotEqual(t, HashString("a", 0), HashString("b", 0))
	})
}
