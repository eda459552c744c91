package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAddContains(t *testing.T) {
	t.Parallel()

	set := NewSet()
	assert.Zero(t, set.Len())
	assert.False(t, set.Contains("https://example.com/a.jpg"))

	set.Add("https://example.com/a.jpg")
	assert.True(t, set.Contains("https://example.com/a.jpg"))
	assert.Equal(t, 1, set.Len())

	// Re-adding is a no-op.
	set.Add("https://example.com/a.jpg")
	assert.Equal(t, 1, set.Len())
}

func TestSetFromSeed(t *testing.T) {
	t.Parallel()

	set := NewSetFrom([]string{"a", "b", "a"})
	assert.Equal(t, 2, set.Len())
	assert.ElementsMatch(t, []string{"a", "b"}, set.URLs())
}
