package portrait

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCanvasImageSetUsesDefaults(t *testing.T) {
	set := NewCanvasImageSet(testBodyType())

	src, ok := set.Source(0)
	assert.True(t, ok)
	assert.Equal(t, "body/tan.png", src)

	// No default tag: first image.
	src, ok = set.Source(2)
	assert.True(t, ok)
	assert.Equal(t, "shirt/red.png", src)

	// No images: empty slot.
	_, ok = set.Source(5)
	assert.False(t, ok)
	assert.Equal(t, 2, set.Len())
}

func TestCanvasImageSetLayersAscending(t *testing.T) {
	var set CanvasImageSet
	set.Set(9, "c.png")
	set.Set(0, "a.png")
	set.Set(4, "b.png")
	set.Clear(9)
	set.Set(4, "b2.png")

	assert.Equal(t, []Layer{{0, "a.png"}, {4, "b2.png"}}, set.Layers())
}
