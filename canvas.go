package portrait

import (
	"maps"
	"slices"

	"github.com/setanarut/portrait/catalog"
)

// CanvasImageSet is the sparse mapping from layer index to the image source
// currently selected at that index.
type CanvasImageSet struct {
	entries map[int]string
}

// NewCanvasImageSet starts from the default image of every layer of bt.
func NewCanvasImageSet(bt catalog.BodyType) CanvasImageSet {
	return CanvasImageSet{entries: bt.Defaults()}
}

func (s *CanvasImageSet) Set(index int, source string) {
	if s.entries == nil {
		s.entries = make(map[int]string)
	}
	s.entries[index] = source
}

func (s *CanvasImageSet) Clear(index int) {
	delete(s.entries, index)
}

func (s CanvasImageSet) Source(index int) (string, bool) {
	src, ok := s.entries[index]
	return src, ok
}

func (s CanvasImageSet) Len() int { return len(s.entries) }

// Layers returns the entries in ascending index order.
func (s CanvasImageSet) Layers() []Layer {
	out := make([]Layer, 0, len(s.entries))
	for _, i := range slices.Sorted(maps.Keys(s.entries)) {
		out = append(out, Layer{Index: i, Source: s.entries[i]})
	}
	return out
}
