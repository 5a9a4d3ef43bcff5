package portrait

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/google/uuid"

	"github.com/setanarut/portrait/catalog"
)

// Frame is one rendered generation of a session.
type Frame struct {
	Generation uint64
	Composite  *image.RGBA
	Outlined   *image.RGBA
	Border     color.Color
	Errors     []error
}

// Session is one character-editing session: the chosen body type, the
// per-layer selection and the last frame rendered from them.
type Session struct {
	ID string

	opts       Options
	compositor *Compositor

	mu       sync.Mutex
	bodyType catalog.BodyType
	images   CanvasImageSet
	border   color.Color
	last     *Frame
}

func NewSession(bt catalog.BodyType, loader Loader, opts Options) *Session {
	border := orBlack(opts.BorderColor)
	if opts.Thickness <= 0 {
		opts.Thickness = DefaultOptions().Thickness
	}
	s := &Session{
		ID:         uuid.NewString(),
		opts:       opts,
		compositor: NewCompositor(loader, opts),
		bodyType:   bt,
		images:     NewCanvasImageSet(bt),
		border:     border,
	}
	Logger().Info("session started", "session", s.ID, "body_type", bt.Key)
	return s
}

func (s *Session) BodyType() catalog.BodyType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodyType
}

// SelectBodyType replaces the whole selection with the defaults of bt.
func (s *Session) SelectBodyType(bt catalog.BodyType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodyType = bt
	s.images = NewCanvasImageSet(bt)
	Logger().Info("body type selected", "session", s.ID, "body_type", bt.Key)
}

// SelectPart sets the image drawn at a layer. The source must be one the
// body type's layer offers.
func (s *Session) SelectPart(index int, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	layer, ok := s.bodyType.LayerAt(index)
	if !ok {
		return fmt.Errorf("layer %d: %w", index, ErrUnknownLayer)
	}
	if _, ok := layer.Find(source); !ok {
		return fmt.Errorf("layer %q source %q: %w", layer.Key, source, ErrUnknownPart)
	}
	s.images.Set(index, source)
	return nil
}

// ClearPart leaves a layer empty.
func (s *Session) ClearPart(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bodyType.LayerAt(index); !ok {
		return fmt.Errorf("layer %d: %w", index, ErrUnknownLayer)
	}
	s.images.Clear(index)
	return nil
}

// SetBorderColor sets the border used by the next render. Nil means black.
func (s *Session) SetBorderColor(c color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.border = orBlack(c)
}

func (s *Session) BorderColor() color.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.border
}

func (s *Session) Layers() []Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images.Layers()
}

// LastFrame returns the newest frame rendered so far, or nil.
func (s *Session) LastFrame() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Render composites the current selection and outlines it. A render
// superseded by a later call returns ErrStaleGeneration and leaves LastFrame
// alone.
func (s *Session) Render(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	layers := s.images.Layers()
	border := s.border
	s.mu.Unlock()

	comp, err := s.compositor.Render(ctx, layers)
	if err != nil {
		return nil, err
	}
	f := &Frame{
		Generation: comp.Generation,
		Composite:  comp.Image,
		Outlined:   Outline(comp.Image, border, s.opts.Thickness),
		Border:     border,
		Errors:     comp.Errors,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != nil && s.last.Generation > f.Generation {
		return nil, ErrStaleGeneration
	}
	// The border may have changed while the images were loading.
	if !sameColor(s.border, border) {
		f.Border = s.border
		f.Outlined = Outline(f.Composite, s.border, s.opts.Thickness)
	}
	s.last = f
	return f, nil
}

// Recolor re-outlines the last composite with a new border color without
// loading any image again.
func (s *Session) Recolor(c color.Color) (*Frame, bool) {
	c = orBlack(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.border = c
	if s.last == nil {
		return nil, false
	}
	f := *s.last
	f.Border = c
	f.Outlined = Outline(f.Composite, c, s.opts.Thickness)
	s.last = &f
	return &f, true
}

func orBlack(c color.Color) color.Color {
	if c == nil {
		return color.Black
	}
	return c
}

func sameColor(a, b color.Color) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}
