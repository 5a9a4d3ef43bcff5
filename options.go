package portrait

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"
)

// LoadErrorPolicy decides what a composite shows when some layer images fail
// to load.
type LoadErrorPolicy int

const (
	// DegradeLayer draws the placeholder (or nothing) at each failed layer and
	// keeps every other layer.
	DegradeLayer LoadErrorPolicy = iota
	// KeepLastFrame returns the previous error-free composite unchanged.
	KeepLastFrame
)

func (p LoadErrorPolicy) String() string {
	switch p {
	case KeepLastFrame:
		return "keep-last"
	default:
		return "degrade"
	}
}

// ParseLoadErrorPolicy accepts the names produced by String.
func ParseLoadErrorPolicy(s string) (LoadErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "degrade":
		return DegradeLayer, nil
	case "keep-last":
		return KeepLastFrame, nil
	}
	return DegradeLayer, fmt.Errorf("unknown load error policy %q", s)
}

type Options struct {
	// Surface size in pixels. Layer images are drawn at origin without
	// scaling, so anything outside the surface is clipped.
	Width  int
	Height int
	// Outline stamp offset in pixels. The band looks clean only when this
	// matches the pixel size the art was authored at; other values show
	// visible stepping along diagonals.
	Thickness int
	// Border fill used by sessions until SetBorderColor is called.
	BorderColor color.Color
	// Per-image load deadline. Zero means no deadline beyond the caller's
	// context.
	LoadTimeout time.Duration
	// Upper bound on concurrent loads. Zero or negative loads every layer at
	// once.
	MaxConcurrentLoads int
	OnLoadError        LoadErrorPolicy
	// Drawn in place of a layer that failed to load. Nil leaves the slot
	// transparent.
	Placeholder image.Image
}

func DefaultOptions() Options {
	return Options{
		Width:       256,
		Height:      256,
		Thickness:   4,
		BorderColor: color.Black,
		LoadTimeout: 10 * time.Second,
		OnLoadError: DegradeLayer,
	}
}

// OptionsFromSize derives options for a surface of the given size, assuming
// art authored on a 64 px grid and upscaled to fill the surface.
func OptionsFromSize(size image.Point) Options {
	opt := DefaultOptions()
	if size.X <= 0 || size.Y <= 0 {
		return opt
	}
	opt.Width, opt.Height = size.X, size.Y
	opt.Thickness = max(1, min(size.X, size.Y)/64)
	return opt
}
