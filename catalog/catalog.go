// Package catalog holds the static definition of body types and the image
// layers each one offers.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// DefaultTag marks the image a layer starts with when a body type is
// selected.
const DefaultTag = "default"

var (
	ErrBodyTypeNotFound = errors.New("body type is not configured")
	ErrBodyTypeKey      = errors.New("body type key is required")
	ErrLayerKey         = errors.New("layer key is required")
	ErrLayerIndex       = errors.New("layer index is invalid")
	ErrImageSource      = errors.New("image source is required")
)

// ImageDescriptor references one selectable image.
type ImageDescriptor struct {
	ImageSource string   `json:"imageSource"`
	Tags        []string `json:"tags,omitempty"`
}

// HasTag reports whether the descriptor carries tag, ignoring case.
func (d ImageDescriptor) HasTag(tag string) bool {
	return slices.ContainsFunc(d.Tags, func(t string) bool { return strings.EqualFold(t, tag) })
}

// ImageLayer is a z-ordered slot. LayerIndex 0 is the base body.
type ImageLayer struct {
	Key        string            `json:"key"`
	LayerIndex int               `json:"layerIndex"`
	Images     []ImageDescriptor `json:"images"`
}

// Default returns the first image tagged DefaultTag, or the first image when
// none is tagged. It reports false only for a layer without images.
func (l ImageLayer) Default() (ImageDescriptor, bool) {
	if len(l.Images) == 0 {
		return ImageDescriptor{}, false
	}
	for _, img := range l.Images {
		if img.HasTag(DefaultTag) {
			return img, true
		}
	}
	return l.Images[0], true
}

// WithTag returns the images carrying tag, in catalog order.
func (l ImageLayer) WithTag(tag string) []ImageDescriptor {
	var out []ImageDescriptor
	for _, img := range l.Images {
		if img.HasTag(tag) {
			out = append(out, img)
		}
	}
	return out
}

// Find looks up an image by source.
func (l ImageLayer) Find(source string) (ImageDescriptor, bool) {
	for _, img := range l.Images {
		if img.ImageSource == source {
			return img, true
		}
	}
	return ImageDescriptor{}, false
}

// BodyType groups the layers available for one base body.
type BodyType struct {
	Key    string       `json:"key"`
	Layers []ImageLayer `json:"layers"`
}

func (b BodyType) Layer(key string) (ImageLayer, bool) {
	for _, l := range b.Layers {
		if l.Key == key {
			return l, true
		}
	}
	return ImageLayer{}, false
}

func (b BodyType) LayerAt(index int) (ImageLayer, bool) {
	for _, l := range b.Layers {
		if l.LayerIndex == index {
			return l, true
		}
	}
	return ImageLayer{}, false
}

// Defaults maps each layer index to its default image source. Layers without
// images are absent.
func (b BodyType) Defaults() map[int]string {
	out := make(map[int]string, len(b.Layers))
	for _, l := range b.Layers {
		if img, ok := l.Default(); ok {
			out[l.LayerIndex] = img.ImageSource
		}
	}
	return out
}

func (b BodyType) validate() error {
	if strings.TrimSpace(b.Key) == "" {
		return ErrBodyTypeKey
	}
	seen := make(map[int]bool, len(b.Layers))
	for _, l := range b.Layers {
		if strings.TrimSpace(l.Key) == "" {
			return fmt.Errorf("body type %q: %w", b.Key, ErrLayerKey)
		}
		if l.LayerIndex < 0 || seen[l.LayerIndex] {
			return fmt.Errorf("body type %q layer %q index %d: %w", b.Key, l.Key, l.LayerIndex, ErrLayerIndex)
		}
		seen[l.LayerIndex] = true
		for _, img := range l.Images {
			if strings.TrimSpace(img.ImageSource) == "" {
				return fmt.Errorf("body type %q layer %q: %w", b.Key, l.Key, ErrImageSource)
			}
		}
	}
	return nil
}

// Catalog is the full set of body types.
type Catalog struct {
	BodyTypes []BodyType `json:"bodyTypes"`
}

func (c Catalog) BodyType(key string) (BodyType, error) {
	for _, b := range c.BodyTypes {
		if b.Key == key {
			return b, nil
		}
	}
	return BodyType{}, fmt.Errorf("%q: %w", key, ErrBodyTypeNotFound)
}

// Validate checks keys and layer indexes. A layer with no images is valid and
// simply renders nothing.
func (c Catalog) Validate() error {
	seen := make(map[string]bool, len(c.BodyTypes))
	for _, b := range c.BodyTypes {
		if err := b.validate(); err != nil {
			return err
		}
		if seen[b.Key] {
			return fmt.Errorf("body type %q is defined twice", b.Key)
		}
		seen[b.Key] = true
	}
	return nil
}

// Load decodes and validates a JSON catalog.
func Load(r io.Reader) (Catalog, error) {
	var c Catalog
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("validate catalog: %w", err)
	}
	return c, nil
}

func LoadFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, err
	}
	defer f.Close()
	return Load(f)
}
