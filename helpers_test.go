package portrait

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"math/rand/v2"
	"time"

	"github.com/setanarut/portrait/catalog"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 200, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
)

// square returns a w×h transparent image with r filled with c.
func square(w, h int, r image.Rectangle, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// mapLoader serves images by source after a short random delay, so that
// completion order differs from request order.
func mapLoader(images map[string]image.Image) Loader {
	return LoaderFunc(func(ctx context.Context, source string) (image.Image, error) {
		select {
		case <-time.After(time.Duration(rand.IntN(3)) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		img, ok := images[source]
		if !ok {
			return nil, fmt.Errorf("%s: %w", source, fs.ErrNotExist)
		}
		return img, nil
	})
}

func testBodyType() catalog.BodyType {
	return catalog.BodyType{
		Key: "human",
		Layers: []catalog.ImageLayer{
			{Key: "body", LayerIndex: 0, Images: []catalog.ImageDescriptor{
				{ImageSource: "body/pale.png"},
				{ImageSource: "body/tan.png", Tags: []string{"default"}},
			}},
			{Key: "shirt", LayerIndex: 2, Images: []catalog.ImageDescriptor{
				{ImageSource: "shirt/red.png"},
				{ImageSource: "shirt/blue.png"},
			}},
			{Key: "hat", LayerIndex: 5},
		},
	}
}
