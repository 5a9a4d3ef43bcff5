package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"slices"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

// ExportFileName is the default name of a downloaded character image.
const ExportFileName = "characterImage.png"

func ReadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func SaveImage(img image.Image, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Thumbnail scales img to fit a size×size box, keeping the aspect ratio.
func Thumbnail(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	if size <= 0 || b.Empty() {
		return image.NewRGBA(image.Rectangle{})
	}
	w, h := size, size
	if b.Dx() > b.Dy() {
		h = max(1, size*b.Dy()/b.Dx())
	} else if b.Dy() > b.Dx() {
		w = max(1, size*b.Dx()/b.Dy())
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Rect, img, b, draw.Over, nil)
	return dst
}

// SavePalette writes the palette as a strip of square swatches.
func SavePalette(palette []colorful.Color, tileSize int, filename string) error {
	if len(palette) == 0 {
		return fmt.Errorf("empty palette")
	}
	if tileSize <= 0 {
		tileSize = 64
	}
	img := image.NewRGBA(image.Rect(0, 0, tileSize*len(palette), tileSize))
	for i, c := range palette {
		r, g, b := c.Clamped().RGB255()
		swatch := image.Rect(i*tileSize, 0, (i+1)*tileSize, tileSize)
		draw.Draw(img, swatch, image.NewUniform(color.RGBA{R: r, G: g, B: b, A: 255}), image.Point{}, draw.Src)
	}
	return SaveImage(img, filename)
}

// SortPaletteByBrightness orders colors from darkest to brightest by
// relative luminance.
func SortPaletteByBrightness(palette []colorful.Color) {
	slices.SortFunc(palette, func(a, b colorful.Color) int {
		la, lb := luminance(a), luminance(b)
		if la < lb {
			return -1
		}
		if la > lb {
			return 1
		}
		return 0
	})
}

func luminance(c colorful.Color) float64 {
	r, g, b := c.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}
