package portrait

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/spatial/r2"
)

// compass holds the unit offsets of the eight neighbours, row by row.
var compass = [8]r2.Vec{
	{X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
	{X: -1, Y: 0}, {X: 1, Y: 0},
	{X: -1, Y: 1}, {X: 0, Y: 1}, {X: 1, Y: 1},
}

// StampOffsets returns the eight compass offsets scaled by thickness.
func StampOffsets(thickness int) []image.Point {
	pts := make([]image.Point, len(compass))
	for i, d := range compass {
		v := r2.Scale(float64(thickness), d)
		pts[i] = image.Pt(int(v.X), int(v.Y))
	}
	return pts
}

// Outline returns src drawn over a silhouette of itself filled with border.
// The silhouette is src stamped at the eight compass offsets scaled by
// thickness, so the visible band is thickness pixels wide. The output has the
// size of src and its origin at (0,0). A nil border leaves the band
// transparent.
//
// Thickness should equal the pixel size the art was authored at; other values
// leave stair steps along diagonal edges of the band.
func Outline(src image.Image, border color.Color, thickness int) *image.RGBA {
	if border == nil {
		border = color.Transparent
	}
	b := src.Bounds()
	size := b.Size()
	dst := image.NewRGBA(image.Rectangle{Max: size})

	for _, off := range StampOffsets(thickness) {
		draw.Draw(dst, image.Rectangle{Min: off, Max: off.Add(size)}, src, b.Min, draw.Over)
	}

	// Source-in: the fill keeps the stamps' coverage and takes the border
	// color. Src with the accumulated alpha as mask gives border*alpha.
	coverage := image.NewAlpha(dst.Rect)
	draw.Draw(coverage, coverage.Rect, dst, image.Point{}, draw.Src)
	draw.DrawMask(dst, dst.Rect, image.NewUniform(border), image.Point{}, coverage, image.Point{}, draw.Src)

	draw.Draw(dst, image.Rectangle{Max: size}, src, b.Min, draw.Over)
	return dst
}
