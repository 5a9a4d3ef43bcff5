package portrait

import (
	"fmt"
	"image"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

type step int

const (
	stepNone step = iota
	stepUp
	stepDown
	stepLeft
	stepRight
)

// TraceContour walks the boundary of the first region found scanning rows top
// to bottom whose alpha is above threshold, using marching squares. Vertices
// are pixel corners relative to img.Bounds().Min, the region stays on the left
// of the walk, and the polygon is closed implicitly (the start point is not
// repeated). It returns nil when no pixel passes the threshold.
func TraceContour(img image.Image, threshold uint8) []r2.Vec {
	m := newAlphaMask(img, threshold)
	for i, set := range m.solid {
		if set {
			return m.trace(i%m.w, i/m.w)
		}
	}
	return nil
}

// TraceContours returns the outer boundary of every 4-connected region of
// img above threshold, in the order their first pixels appear scanning rows
// top to bottom. Holes are not traced.
func TraceContours(img image.Image, threshold uint8) [][]r2.Vec {
	m := newAlphaMask(img, threshold)
	var out [][]r2.Vec
	for i := range m.solid {
		if !m.solid[i] {
			continue
		}
		x, y := i%m.w, i/m.w
		out = append(out, m.trace(x, y))
		m.clearRegion(x, y)
	}
	return out
}

type alphaMask struct {
	w, h  int
	solid []bool
}

func newAlphaMask(img image.Image, threshold uint8) *alphaMask {
	b := img.Bounds()
	m := &alphaMask{w: b.Dx(), h: b.Dy(), solid: make([]bool, b.Dx()*b.Dy())}
	for y := range m.h {
		for x := range m.w {
			_, _, _, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			m.solid[y*m.w+x] = a>>8 > uint32(threshold)
		}
	}
	return m
}

func (m *alphaMask) at(x, y int) bool {
	if x < 0 || y < 0 || x >= m.w || y >= m.h {
		return false
	}
	return m.solid[y*m.w+x]
}

// clearRegion unsets the 4-connected region containing (x, y).
func (m *alphaMask) clearRegion(x, y int) {
	stack := []image.Point{{X: x, Y: y}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !m.at(p.X, p.Y) {
			continue
		}
		m.solid[p.Y*m.w+p.X] = false
		stack = append(stack,
			image.Pt(p.X+1, p.Y), image.Pt(p.X-1, p.Y),
			image.Pt(p.X, p.Y+1), image.Pt(p.X, p.Y-1))
	}
}

// trace walks the boundary starting at the top-left corner of pixel
// (startX, startY), which must be the first set pixel of its region in scan
// order.
func (m *alphaMask) trace(startX, startY int) []r2.Vec {
	var pts []r2.Vec
	x, y := startX, startY
	prev := stepNone
	for {
		state := 0
		if m.at(x-1, y-1) {
			state |= 1
		}
		if m.at(x, y-1) {
			state |= 2
		}
		if m.at(x-1, y) {
			state |= 4
		}
		if m.at(x, y) {
			state |= 8
		}

		var next step
		switch state {
		case 1, 5, 13:
			next = stepUp
		case 2, 3, 7:
			next = stepRight
		case 4, 12, 14:
			next = stepLeft
		case 8, 10, 11:
			next = stepDown
		case 6:
			if prev == stepUp {
				next = stepLeft
			} else {
				next = stepRight
			}
		case 9:
			if prev == stepRight {
				next = stepUp
			} else {
				next = stepDown
			}
		default:
			// 0 and 15 cannot occur on a boundary.
			return pts
		}

		pts = append(pts, r2.Vec{X: float64(x), Y: float64(y)})
		switch next {
		case stepUp:
			y--
		case stepDown:
			y++
		case stepLeft:
			x--
		case stepRight:
			x++
		}
		prev = next
		if x == startX && y == startY {
			return pts
		}
	}
}

// SimplifyContour drops vertices that lie on a straight run between their
// neighbours.
func SimplifyContour(pts []r2.Vec) []r2.Vec {
	n := len(pts)
	if n < 3 {
		return pts
	}
	out := make([]r2.Vec, 0, n)
	for i, p := range pts {
		a := pts[(i+n-1)%n]
		c := pts[(i+1)%n]
		if r2.Cross(r2.Sub(p, a), r2.Sub(c, p)) != 0 {
			out = append(out, p)
		}
	}
	return out
}

// PolygonArea returns the unsigned shoelace area of a closed polygon.
func PolygonArea(pts []r2.Vec) float64 {
	var sum float64
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		sum += r2.Cross(p, q)
	}
	return math.Abs(sum) / 2
}

// ContoursSVGPath formats several closed polygons as one SVG path, one
// subpath each.
func ContoursSVGPath(polys [][]r2.Vec) string {
	parts := make([]string, 0, len(polys))
	for _, p := range polys {
		if d := ContourSVGPath(p); d != "" {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, " ")
}

// ContourSVGPath formats a closed polygon as SVG path data.
func ContourSVGPath(pts []r2.Vec) string {
	if len(pts) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, p := range pts {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&sb, "%s%g %g ", cmd, p.X, p.Y)
	}
	sb.WriteString("Z")
	return sb.String()
}
