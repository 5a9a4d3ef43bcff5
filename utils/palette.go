package utils

import (
	"cmp"
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/setanarut/portrait"
)

type PaletteMethod int

const (
	PaletteMethodKMeans PaletteMethod = iota
	PaletteMethodDominantColor
)

func (m PaletteMethod) String() string {
	switch m {
	case PaletteMethodDominantColor:
		return "dominantcolor"
	default:
		return "kmeans"
	}
}

const (
	// Cluster count for kmeans candidates.
	paletteClusters = 8
	// Candidates sampled from dominantcolor.
	dominantSamples = 24
	// Palette entries closer than this in Lab are treated as one color.
	minPaletteDistance = 0.12
	// Share of opaque pixels a color needs to be considered for the border.
	minBorderShare = 0.05
)

type weightedColor struct {
	Col    colorful.Color
	Weight float64 // share of opaque pixels, sums to 1
}

// ExtractPalette returns up to k distinct colors of the opaque part of img,
// most frequent first.
func ExtractPalette(img image.Image, k int, method PaletteMethod) []colorful.Color {
	return distinctColors(paletteCandidates(img, method), k)
}

// SuggestBorderColor picks an outline color for a composite: the darkest
// color covering a noticeable share of it, pulled halfway to black when that
// color is still light.
func SuggestBorderColor(img image.Image, method PaletteMethod) color.Color {
	var (
		best  colorful.Color
		found bool
	)
	for _, c := range paletteCandidates(img, method) {
		if c.Weight < minBorderShare {
			continue
		}
		if !found || luminance(c.Col) < luminance(best) {
			best, found = c.Col, true
		}
	}
	if !found {
		return color.Black
	}
	if luminance(best) > 0.25 {
		best = best.BlendLab(colorful.Color{}, 0.5).Clamped()
	}
	r, g, b := best.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// paletteCandidates returns the color clusters of img with normalised
// weights, heaviest first. The kmeans method falls back to dominantcolor when
// clustering yields nothing.
func paletteCandidates(img image.Image, method PaletteMethod) []weightedColor {
	var cands []weightedColor
	if method == PaletteMethodKMeans {
		cands = kmeansCandidates(img)
		if len(cands) == 0 {
			portrait.Logger().Warn("kmeans returned no clusters, falling back to dominantcolor")
		}
	}
	if len(cands) == 0 {
		cands = dominantCandidates(img)
	}

	var total float64
	for _, c := range cands {
		total += c.Weight
	}
	if total == 0 {
		return nil
	}
	for i := range cands {
		cands[i].Weight /= total
	}
	slices.SortStableFunc(cands, func(a, b weightedColor) int { return cmp.Compare(b.Weight, a.Weight) })
	return cands
}

func dominantCandidates(img image.Image) []weightedColor {
	var out []weightedColor
	for _, c := range dominantcolor.FindWeight(img, dominantSamples) {
		col, _ := colorful.MakeColor(c.RGBA)
		out = append(out, weightedColor{Col: col.Clamped(), Weight: max(c.Weight, 0)})
	}
	return out
}

func kmeansCandidates(img image.Image) []weightedColor {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}

	// Subsample large images; transparent pixels never count.
	const maxSamples = 12000
	step := 1
	if b.Dx()*b.Dy() > maxSamples {
		step = int(math.Sqrt(float64(b.Dx()*b.Dy())/maxSamples)) + 1
	}
	var dataset clusters.Observations
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			n := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if n.A < 128 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(n.R) / 255, float64(n.G) / 255, float64(n.B) / 255,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	cc, err := kmeans.New().Partition(dataset, min(paletteClusters, len(dataset)))
	if err != nil {
		return nil
	}
	var out []weightedColor
	for _, c := range cc {
		if len(c.Center) < 3 || len(c.Observations) == 0 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped()
		out = append(out, weightedColor{Col: col, Weight: float64(len(c.Observations))})
	}
	return out
}

// distinctColors walks cands in order and keeps each color not within
// minPaletteDistance of one already kept, stopping at k.
func distinctColors(cands []weightedColor, k int) []colorful.Color {
	var out []colorful.Color
	for _, c := range cands {
		if len(out) >= k {
			break
		}
		if !slices.ContainsFunc(out, func(o colorful.Color) bool {
			return o.DistanceLab(c.Col) < minPaletteDistance
		}) {
			out = append(out, c.Col)
		}
	}
	return out
}
