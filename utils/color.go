package utils

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// ParseColor accepts "#rgb", "#rrggbb", "#rrggbbaa", SVG color names and
// "transparent".
func ParseColor(s string) (color.Color, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "transparent" {
		return color.Transparent, nil
	}
	if c, ok := colornames.Map[v]; ok {
		return c, nil
	}
	if !strings.HasPrefix(v, "#") {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	switch len(v) {
	case 4, 7:
		c, err := colorful.Hex(v)
		if err != nil {
			return nil, fmt.Errorf("invalid color %q: %w", s, err)
		}
		r, g, b := c.RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
	case 9:
		n, err := strconv.ParseUint(v[1:], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid color %q: %w", s, err)
		}
		return color.NRGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
	}
	return nil, fmt.Errorf("invalid color %q", s)
}

// FormatColor renders c as "#rrggbb", or "#rrggbbaa" when not opaque.
func FormatColor(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	if n.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", n.R, n.G, n.B, n.A)
}
