package palette

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// FillAlpha is the alpha every fill variant carries.
const FillAlpha = 0.1

// Color is an RGBA color as the dashboard exchanges it: 8-bit channels and a
// fractional alpha.
type Color struct {
	R, G, B uint8
	A       float64
}

// String renders the CSS form, e.g. "rgba(12,200,7,1)".
func (c Color) String() string {
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", c.R, c.G, c.B, strconv.FormatFloat(c.A, 'f', -1, 64))
}

// Hex renders the opaque channels as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// DeriveFill returns the translucent variant of c used for area fills.
func DeriveFill(c Color) Color {
	c.A = FillAlpha
	return c
}

// Random returns an opaque color with uniformly random channels.
func Random(r *rand.Rand) Color {
	return Color{
		R: uint8(r.IntN(256)),
		G: uint8(r.IntN(256)),
		B: uint8(r.IntN(256)),
		A: 1,
	}
}

// ParseColor accepts "rgba(r,g,b,a)" and "rgb(r,g,b)".
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	var body string
	var wantParts int
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		body, wantParts = s[len("rgba("):len(s)-1], 4
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		body, wantParts = s[len("rgb("):len(s)-1], 3
	default:
		return Color{}, fmt.Errorf("parse color %q: unsupported form", s)
	}
	parts := strings.Split(body, ",")
	if len(parts) != wantParts {
		return Color{}, fmt.Errorf("parse color %q: want %d components", s, wantParts)
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return Color{}, fmt.Errorf("parse color %q: bad channel %q", s, parts[i])
		}
		ch[i] = uint8(v)
	}
	c := Color{R: ch[0], G: ch[1], B: ch[2], A: 1}
	if wantParts == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return Color{}, fmt.Errorf("parse color %q: bad alpha %q", s, parts[3])
		}
		c.A = a
	}
	return c, nil
}

// Palette is the ordered color list for one chart, index-aligned to its series.
type Palette []Color

// Generate builds n random opaque colors.
func Generate(r *rand.Rand, n int) Palette {
	if n < 0 {
		n = 0
	}
	p := make(Palette, n)
	for i := range p {
		p[i] = Random(r)
	}
	return p
}

// Clone returns an independent copy.
func (p Palette) Clone() Palette {
	if p == nil {
		return nil
	}
	out := make(Palette, len(p))
	copy(out, p)
	return out
}

// Equal reports whether p and o hold the same colors in the same order.
func (p Palette) Equal(o Palette) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}
