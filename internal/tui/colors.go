package tui

import (
	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/jask/simdash/internal/palette"
)

func toColorful(c palette.Color) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// strokeColor is the opaque series color as a terminal color.
func strokeColor(c palette.Color) lipgloss.Color {
	return lipgloss.Color(toColorful(c).Hex())
}

// fillColor composites c's alpha over the terminal background, since cells
// cannot be translucent.
func fillColor(c palette.Color) lipgloss.Color {
	bg, err := colorful.Hex(string(colorBase))
	if err != nil {
		return lipgloss.Color(string(colorBase))
	}
	return lipgloss.Color(bg.BlendRgb(toColorful(c), c.A).Clamped().Hex())
}
