package service

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/jask/simdash/internal/palette"
	"github.com/jask/simdash/internal/projector"
)

// Exporter renders a chart view to PNG.
type Exporter struct {
	Width, Height int
}

// RenderPNG draws every series of v as a stroked line over its translucent fill.
func (e Exporter) RenderPNG(w io.Writer, v projector.RenderView) error {
	series := make([]chart.Series, 0, len(v.Series))
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, s := range v.Series {
		if len(s.Values) == 0 {
			continue
		}
		xs := make([]float64, len(s.Values))
		for i := range xs {
			xs[i] = float64(i)
		}
		ys := append([]float64(nil), s.Values...)
		// go-chart needs two points to compute an x range
		if len(xs) == 1 {
			xs = append(xs, 1)
			ys = append(ys, ys[0])
		}
		for _, y := range ys {
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    s.Label,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: drawingColor(s.Stroke),
				FillColor:   drawingColor(s.Fill),
				StrokeWidth: 2,
			},
		})
	}
	if len(series) == 0 {
		return errors.New("export: chart has no values to plot")
	}
	if maxY <= minY {
		maxY = minY + 1
	}

	width, height := e.Width, e.Height
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 512
	}
	ch := chart.Chart{
		Title:      v.ID,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 28}},
		XAxis:      chart.XAxis{Name: "step"},
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: minY, Max: maxY}},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("export %s: %w", v.ID, err)
	}
	return nil
}

func drawingColor(c palette.Color) drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(c.A * 255))}
}
