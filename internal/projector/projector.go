// Package projector turns a chart and its palette into render-ready views.
// It holds no state.
package projector

import (
	"github.com/jask/simdash/internal/chart"
	"github.com/jask/simdash/internal/palette"
)

// SeriesView is one series paired with its colors.
type SeriesView struct {
	Label  string
	Values []float64
	Stroke palette.Color
	Fill   palette.Color
}

// RenderView is what the drawing layer consumes for one chart.
type RenderView struct {
	ID     string
	Steps  []int
	Series []SeriesView
	// Dropped counts series left out because series and palette lengths differed.
	Dropped int
}

// Project pairs series i with palette[i]. When the lengths differ only the
// first min(len(series), len(palette)) series are kept.
func Project(e chart.Entity, p palette.Palette) RenderView {
	n := min(len(e.Series), len(p))
	v := RenderView{
		ID:      e.ID,
		Steps:   Steps(e),
		Series:  make([]SeriesView, n),
		Dropped: max(len(e.Series), len(p)) - n,
	}
	for i := 0; i < n; i++ {
		s := e.Series[i]
		v.Series[i] = SeriesView{
			Label:  s.Label,
			Values: append([]float64(nil), s.Values...),
			Stroke: p[i],
			Fill:   palette.DeriveFill(p[i]),
		}
	}
	return v
}

// Steps returns the shared x-axis labels 0..n-1, n being the longest series.
func Steps(e chart.Entity) []int {
	steps := make([]int, e.MaxLen())
	for i := range steps {
		steps[i] = i
	}
	return steps
}

// Entry is the latest value of one series.
type Entry struct {
	Label string
	Value float64
	// OK is false for a series with no values yet.
	OK bool
}

// SummaryView holds the most recent value of each series.
type SummaryView struct {
	ID      string
	Entries []Entry
}

// Summarize takes the last value of each series.
func Summarize(e chart.Entity) SummaryView {
	sv := SummaryView{ID: e.ID, Entries: make([]Entry, len(e.Series))}
	for i, s := range e.Series {
		en := Entry{Label: s.Label}
		if n := len(s.Values); n > 0 {
			en.Value, en.OK = s.Values[n-1], true
		}
		sv.Entries[i] = en
	}
	return sv
}
