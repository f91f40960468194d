package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart"
	tslc "github.com/NimbleMarkets/ntcharts/linechart/timeserieslinechart"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"

	"github.com/jask/simdash/internal/projector"
)

// Steps are plotted as seconds past the epoch so the time-series chart can
// carry them; the label formatter turns them back into step numbers.
func stepTime(step int) time.Time { return time.Unix(int64(step), 0) }

func stepLabelFormatter() linechart.LabelFormatter {
	return func(_ int, v float64) string {
		return strconv.Itoa(int(math.Round(v)))
	}
}

func valueLabelFormatter() linechart.LabelFormatter {
	return func(_ int, v float64) string {
		return formatValue(v)
	}
}

func formatValue(v float64) string {
	switch {
	case v == math.Trunc(v) && math.Abs(v) < 1e9:
		return strconv.FormatFloat(v, 'f', 0, 64)
	case math.Abs(v) >= 1000:
		return strconv.FormatFloat(v, 'f', 1, 64)
	default:
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
}

func yBounds(v projector.RenderView) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range v.Series {
		for _, y := range s.Values {
			lo, hi = math.Min(lo, y), math.Max(hi, y)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if hi <= lo {
		return lo - 1, hi + 1
	}
	return lo, hi
}

func datasetName(i int, label string) string {
	return fmt.Sprintf("%d:%s", i, label)
}

// renderLineChart draws every series of v in its stroke color over a shared
// step axis.
func renderLineChart(v projector.RenderView, width, height int) string {
	width = max(width, 20)
	height = max(height, 5)

	lc := tslc.New(width, height)
	lc.AxisStyle = axisStyle
	lc.LabelStyle = labelStyle
	lc.XLabelFormatter = stepLabelFormatter()
	lc.YLabelFormatter = valueLabelFormatter()

	last := max(len(v.Steps)-1, 1)
	lc.SetTimeRange(stepTime(0), stepTime(last))
	lc.SetViewTimeRange(stepTime(0), stepTime(last))
	lo, hi := yBounds(v)
	lc.SetYRange(lo, hi)
	lc.SetViewYRange(lo, hi)
	lc.SetLineStyle(runes.ThinLineStyle)

	for i, s := range v.Series {
		name := datasetName(i, s.Label)
		lc.SetDataSetStyle(name, lipgloss.NewStyle().Foreground(strokeColor(s.Stroke)))
		for step, y := range s.Values {
			lc.PushDataSet(name, tslc.TimePoint{Time: stepTime(step), Value: y})
		}
	}
	lc.DrawBrailleAll()
	return lc.View()
}

// renderLegend shows each series as a stroke swatch on its fill color.
func renderLegend(v projector.RenderView) string {
	parts := make([]string, 0, len(v.Series)+1)
	for _, s := range v.Series {
		sw := lipgloss.NewStyle().Foreground(strokeColor(s.Stroke)).Background(fillColor(s.Fill)).Render(" " + string(runes.FullBlock) + " ")
		parts = append(parts, sw+" "+s.Label)
	}
	if v.Dropped > 0 {
		parts = append(parts, warningStyle.Render(fmt.Sprintf("(+%d series without colors)", v.Dropped)))
	}
	return strings.Join(parts, "  ")
}

// renderSummaryBars is the "Final Values" view as horizontal bars.
func renderSummaryBars(sum projector.SummaryView, v projector.RenderView, width int) string {
	if len(sum.Entries) == 0 {
		return mutedStyle.Render("no series")
	}
	data := make([]barchart.BarData, 0, len(sum.Entries))
	for i, e := range sum.Entries {
		style := lipgloss.NewStyle().Foreground(colorSubtext0)
		if i < len(v.Series) {
			style = lipgloss.NewStyle().Foreground(strokeColor(v.Series[i].Stroke))
		}
		label := e.Label + " (-)"
		val := 0.0
		if e.OK {
			label = fmt.Sprintf("%s (%s)", e.Label, formatValue(e.Value))
			val = math.Max(e.Value, 0)
		}
		data = append(data, barchart.BarData{
			Label:  label,
			Values: []barchart.BarValue{{Name: e.Label, Value: val, Style: style}},
		})
	}
	bc := barchart.New(max(width, 20), len(data)*2, barchart.WithDataSet(data), barchart.WithHorizontalBars())
	bc.Draw()
	return bc.View()
}

// renderSummaryTable is the "Final Values" view as a table.
func renderSummaryTable(sum projector.SummaryView, v projector.RenderView) string {
	longest := 6
	for _, e := range sum.Entries {
		longest = max(longest, len(e.Label))
	}
	cols := []table.Column{
		table.NewColumn("color", "", 3),
		table.NewColumn("series", "Series", longest+1),
		table.NewColumn("value", "Final", 14),
		table.NewColumn("steps", "Steps", 7),
	}
	rows := make([]table.Row, 0, len(sum.Entries))
	for i, e := range sum.Entries {
		swatch := " "
		steps := 0
		if i < len(v.Series) {
			swatch = lipgloss.NewStyle().Foreground(strokeColor(v.Series[i].Stroke)).Render(string(runes.FullBlock))
			steps = len(v.Series[i].Values)
		}
		value := "-"
		if e.OK {
			value = formatValue(e.Value)
		}
		rows = append(rows, table.NewRow(table.RowData{
			"color":  swatch,
			"series": e.Label,
			"value":  value,
			"steps":  strconv.Itoa(steps),
		}))
	}
	return table.New(cols).WithRows(rows).BorderRounded().View()
}

// renderCard is one chart in the list view.
func renderCard(v projector.RenderView, width, height int, focused bool) string {
	style := panelStyle
	if focused {
		style = focusedPanel
	}
	inner := max(width-4, 20)
	title := titleStyle.Render(v.ID)
	meta := mutedStyle.Render(fmt.Sprintf("%d series · %d steps", len(v.Series), len(v.Steps)))
	body := lipgloss.JoinVertical(lipgloss.Left,
		title+"  "+meta,
		renderLineChart(v, inner, height),
		renderLegend(v),
	)
	return style.Width(inner + 2).Render(body)
}
