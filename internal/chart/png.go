package chart

import (
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"titus/internal/report"
)

const (
	width  = 1024
	height = 512
)

func pngColor(i int) drawing.Color { return drawing.ColorFromHex(palette[i%len(palette)]) }

// RenderPNG draws a chart section as a PNG image.
func RenderPNG(w io.Writer, out report.Output) error {
	if out.Err != nil {
		return out.Err
	}
	if out.Empty() {
		return ErrNoData
	}

	switch out.Section.Kind {
	case report.KindBar, report.KindPeriods:
		if len(out.Series) == 1 || len(out.Labels) < 2 {
			return barPNG(w, out)
		}
		return linePNG(w, out, true)
	case report.KindStacked:
		return stackedPNG(w, out)
	case report.KindLine:
		if len(out.Labels) < 2 {
			return barPNG(w, out)
		}
		return linePNG(w, out, false)
	case report.KindScatter:
		return scatterPNG(w, out)
	case report.KindMonthly:
		return monthlyPNG(w, out)
	}
	return ErrNoData
}

func barPNG(w io.Writer, out report.Output) error {
	series := out.Series[0]
	bars := make([]gochart.Value, len(series.Values))
	lo, hi := 0.0, 0.0
	for i, v := range series.Values {
		bars[i] = gochart.Value{Label: out.Labels[i], Value: v, Style: gochart.Style{FillColor: pngColor(0), StrokeColor: pngColor(0)}}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	lo, hi = padRange(lo, hi)

	c := gochart.BarChart{
		Title:        out.Section.Title,
		Width:        width,
		Height:       height,
		Background:   gochart.Style{Padding: gochart.Box{Top: 40}},
		UseBaseValue: true,
		BaseValue:    0,
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}
	return c.Render(gochart.PNG, w)
}

func stackedPNG(w io.Writer, out report.Output) error {
	bars := make([]gochart.StackedBar, len(out.Labels))
	for i, label := range out.Labels {
		bar := gochart.StackedBar{Name: label}
		for j, series := range out.Series {
			// Stacked bars are drawn as shares of the bar; negative parts are dropped.
			bar.Values = append(bar.Values, gochart.Value{
				Label: series.Name,
				Value: math.Max(series.Values[i], 0),
				Style: gochart.Style{FillColor: pngColor(j), StrokeColor: pngColor(j)},
			})
		}
		bars[i] = bar
	}
	c := gochart.StackedBarChart{
		Title:      out.Section.Title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40}},
		Bars:       bars,
	}
	return c.Render(gochart.PNG, w)
}

// linePNG draws each series over the label index. With dots set the lines
// are dropped, which is how grouped bars with several series are shown.
func linePNG(w io.Writer, out report.Output, dots bool) error {
	if len(out.Labels) < 2 {
		return ErrNoData
	}
	xs := make([]float64, len(out.Labels))
	ticks := make([]gochart.Tick, len(out.Labels))
	for i, label := range out.Labels {
		xs[i] = float64(i)
		ticks[i] = gochart.Tick{Value: float64(i), Label: label}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	var series []gochart.Series
	for i, s := range out.Series {
		style := gochart.Style{StrokeColor: pngColor(i), StrokeWidth: 2}
		if dots {
			style = gochart.Style{StrokeWidth: gochart.Disabled, DotWidth: 5, DotColor: pngColor(i)}
		}
		for _, v := range s.Values {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		series = append(series, gochart.ContinuousSeries{Name: s.Name, XValues: xs, YValues: s.Values, Style: style})
	}
	lo, hi = padRange(lo, hi)

	c := gochart.Chart{
		Title:      out.Section.Title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: gochart.XAxis{
			Name:  out.Section.Group.Header(),
			Ticks: ticks,
			Range: &gochart.ContinuousRange{Min: 0, Max: float64(len(xs) - 1)},
		},
		YAxis:  gochart.YAxis{Range: &gochart.ContinuousRange{Min: lo, Max: hi}},
		Series: series,
	}
	c.Elements = []gochart.Renderable{gochart.Legend(&c)}
	return c.Render(gochart.PNG, w)
}

func scatterPNG(w io.Writer, out report.Output) error {
	byCategory := make(map[string]int)
	var series []gochart.ContinuousSeries
	xlo, xhi := math.Inf(1), math.Inf(-1)
	ylo, yhi := math.Inf(1), math.Inf(-1)
	for _, p := range out.Points {
		i, ok := byCategory[p.Category]
		if !ok {
			i = len(series)
			byCategory[p.Category] = i
			name := p.Category
			if name == "" {
				name = out.Section.Y.Header()
			}
			series = append(series, gochart.ContinuousSeries{
				Name:  name,
				Style: gochart.Style{StrokeWidth: gochart.Disabled, DotWidth: 4, DotColor: pngColor(i)},
			})
		}
		series[i].XValues = append(series[i].XValues, p.X)
		series[i].YValues = append(series[i].YValues, p.Y)
		xlo, xhi = math.Min(xlo, p.X), math.Max(xhi, p.X)
		ylo, yhi = math.Min(ylo, p.Y), math.Max(yhi, p.Y)
	}
	xlo, xhi = padRange(xlo, xhi)
	ylo, yhi = padRange(ylo, yhi)

	c := gochart.Chart{
		Title:      out.Section.Title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      gochart.XAxis{Name: out.Section.X.Header(), Range: &gochart.ContinuousRange{Min: xlo, Max: xhi}},
		YAxis:      gochart.YAxis{Name: out.Section.Y.Header(), Range: &gochart.ContinuousRange{Min: ylo, Max: yhi}},
	}
	for _, s := range series {
		c.Series = append(c.Series, s)
	}
	c.Elements = []gochart.Renderable{gochart.Legend(&c)}
	return c.Render(gochart.PNG, w)
}

func monthlyPNG(w io.Writer, out report.Output) error {
	o := out
	o.Labels = nil
	sales := report.Series{Name: "Sales (%)"}
	profit := report.Series{Name: "Profit (%)"}
	for _, m := range out.Months {
		o.Labels = append(o.Labels, m.Month.String())
		sales.Values = append(sales.Values, m.SalesPct)
		profit.Values = append(profit.Values, m.ProfitPct)
	}
	o.Series = []report.Series{sales, profit}
	if len(o.Labels) < 2 {
		o.Series = o.Series[:1]
		return barPNG(w, o)
	}
	return linePNG(w, o, false)
}

// padRange widens a degenerate range so the axis has a non-zero span.
func padRange(lo, hi float64) (float64, float64) {
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 1
	}
	if lo == hi {
		if lo == 0 {
			return 0, 1
		}
		d := math.Abs(lo) * 0.1
		return lo - d, hi + d
	}
	return lo, hi
}
