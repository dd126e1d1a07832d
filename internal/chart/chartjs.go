// Package chart turns evaluated report sections into drawable charts: a
// Chart.js configuration for the browser and a PNG for downloads.
package chart

import (
	"encoding/json"
	"errors"

	"titus/internal/engine"
	"titus/internal/report"
)

// ErrNoData is returned when a section has nothing to draw.
var ErrNoData = errors.New("chart: no data")

var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

func color(i int) string { return palette[i%len(palette)] }

type (
	Config struct {
		Type    string  `json:"type"`
		Data    Data    `json:"data"`
		Options Options `json:"options"`
	}

	Data struct {
		Labels   []string  `json:"labels,omitempty"`
		Datasets []Dataset `json:"datasets"`
	}

	// Dataset holds either Data (category charts) or Points (scatter).
	Dataset struct {
		Label           string    `json:"label"`
		Data            []float64 `json:"data,omitempty"`
		Points          []XY      `json:"-"`
		BackgroundColor string    `json:"backgroundColor"`
		BorderColor     string    `json:"borderColor"`
		Fill            bool      `json:"fill"`
	}

	XY struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		R float64 `json:"r,omitempty"`
	}

	Options struct {
		Responsive bool              `json:"responsive"`
		Plugins    Plugins           `json:"plugins"`
		Scales     map[string]*Scale `json:"scales,omitempty"`
	}

	Plugins struct {
		Title  Title  `json:"title"`
		Legend Legend `json:"legend"`
	}

	Title struct {
		Display bool   `json:"display"`
		Text    string `json:"text"`
	}

	Legend struct {
		Display bool `json:"display"`
	}

	Scale struct {
		Stacked bool        `json:"stacked,omitempty"`
		Title   *ScaleTitle `json:"title,omitempty"`
		Max     *float64    `json:"max,omitempty"`
	}

	ScaleTitle struct {
		Display bool   `json:"display"`
		Text    string `json:"text"`
	}
)

// MarshalJSON writes scatter points in place of the numeric data array.
func (d Dataset) MarshalJSON() ([]byte, error) {
	type plain Dataset
	if d.Points == nil {
		return json.Marshal(plain(d))
	}
	return json.Marshal(struct {
		plain
		Data []XY `json:"data"`
	}{plain(d), d.Points})
}

// ChartJS builds the browser configuration for a chart section.
func ChartJS(out report.Output) (*Config, error) {
	if out.Err != nil {
		return nil, out.Err
	}
	if out.Empty() {
		return nil, ErrNoData
	}

	s := out.Section
	cfg := &Config{
		Options: Options{
			Responsive: true,
			Plugins: Plugins{
				Title:  Title{Display: true, Text: s.Title},
				Legend: Legend{Display: true},
			},
		},
	}

	switch s.Kind {
	case report.KindBar, report.KindPeriods:
		cfg.Type = "bar"
		cfg.Data = categoryData(out)
		cfg.Options.Scales = axes(s.Group.Header(), valueTitle(out), false, out.Normalization)
	case report.KindStacked:
		cfg.Type = "bar"
		cfg.Data = categoryData(out)
		cfg.Options.Scales = axes(s.Group.Header(), valueTitle(out), true, out.Normalization)
	case report.KindLine:
		cfg.Type = "line"
		cfg.Data = categoryData(out)
		cfg.Options.Scales = axes(s.Group.Header(), valueTitle(out), false, out.Normalization)
	case report.KindScatter:
		cfg.Type = "bubble"
		cfg.Data = scatterData(out)
		cfg.Options.Scales = axes(s.X.Header(), s.Y.Header(), false, engine.Absolute)
	case report.KindMonthly:
		cfg.Type = "bar"
		cfg.Data = monthlyData(out)
		cfg.Options.Scales = axes("Month", "Share of year (%)", false, engine.PercentOfPrimary)
	default:
		return nil, ErrNoData
	}
	return cfg, nil
}

func categoryData(out report.Output) Data {
	d := Data{Labels: out.Labels}
	for i, series := range out.Series {
		d.Datasets = append(d.Datasets, Dataset{
			Label:           series.Name,
			Data:            series.Values,
			BackgroundColor: color(i),
			BorderColor:     color(i),
		})
	}
	return d
}

// scatterData splits points into one dataset per category and scales the
// bubble radius by the size field.
func scatterData(out report.Output) Data {
	var maxSize float64
	for _, p := range out.Points {
		if p.Size > maxSize {
			maxSize = p.Size
		}
	}

	var d Data
	index := make(map[string]int)
	for _, p := range out.Points {
		i, ok := index[p.Category]
		if !ok {
			i = len(d.Datasets)
			index[p.Category] = i
			label := p.Category
			if label == "" {
				label = out.Section.Y.Header()
			}
			d.Datasets = append(d.Datasets, Dataset{
				Label:           label,
				Points:          []XY{},
				BackgroundColor: color(i),
				BorderColor:     color(i),
			})
		}
		r := 4.0
		if maxSize > 0 && p.Size > 0 {
			r = 4 + 16*p.Size/maxSize
		}
		d.Datasets[i].Points = append(d.Datasets[i].Points, XY{X: p.X, Y: p.Y, R: r})
	}
	return d
}

func monthlyData(out report.Output) Data {
	var d Data
	sales := Dataset{Label: "Sales", BackgroundColor: color(0), BorderColor: color(0)}
	profit := Dataset{Label: "Profit", BackgroundColor: color(1), BorderColor: color(1)}
	shipments := Dataset{Label: "Shipments", BackgroundColor: color(2), BorderColor: color(2)}
	for _, m := range out.Months {
		d.Labels = append(d.Labels, m.Month.String())
		sales.Data = append(sales.Data, m.SalesPct)
		profit.Data = append(profit.Data, m.ProfitPct)
		shipments.Data = append(shipments.Data, m.ShipmentsPct)
	}
	d.Datasets = []Dataset{sales, profit, shipments}
	return d
}

func axes(x, y string, stacked bool, n engine.Normalization) map[string]*Scale {
	ys := &Scale{Stacked: stacked, Title: &ScaleTitle{Display: true, Text: y}}
	if n == engine.PercentOfPrimary && stacked {
		hundred := 100.0
		ys.Max = &hundred
	}
	return map[string]*Scale{
		"x": {Stacked: stacked, Title: &ScaleTitle{Display: true, Text: x}},
		"y": ys,
	}
}

func valueTitle(out report.Output) string {
	if out.Normalization == engine.PercentOfPrimary {
		return "Percentage (%)"
	}
	if len(out.Series) == 1 {
		return out.Series[0].Name
	}
	if len(out.Section.Metrics) == 1 {
		return out.Section.Metrics[0].Header()
	}
	return "Value"
}
