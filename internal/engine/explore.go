package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"titus/internal/core"
)

// Preset names a quick date range relative to the latest date in the data.
type Preset string

const (
	PresetCustom Preset = "custom"
	PresetLast7  Preset = "last7"
	PresetLast30 Preset = "last30"
	PresetYTD    Preset = "ytd"
)

func ParsePreset(s string) (Preset, error) {
	switch p := Preset(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PresetCustom, nil
	case PresetCustom, PresetLast7, PresetLast30, PresetYTD:
		return p, nil
	}
	return PresetCustom, fmt.Errorf("unknown date preset %q", s)
}

type (
	// PointSpec selects the columns of a scatter/bubble chart. Size, Color
	// and Category are optional.
	PointSpec struct {
		X, Y     core.Field
		Size     core.Field
		Color    core.Field
		Category core.Field
	}

	// Point is one scatter mark. Null Size or Color read as zero.
	Point struct {
		X, Y     float64
		Size     float64
		Color    float64
		Category string
	}
)

// Resolve turns a preset into a period. Custom returns custom unchanged;
// the others end at the latest date in t. ok is false when t has no dates.
func Resolve(p Preset, t *core.Table, custom Period) (Period, bool) {
	if p == PresetCustom {
		return custom, custom.Valid()
	}
	_, latest, ok := DateExtent(t)
	if !ok {
		return Period{}, false
	}
	switch p {
	case PresetLast7:
		return Period{From: core.NewDate(latest.AddDate(0, 0, -7)), To: latest}, true
	case PresetLast30:
		return Period{From: core.NewDate(latest.AddDate(0, 0, -30)), To: latest}, true
	case PresetYTD:
		return Period{From: core.NewDate(time.Date(latest.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)), To: latest}, true
	}
	return Period{}, false
}

// DateExtent returns the earliest and latest valid dates.
func DateExtent(t *core.Table) (core.Date, core.Date, bool) {
	var lo, hi core.Date
	for _, r := range t.Records {
		if !r.Date.Valid() {
			continue
		}
		if !lo.Valid() || r.Date.Before(lo.Time) {
			lo = r.Date
		}
		if !hi.Valid() || r.Date.After(hi.Time) {
			hi = r.Date
		}
	}
	return lo, hi, lo.Valid()
}

// Extent returns the min and max of a numeric field over non-null values.
func Extent(t *core.Table, f core.Field) (float64, float64, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range t.Records {
		if v, ok := r.Number(f); ok {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 0, false
	}
	return lo, hi, true
}

// Options lists the distinct values of f in first-seen order, as offered by
// a multi-select.
func Options(t *core.Table, f core.Field) []string {
	if !t.Has(f) {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.Records {
		v := r.Text(f)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Points returns one point per row with both X and Y present.
func Points(t *core.Table, spec PointSpec) ([]Point, error) {
	if spec.X == core.FieldNone || spec.Y == core.FieldNone {
		return nil, &core.UnknownFieldError{Name: "", Role: "axis"}
	}
	for _, f := range []core.Field{spec.X, spec.Y, spec.Size, spec.Color} {
		if f == core.FieldNone {
			continue
		}
		if !t.Has(f) || f.Kind() != core.KindNumber {
			return nil, &core.UnknownFieldError{Name: f.String(), Role: "numeric"}
		}
	}
	if spec.Category != core.FieldNone && !t.Has(spec.Category) {
		return nil, &core.UnknownFieldError{Name: spec.Category.String(), Role: "category"}
	}

	var out []Point
	for _, r := range t.Records {
		x, okX := r.Number(spec.X)
		y, okY := r.Number(spec.Y)
		if !okX || !okY {
			continue
		}
		p := Point{X: x, Y: y}
		p.Size, _ = r.Number(spec.Size)
		p.Color, _ = r.Number(spec.Color)
		if spec.Category != core.FieldNone {
			p.Category = r.Text(spec.Category)
		}
		out = append(out, p)
	}
	return out, nil
}
