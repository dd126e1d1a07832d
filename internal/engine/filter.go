// Package engine filters and aggregates the normalized shipment table.
// Every function here is pure: inputs are never modified and the same
// inputs always give the same output.
package engine

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"titus/internal/core"
)

type (
	// Predicate constrains a single field. The set of implementations is
	// closed: OneOf, Between and During.
	Predicate interface {
		matches(r core.Record, f core.Field) bool
		active() bool
	}

	// OneOf keeps rows whose value is one of Values. An empty set imposes
	// no constraint.
	OneOf struct {
		Values []string
	}

	// Between keeps rows whose numeric value lies in [Lo, Hi]. Nulls never
	// match.
	Between struct {
		Lo, Hi float64
	}

	// During keeps rows whose date lies in [From, To], compared by day.
	// Null dates never match.
	During struct {
		From, To time.Time
	}

	// FilterSpec maps fields to predicates. Predicates combine with AND.
	FilterSpec map[core.Field]Predicate
)

// In builds a set constraint.
func In(values ...string) OneOf { return OneOf{Values: values} }

func (p OneOf) active() bool { return len(p.Values) > 0 }

func (p OneOf) matches(r core.Record, f core.Field) bool {
	v := r.Text(f)
	for _, want := range p.Values {
		if v == want {
			return true
		}
	}
	return false
}

func (p Between) active() bool { return true }

func (p Between) matches(r core.Record, f core.Field) bool {
	v, ok := r.Number(f)
	return ok && v >= p.Lo && v <= p.Hi
}

func (p During) active() bool { return true }

func (p During) matches(r core.Record, f core.Field) bool {
	if f != core.FieldDate || !r.Date.Valid() {
		return false
	}
	from, to := core.NewDate(p.From), core.NewDate(p.To)
	return !r.Date.Before(from.Time) && !r.Date.After(to.Time)
}

// Fields returns the constrained fields in enumeration order.
func (s FilterSpec) Fields() []core.Field {
	out := make([]core.Field, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Active reports whether at least one predicate constrains anything.
func (s FilterSpec) Active() bool {
	for _, p := range s {
		if p != nil && p.active() {
			return true
		}
	}
	return false
}

// Describe renders the filters as "field: constraint" fragments for display.
func (s FilterSpec) Describe() []string {
	var out []string
	for _, f := range s.Fields() {
		switch p := s[f].(type) {
		case OneOf:
			if p.active() {
				out = append(out, f.Header()+": "+strings.Join(p.Values, ", "))
			}
		case Between:
			out = append(out, f.Header()+": "+formatFloat(p.Lo)+" to "+formatFloat(p.Hi))
		case During:
			out = append(out, f.Header()+": "+core.NewDate(p.From).String()+" to "+core.NewDate(p.To).String())
		}
	}
	return out
}

// ApplyFilters returns the rows of t satisfying every predicate in spec,
// in their original order. An empty result is valid.
func ApplyFilters(t *core.Table, spec FilterSpec) *core.Table {
	fields := make([]core.Field, 0, len(spec))
	for _, f := range spec.Fields() {
		if p := spec[f]; p != nil && p.active() {
			fields = append(fields, f)
		}
	}
	return t.Subset(func(r core.Record) bool {
		for _, f := range fields {
			if !spec[f].matches(r, f) {
				return false
			}
		}
		return true
	})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
