package engine

import (
	"fmt"
	"sort"
	"strings"

	"titus/internal/core"
)

// Reduction is the per-group reduce function.
type Reduction int

const (
	Sum Reduction = iota
	Count
	NUnique
	Mean
)

// Normalization controls how group values are expressed.
type Normalization int

const (
	Absolute Normalization = iota
	PercentOfPrimary
)

// Order sorts aggregated groups. FirstSeen keeps the order in which keys
// first appear in the table.
type Order int

const (
	FirstSeen Order = iota
	ValueDesc
	ValueAsc
	KeyAsc
)

type (
	// AggregationSpec describes one group-by-and-reduce. Secondary is
	// optional (core.FieldNone). Limit <= 0 keeps every group.
	AggregationSpec struct {
		Primary   core.Field
		Secondary core.Field
		Metric    core.Field
		Reduce    Reduction
		Normalize Normalization
		Order     Order
		Limit     int
	}

	// Group is one output row. Value holds the reduced metric, or its
	// percentage of the primary group when PercentOfPrimary is requested;
	// Raw always holds the reduced metric. Rows counts input rows.
	Group struct {
		Primary   string
		Secondary string
		Value     float64
		Raw       float64
		Rows      int
	}

	Result struct {
		Spec   AggregationSpec
		Groups []Group
	}
)

var reductionNames = map[Reduction]string{Sum: "sum", Count: "count", NUnique: "nunique", Mean: "mean"}

func (r Reduction) String() string { return reductionNames[r] }

// ParseReduction accepts sum, count, nunique and mean. Empty means sum.
func ParseReduction(s string) (Reduction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Sum, nil
	}
	for r, name := range reductionNames {
		if name == s {
			return r, nil
		}
	}
	return Sum, fmt.Errorf("unknown reduction %q", s)
}

func (n Normalization) String() string {
	if n == PercentOfPrimary {
		return "percentage"
	}
	return "absolute"
}

// ParseNormalization accepts absolute and percentage. Empty means absolute.
func ParseNormalization(s string) (Normalization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "absolute":
		return Absolute, nil
	case "percentage", "percent":
		return PercentOfPrimary, nil
	}
	return Absolute, fmt.Errorf("unknown normalization %q", s)
}

// ParseOrder accepts first, desc, asc and key. Empty means first.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return FirstSeen, nil
	case "desc":
		return ValueDesc, nil
	case "asc":
		return ValueAsc, nil
	case "key":
		return KeyAsc, nil
	}
	return FirstSeen, fmt.Errorf("unknown order %q", s)
}

// Validate checks the aggregation against the table's columns.
func (s AggregationSpec) Validate(t *core.Table) error {
	if !t.Has(s.Primary) {
		return &core.UnknownFieldError{Name: s.Primary.String(), Role: "group"}
	}
	if s.Secondary != core.FieldNone && !t.Has(s.Secondary) {
		return &core.UnknownFieldError{Name: s.Secondary.String(), Role: "group"}
	}
	if !t.Has(s.Metric) {
		return &core.UnknownFieldError{Name: s.Metric.String(), Role: "metric"}
	}
	if (s.Reduce == Sum || s.Reduce == Mean) && s.Metric.Kind() != core.KindNumber {
		return &core.UnknownFieldError{Name: s.Metric.String(), Role: "numeric metric"}
	}
	return nil
}

type groupKey struct {
	primary, secondary string
}

type accumulator struct {
	sum      float64
	valid    int
	rows     int
	distinct map[string]struct{}
}

// Aggregate groups t by the primary key (and secondary key when set) and
// reduces the metric per group. Every distinct key combination appears
// exactly once.
func Aggregate(t *core.Table, spec AggregationSpec) (*Result, error) {
	if err := spec.Validate(t); err != nil {
		return nil, err
	}
	res := &Result{Spec: spec}
	if t.Len() == 0 {
		return res, nil
	}

	acc := make(map[groupKey]*accumulator)
	var order []groupKey
	for _, r := range t.Records {
		k := groupKey{primary: r.Text(spec.Primary)}
		if spec.Secondary != core.FieldNone {
			k.secondary = r.Text(spec.Secondary)
		}
		a, ok := acc[k]
		if !ok {
			a = &accumulator{}
			if spec.Reduce == NUnique {
				a.distinct = make(map[string]struct{})
			}
			acc[k] = a
			order = append(order, k)
		}
		a.rows++
		if !r.Present(spec.Metric) {
			continue
		}
		a.valid++
		if v, ok := r.Number(spec.Metric); ok {
			a.sum += v
		}
		if a.distinct != nil {
			a.distinct[r.Text(spec.Metric)] = struct{}{}
		}
	}

	res.Groups = make([]Group, 0, len(order))
	for _, k := range order {
		a := acc[k]
		v := reduce(spec.Reduce, a)
		res.Groups = append(res.Groups, Group{
			Primary:   k.primary,
			Secondary: k.secondary,
			Value:     v,
			Raw:       v,
			Rows:      a.rows,
		})
	}

	if spec.Normalize == PercentOfPrimary {
		percentOfPrimary(res.Groups)
	}
	sortGroups(res.Groups, spec.Order)
	if spec.Limit > 0 && len(res.Groups) > spec.Limit {
		res.Groups = res.Groups[:spec.Limit]
	}
	return res, nil
}

func reduce(r Reduction, a *accumulator) float64 {
	switch r {
	case Count:
		return float64(a.valid)
	case NUnique:
		return float64(len(a.distinct))
	case Mean:
		if a.valid == 0 {
			return 0
		}
		return a.sum / float64(a.valid)
	}
	return a.sum
}

// percentOfPrimary rewrites Value as a percentage of the primary group's total.
// A zero total yields zero for every member.
func percentOfPrimary(groups []Group) {
	totals := make(map[string]float64)
	for _, g := range groups {
		totals[g.Primary] += g.Raw
	}
	for i := range groups {
		total := totals[groups[i].Primary]
		if total == 0 {
			groups[i].Value = 0
			continue
		}
		groups[i].Value = groups[i].Raw / total * 100
	}
}

func sortGroups(groups []Group, o Order) {
	switch o {
	case ValueDesc:
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value > groups[j].Value })
	case ValueAsc:
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value < groups[j].Value })
	case KeyAsc:
		sort.SliceStable(groups, func(i, j int) bool {
			if groups[i].Primary != groups[j].Primary {
				return groups[i].Primary < groups[j].Primary
			}
			return groups[i].Secondary < groups[j].Secondary
		})
	}
}

// Total sums Value over all groups.
func (r *Result) Total() float64 {
	var total float64
	for _, g := range r.Groups {
		total += g.Value
	}
	return total
}

// Empty reports whether there is nothing to draw.
func (r *Result) Empty() bool { return r == nil || len(r.Groups) == 0 }

// PrimaryKeys returns distinct primary keys in output order.
func (r *Result) PrimaryKeys() []string {
	return distinctKeys(r.Groups, func(g Group) string { return g.Primary })
}

// SecondaryKeys returns distinct secondary keys in output order.
func (r *Result) SecondaryKeys() []string {
	return distinctKeys(r.Groups, func(g Group) string { return g.Secondary })
}

// Lookup returns the group for a key pair.
func (r *Result) Lookup(primary, secondary string) (Group, bool) {
	for _, g := range r.Groups {
		if g.Primary == primary && g.Secondary == secondary {
			return g, true
		}
	}
	return Group{}, false
}

func distinctKeys(groups []Group, key func(Group) string) []string {
	seen := make(map[string]struct{}, len(groups))
	var out []string
	for _, g := range groups {
		k := key(g)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
