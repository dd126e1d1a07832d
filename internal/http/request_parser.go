package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"titus/internal/core"
	"titus/internal/engine"
	"titus/internal/normalize"
	"titus/internal/report"
)

// Filter form keys. Set filters use "in.<field>" (repeated), numeric
// ranges "lo.<field>" and "hi.<field>", and the date range the three
// date_* keys.
const (
	prefixIn       = "in."
	prefixLo       = "lo."
	prefixHi       = "hi."
	formDatePreset = "date_preset"
	formDateFrom   = "date_from"
	formDateTo     = "date_to"
)

// ErrInvalidFilter marks a filter form value that cannot be parsed.
var ErrInvalidFilter = errors.New("invalid filter")

var sectionParamKeys = []string{
	"metric", "group", "secondary", "normalize", "x", "y", "category",
	"focus", "year", "p1_from", "p1_to", "p2_from", "p2_to",
}

// ParseFilterForm turns the sidebar form into a FilterSpec over t. Fields
// must exist in t; set filters only accept text fields and ranges only
// numeric ones. A numeric range applies only when both bounds are given.
func ParseFilterForm(form url.Values, t *core.Table) (engine.FilterSpec, error) {
	spec := make(engine.FilterSpec)

	field := func(key, role string, kind core.Kind) (core.Field, error) {
		f, err := core.ParseField(key)
		if err != nil || f == core.FieldDate || f.Kind() != kind || !t.Has(f) {
			return core.FieldNone, &core.UnknownFieldError{Name: key, Role: role}
		}
		return f, nil
	}

	bounds := make(map[core.Field][2]string)
	for key, values := range form {
		switch {
		case strings.HasPrefix(key, prefixIn):
			f, err := field(strings.TrimPrefix(key, prefixIn), "filter", core.KindText)
			if err != nil {
				return nil, err
			}
			if len(values) > 0 {
				spec[f] = engine.In(values...)
			}
		case strings.HasPrefix(key, prefixLo), strings.HasPrefix(key, prefixHi):
			name := strings.TrimPrefix(strings.TrimPrefix(key, prefixLo), prefixHi)
			f, err := field(name, "range", core.KindNumber)
			if err != nil {
				return nil, err
			}
			b := bounds[f]
			if strings.HasPrefix(key, prefixLo) {
				b[0] = strings.TrimSpace(form.Get(key))
			} else {
				b[1] = strings.TrimSpace(form.Get(key))
			}
			bounds[f] = b
		}
	}

	for f, b := range bounds {
		if b[0] == "" || b[1] == "" {
			continue
		}
		lo, err := strconv.ParseFloat(b[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s lower bound %q", ErrInvalidFilter, f.Header(), b[0])
		}
		hi, err := strconv.ParseFloat(b[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s upper bound %q", ErrInvalidFilter, f.Header(), b[1])
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		spec[f] = engine.Between{Lo: lo, Hi: hi}
	}

	period, ok, err := parseDateRange(form, t)
	if err != nil {
		return nil, err
	}
	if ok {
		spec[core.FieldDate] = engine.During{From: period.From.Time, To: period.To.Time}
	}
	return spec, nil
}

// parseDateRange resolves the date preset. Custom ranges need both ends.
func parseDateRange(form url.Values, t *core.Table) (engine.Period, bool, error) {
	preset, err := engine.ParsePreset(form.Get(formDatePreset))
	if err != nil {
		return engine.Period{}, false, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	var custom engine.Period
	if preset == engine.PresetCustom {
		rawFrom := strings.TrimSpace(form.Get(formDateFrom))
		rawTo := strings.TrimSpace(form.Get(formDateTo))
		if rawFrom == "" || rawTo == "" {
			return engine.Period{}, false, nil
		}
		from, ok := normalize.ParseDate(rawFrom)
		if !ok {
			return engine.Period{}, false, fmt.Errorf("%w: start date %q", ErrInvalidFilter, rawFrom)
		}
		to, ok := normalize.ParseDate(rawTo)
		if !ok {
			return engine.Period{}, false, fmt.Errorf("%w: end date %q", ErrInvalidFilter, rawTo)
		}
		if to.Before(from.Time) {
			from, to = to, from
		}
		custom = engine.Period{From: from, To: to}
	}

	if !t.Has(core.FieldDate) {
		return engine.Period{}, false, nil
	}
	p, ok := engine.Resolve(preset, t, custom)
	return p, ok, nil
}

// SectionParams picks the section selections out of a query string.
func SectionParams(query url.Values) report.Params {
	params := make(report.Params)
	for _, key := range sectionParamKeys {
		if v, ok := query[key]; ok && len(v) > 0 {
			params[key] = strings.TrimSpace(v[0])
		}
	}
	return params
}

// ParseFormOrFail parses the request form, returning a 400 response on
// failure.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid form data")
	}
	return nil
}
