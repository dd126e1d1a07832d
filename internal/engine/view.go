package engine

import "titus/internal/core"

// View selects which rows the dashboard shows. It replaces a "filters
// applied" flag: either nothing was submitted yet, or the last submitted
// spec is carried along with the state.
type View struct {
	filtered bool
	spec     FilterSpec
	preset   Preset
}

// Unfiltered shows every row.
func Unfiltered() View { return View{} }

// Filtered shows the rows matching spec.
func Filtered(spec FilterSpec) View {
	cp := make(FilterSpec, len(spec))
	for f, p := range spec {
		cp[f] = p
	}
	return View{filtered: true, spec: cp}
}

func (v View) IsFiltered() bool { return v.filtered }

// WithPreset records the date preset the spec's date range came from.
func (v View) WithPreset(p Preset) View {
	v.preset = p
	return v
}

// Preset is the submitted date preset, PresetCustom when none was.
func (v View) Preset() Preset {
	if v.preset == "" {
		return PresetCustom
	}
	return v.preset
}

// Spec returns the submitted spec; ok is false for Unfiltered.
func (v View) Spec() (FilterSpec, bool) {
	if !v.filtered {
		return nil, false
	}
	return v.spec, true
}

// Apply resolves the view against t.
func (v View) Apply(t *core.Table) *core.Table {
	if !v.filtered {
		return t
	}
	return ApplyFilters(t, v.spec)
}
