package main

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"titus/internal/engine"
	apphttp "titus/internal/http"
	"titus/internal/services"
	"titus/internal/sheets/excel"
	"titus/internal/sheets/memory"
)

// filterFlags mirror the dashboard sidebar.
type filterFlags struct {
	in     []string
	ranges []string
	preset string
	from   string
	to     string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.in, "filter", nil, "keep rows where field=value (repeatable; values of one field are OR-ed)")
	cmd.Flags().StringArrayVar(&f.ranges, "range", nil, "keep rows where lo <= field <= hi, as field=lo:hi (repeatable)")
	cmd.Flags().StringVar(&f.preset, "preset", "", "date preset: last7, last30, ytd")
	cmd.Flags().StringVar(&f.from, "from", "", "first day of a custom date range")
	cmd.Flags().StringVar(&f.to, "to", "", "last day of a custom date range")
}

// form encodes the flags the way the sidebar form posts them.
func (f *filterFlags) form() (url.Values, error) {
	form := url.Values{}
	for _, raw := range f.in {
		field, value, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("--filter %q: want field=value", raw)
		}
		form.Add("in."+strings.TrimSpace(field), value)
	}
	for _, raw := range f.ranges {
		field, bounds, ok := strings.Cut(raw, "=")
		lo, hi, ok2 := strings.Cut(bounds, ":")
		if !ok || !ok2 || strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("--range %q: want field=lo:hi", raw)
		}
		field = strings.TrimSpace(field)
		form.Set("lo."+field, lo)
		form.Set("hi."+field, hi)
	}
	if f.preset != "" {
		form.Set("date_preset", f.preset)
	}
	if f.from != "" || f.to != "" {
		form.Set("date_from", f.from)
		form.Set("date_to", f.to)
	}
	return form, nil
}

// view builds the filtered view of d the flags describe.
func (f *filterFlags) view(d *services.Dataset) (engine.View, error) {
	form, err := f.form()
	if err != nil {
		return engine.View{}, err
	}
	if len(form) == 0 {
		return engine.Unfiltered(), nil
	}
	spec, err := apphttp.ParseFilterForm(form, d.Table)
	if err != nil {
		return engine.View{}, err
	}
	return engine.Filtered(spec), nil
}

// loadDataset reads an xlsx workbook, or a CSV export of its Data sheet,
// and normalizes it.
func loadDataset(cmd *cobra.Command, path string) (*services.Dataset, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		var store *memory.Store
		store, err = memory.NewFromCSV(path)
		if err == nil {
			rows, err = store.Rows(cmd.Context())
		}
	} else {
		rows, err = excel.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	svc := services.NewDatasetService(nil, nil, logger.Logger)
	d, err := svc.Build(filepath.Base(path), rows)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", path, err)
	}
	logger.Debug("Workbook loaded", "path", path, "rows", d.Table.Len(), "fingerprint", d.Fingerprint)
	return d, nil
}
