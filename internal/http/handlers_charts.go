package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"titus/internal/chart"
	"titus/internal/export"
	tlog "titus/internal/log"
	"titus/internal/metrics"
	"titus/internal/report"
	"titus/internal/services"
	"titus/internal/session"
)

// chartOutput evaluates the section named in the URL. ok is false when a
// response has already been written.
func (s *Server) chartOutput(w http.ResponseWriter, r *http.Request) (report.Output, session.State, *services.Dataset, report.Params, bool) {
	p, sec, err := s.lookup(r)
	if err != nil {
		http.Error(w, "section not found", http.StatusNotFound)
		return report.Output{}, session.State{}, nil, nil, false
	}
	st, d := s.current(w, r)
	if d == nil {
		w.WriteHeader(http.StatusNoContent)
		return report.Output{}, st, nil, nil, false
	}
	params := SectionParams(r.URL.Query())
	out := report.EvaluateSection(p.ID, *sec, st.View.Apply(d.Table), params)
	s.recordSection(r.Context(), out)
	return out, st, d, params, true
}

// chartError maps a chart failure to a status. Nothing to draw is 204 so
// the page can show its own empty state.
func chartError(w http.ResponseWriter, err error) {
	if errors.Is(err, chart.ErrNoData) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func (s *Server) handleChartJSON(w http.ResponseWriter, r *http.Request) {
	out, _, _, _, ok := s.chartOutput(w, r)
	if !ok {
		return
	}
	cfg, err := chart.ChartJS(out)
	metrics.RecordChart("json", ignoreNoData(err))
	if err != nil {
		chartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	out, st, d, params, ok := s.chartOutput(w, r)
	if !ok {
		return
	}
	key := chartKey(d, st, out, params)
	if img, hit := s.charts.Get(key); hit {
		writePNG(w, img)
		return
	}

	var buf bytes.Buffer
	err := chart.RenderPNG(&buf, out)
	metrics.RecordChart("png", ignoreNoData(err))
	if err != nil {
		if !errors.Is(err, chart.ErrNoData) {
			fields := tlog.NewFields().
				WithComponent(tlog.ComponentReport).
				WithOperation(tlog.OpRender).
				WithSection(out.PageID, out.Section.ID).
				WithError(err)
			tlog.FromContext(r.Context()).WarnContext(r.Context(), "Chart render failed", fields.ToSlice()...)
		}
		chartError(w, err)
		return
	}
	s.charts.Set(key, buf.Bytes())
	writePNG(w, buf.Bytes())
}

// handleExport downloads the rows of the current view.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	st, d := s.current(w, r)
	if d == nil {
		NotFoundError("No dataset loaded").Write(w)
		return
	}
	t := st.View.Apply(d.Table)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	if err := export.WriteCSV(w, t); err != nil {
		fields := tlog.NewFields().WithOperation(tlog.OpExport).WithError(err)
		tlog.FromContext(r.Context()).ErrorContext(r.Context(), "Export failed", fields.ToSlice()...)
		return
	}
	tlog.FromContext(r.Context()).DebugContext(r.Context(), "Export written",
		tlog.FieldOperation, tlog.OpExport, tlog.FieldRows, t.Len())
}

// chartKey identifies a rendered image by everything that shapes it.
func chartKey(d *services.Dataset, st session.State, out report.Output, params report.Params) string {
	var b strings.Builder
	b.WriteString(d.Fingerprint)
	b.WriteByte(0)
	if spec, ok := st.View.Spec(); ok {
		for _, part := range spec.Describe() {
			b.WriteString(part)
			b.WriteByte(0)
		}
	}
	b.WriteString(out.PageID)
	b.WriteByte('/')
	b.WriteString(out.Section.ID)
	b.WriteByte('?')
	b.WriteString(newSectionView(out, params).Query)
	return strconv.FormatUint(xxh3.HashString(b.String()), 16)
}

func ignoreNoData(err error) error {
	if errors.Is(err, chart.ErrNoData) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writePNG(w http.ResponseWriter, img []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}
