package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"titus/internal/core"
	"titus/internal/engine"
	tlog "titus/internal/log"
	"titus/internal/metrics"
	"titus/internal/report"
	"titus/internal/services"
	"titus/internal/session"
)

// current resolves the session and the table it sees. d is nil when
// nothing was uploaded and no shared dataset is loaded.
func (s *Server) current(w http.ResponseWriter, r *http.Request) (session.State, *services.Dataset) {
	st := s.sessions.Ensure(w, r)
	shared, _ := s.datasets.Current()
	return st, st.Dataset(shared)
}

func (s *Server) sidebar(st session.State, d *services.Dataset) sidebarView {
	return buildSidebar(d, st.View, st.Upload != nil, s.datasets.HasSource(), int(s.maxUpload>>20))
}

// evaluatePage computes every section of p over the session's view.
func (s *Server) evaluatePage(ctx context.Context, p *report.Page, st session.State, d *services.Dataset) pageView {
	pv := pageView{Page: p}
	if d == nil {
		pv.NoDataset = true
		return pv
	}
	t := st.View.Apply(d.Table)
	pv.Rows = t.Len()
	for _, out := range report.Evaluate(p, t) {
		s.recordSection(ctx, out)
		pv.Sections = append(pv.Sections, newSectionView(out, nil))
	}
	return pv
}

func (s *Server) recordSection(ctx context.Context, out report.Output) {
	metrics.RecordSection(string(out.Section.Kind), out.Err)
	if out.Err != nil {
		fields := tlog.NewFields().
			WithComponent(tlog.ComponentReport).
			WithSection(out.PageID, out.Section.ID).
			WithError(out.Err)
		tlog.FromContext(ctx).WarnContext(ctx, "Section skipped", fields.ToSlice()...)
	}
}

func (s *Server) lookup(r *http.Request) (*report.Page, *report.Section, error) {
	p, err := s.catalog.Page(chi.URLParam(r, "page"))
	if err != nil {
		return nil, nil, err
	}
	sec, err := p.Section(chi.URLParam(r, "section"))
	if err != nil {
		return nil, nil, err
	}
	return p, sec, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if len(s.catalog.Pages) == 0 {
		NotFoundError("No pages defined").Write(w)
		return
	}
	s.renderIndex(w, r, &s.catalog.Pages[0])
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, p *report.Page) {
	st, d := s.current(w, r)
	s.render(w, r, "index", indexView{
		Pages:   s.catalog.Pages,
		Current: p,
		Sidebar: s.sidebar(st, d),
		Content: s.evaluatePage(r.Context(), p, st, d),
	}, nil)
}

// handlePage serves the page body to HTMX and the whole layout otherwise,
// so page URLs can be bookmarked.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Page(chi.URLParam(r, "page"))
	if err != nil {
		NotFoundError("Page not found").Write(w)
		return
	}
	if r.Header.Get("HX-Request") != "true" {
		s.renderIndex(w, r, p)
		return
	}
	st, d := s.current(w, r)
	s.render(w, r, "page", s.evaluatePage(r.Context(), p, st, d), nil)
}

func (s *Server) handleSidebar(w http.ResponseWriter, r *http.Request) {
	st, d := s.current(w, r)
	s.render(w, r, "sidebar", s.sidebar(st, d), nil)
}

// handleSection recomputes one section with the user's selections. An
// invalid selection is shown as a warning in place of the chart.
func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	p, sec, err := s.lookup(r)
	if err != nil {
		NotFoundError("Section not found").Write(w)
		return
	}
	st, d := s.current(w, r)
	if d == nil {
		s.render(w, r, "empty", nil, nil)
		return
	}
	params := SectionParams(r.URL.Query())
	out := report.EvaluateSection(p.ID, *sec, st.View.Apply(d.Table), params)
	s.recordSection(r.Context(), out)
	s.render(w, r, "section", newSectionView(out, params), nil)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := tlog.FromContext(ctx).WithComponent(tlog.ComponentDataset)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, fmt.Sprintf("File is larger than %d MB", s.maxUpload>>20)).Write(w)
			return
		}
		BadRequestError("Invalid upload").Write(w)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("Choose an .xlsx file to upload").Write(w)
		return
	}
	defer file.Close()

	d, err := s.datasets.LoadUpload(ctx, file)
	if err != nil {
		fields := tlog.NewFields().WithOperation(tlog.OpUpload).WithError(err)
		logger.WarnContext(ctx, "Upload rejected", append(fields.ToSlice(), "filename", header.Filename)...)
		if core.IsMalformedInput(err) {
			UnprocessableEntityError(err.Error()).
				NotifyError("Could not read " + header.Filename).
				Write(w)
			return
		}
		InternalServerError("Failed to load upload").Write(w)
		return
	}

	st := s.sessions.Ensure(w, r)
	st, err = s.sessions.SetUpload(st.ID, d)
	if err != nil {
		InternalServerError("Session expired, reload the page").Write(w)
		return
	}
	logger.InfoContext(ctx, "Upload attached to session",
		tlog.NewFields().WithDataset(d.Source, d.Fingerprint, d.Table.Len(), len(d.Table.Columns())).ToSlice()...)

	s.render(w, r, "sidebar", s.sidebar(st, d), NewHTMXResponse().
		TriggerDatasetChanged(d.Source, d.Fingerprint, d.Table.Len()).
		NotifySuccess(fmt.Sprintf("Loaded %d rows from %s", d.Table.Len(), header.Filename)))
}

// handleClearUpload drops the session's upload and returns to the shared
// dataset.
func (s *Server) handleClearUpload(w http.ResponseWriter, r *http.Request) {
	st := s.sessions.Ensure(w, r)
	st, err := s.sessions.ClearUpload(st.ID)
	if err != nil {
		InternalServerError("Session expired, reload the page").Write(w)
		return
	}
	shared, _ := s.datasets.Current()
	d := st.Dataset(shared)

	b := NewHTMXResponse()
	if d != nil {
		b.TriggerDatasetChanged(d.Source, d.Fingerprint, d.Table.Len())
	} else {
		b.TriggerDatasetChanged("", "", 0)
	}
	s.render(w, r, "sidebar", s.sidebar(st, d), b)
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	st, d := s.current(w, r)
	if d == nil {
		ConflictError(core.ErrNoDataset.Error()).Write(w)
		return
	}

	spec, err := ParseFilterForm(r.PostForm, d.Table)
	if err != nil {
		if core.IsUnknownField(err) || errors.Is(err, ErrInvalidFilter) {
			BadRequestError(err.Error()).Write(w)
			return
		}
		InternalServerError("Failed to apply filters").Write(w)
		return
	}

	// ParseFilterForm already rejected unknown presets.
	preset, _ := engine.ParsePreset(r.PostForm.Get(formDatePreset))
	st, err = s.sessions.SetView(st.ID, engine.Filtered(spec).WithPreset(preset))
	if err != nil {
		InternalServerError("Session expired, reload the page").Write(w)
		return
	}
	sv := s.sidebar(st, d)
	tlog.FromContext(r.Context()).DebugContext(r.Context(), "Filters applied",
		tlog.FieldOperation, tlog.OpFilter,
		tlog.FieldFilters, sv.Active,
		tlog.FieldRows, sv.Rows)

	b := NewHTMXResponse().TriggerFiltersChanged(sv.Rows, true)
	if sv.Rows == 0 {
		b.NotifyWarning("No rows match the selected filters")
	}
	s.render(w, r, "sidebar", sv, b)
}

func (s *Server) handleResetFilters(w http.ResponseWriter, r *http.Request) {
	st, d := s.current(w, r)
	st, err := s.sessions.SetView(st.ID, engine.Unfiltered())
	if err != nil {
		InternalServerError("Session expired, reload the page").Write(w)
		return
	}
	sv := s.sidebar(st, d)
	s.render(w, r, "sidebar", sv, NewHTMXResponse().TriggerFiltersChanged(sv.Rows, false))
}

// handleReload rereads the configured source for everyone.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
	defer cancel()

	d, err := s.datasets.Reload(ctx)
	if err != nil {
		logger := tlog.FromContext(ctx).WithComponent(tlog.ComponentDataset)
		logger.WarnContext(ctx, "Reload failed", tlog.NewFields().WithOperation(tlog.OpReload).WithError(err).ToSlice()...)
		switch {
		case errors.Is(err, services.ErrNoSource):
			ConflictError("No data source configured; upload a workbook instead").Write(w)
		case core.IsMalformedInput(err):
			UnprocessableEntityError(err.Error()).Write(w)
		default:
			ErrorResponse(http.StatusBadGateway, "Could not read the data source").
				NotifyError("Reload failed").
				Write(w)
		}
		return
	}

	st := s.sessions.Ensure(w, r)
	b := NewHTMXResponse().NotifySuccess(fmt.Sprintf("Reloaded %d rows", d.Table.Len()))
	if st.Upload == nil {
		b.TriggerDatasetChanged(d.Source, d.Fingerprint, d.Table.Len())
	}
	s.render(w, r, "sidebar", s.sidebar(st, st.Dataset(d)), b)
}
