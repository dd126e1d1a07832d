package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"titus/internal/cache"
	tlog "titus/internal/log"
	"titus/internal/middleware/ratelimit"
	"titus/internal/middleware/security"
	"titus/internal/middleware/trace"
	"titus/internal/report"
	"titus/internal/services"
	"titus/internal/session"
	appweb "titus/web"
)

const (
	defaultChartCacheSize = 256
	defaultChartCacheTTL  = 10 * time.Minute
	defaultMaxUpload      = 10 << 20
	requestTimeout        = 7 * time.Second
	reloadTimeout         = 30 * time.Second
)

// Options wires the server to the rest of the application. Catalog,
// Datasets and Sessions are required.
type Options struct {
	Addr           string
	Catalog        *report.Catalog
	Datasets       *services.DatasetService
	Sessions       *session.Store
	Limiter        *ratelimit.Limiter
	Detector       *security.Detector
	Logger         *tlog.Logger
	Metrics        http.Handler
	MaxUploadBytes int64
	ChartCacheSize int
	ChartCacheTTL  time.Duration
}

type Server struct {
	http.Server
	templates *template.Template
	catalog   *report.Catalog
	datasets  *services.DatasetService
	sessions  *session.Store
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *tlog.Logger
	metrics   http.Handler
	maxUpload int64

	// Rendered PNG charts keyed by dataset, view and section selections.
	charts *cache.LRUCache[[]byte]
}

// NewServer parses the templates and builds the router.
func NewServer(opts Options) (*Server, error) {
	if opts.Catalog == nil || opts.Datasets == nil || opts.Sessions == nil {
		return nil, errors.New("http server: catalog, datasets and sessions are required")
	}
	if opts.Logger == nil {
		opts.Logger = tlog.New(tlog.Config{Component: tlog.ComponentHTTP})
	}
	if opts.Detector == nil {
		opts.Detector = security.NewDetector()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if opts.ChartCacheSize <= 0 {
		opts.ChartCacheSize = defaultChartCacheSize
	}
	if opts.ChartCacheTTL <= 0 {
		opts.ChartCacheTTL = defaultChartCacheTTL
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		templates: t,
		catalog:   opts.Catalog,
		datasets:  opts.Datasets,
		sessions:  opts.Sessions,
		limiter:   opts.Limiter,
		detector:  opts.Detector,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		maxUpload: opts.MaxUploadBytes,
		charts:    cache.NewLRUCache[[]byte](opts.ChartCacheSize, opts.ChartCacheTTL),
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// ChartCache lets a cache.Manager sweep expired PNGs.
func (s *Server) ChartCache() cache.Cleaner { return s.charts }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(trace.NewMiddleware(s.logger, s.detector.ClientIP).Handler)
	r.Use(s.detector.Middleware(s.logger.Logger))
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(middleware.StripSlashes)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticCache(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", tlog.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5, "text/html", "text/css", "application/javascript", "application/json", "text/csv"))
		r.Get("/", s.handleIndex)
		r.Get("/sidebar", s.handleSidebar)
		r.Get("/pages/{page}", s.handlePage)
		r.Get("/pages/{page}/sections/{section}", s.handleSection)
		r.Get("/charts/{page}/{section}.json", s.handleChartJSON)
		r.Get("/export.csv", s.handleExport)
	})
	r.Get("/charts/{page}/{section}.png", s.handleChartPNG)

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
				ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").
					NotifyError("Too many requests, slow down").
					Write(w)
			}))
		}
		r.Post("/upload", s.handleUpload)
		r.Post("/upload/clear", s.handleClearUpload)
		r.Post("/filters", s.handleFilters)
		r.Post("/filters/reset", s.handleResetFilters)
		r.Post("/reload", s.handleReload)
	})

	return r
}

// render executes a template into a buffer so a failing template never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any, b *HTMXResponseBuilder) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		tlog.FromContext(r.Context()).WithComponent(tlog.ComponentTemplate).
			ErrorContext(r.Context(), "Template execution failed", "template", name, tlog.FieldError, err)
		InternalServerError("Failed to render page").Write(w)
		return
	}
	if b == nil {
		b = NewHTMXResponse()
	}
	b.HTML(buf.Bytes()).Write(w)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady fails until the configured source has been loaded once.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.datasets.HasSource() {
		if _, ok := s.datasets.Current(); !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("dataset not loaded"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
