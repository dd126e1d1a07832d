package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	tlog "titus/internal/log"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := tlog.New(tlog.Config{Output: &buf})
	m := NewMiddleware(logger, func(*http.Request) string { return "198.51.100.1" })

	var seen string
	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/pages/{page}", func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		tlog.FromContext(r.Context()).Info("rendering")
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pages/main", nil))

	if !strings.HasPrefix(seen, "req_") || len(seen) != len("req_")+16 {
		t.Errorf("request id = %q", seen)
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("X-Request-ID = %q, want %q", rec.Header().Get("X-Request-ID"), seen)
	}
	out := buf.String()
	for _, want := range []string{"request_id=" + seen, "status_code=418", "client_ip=198.51.100.1", "level=WARN"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestRoutePatternUnmatched(t *testing.T) {
	if got := routePattern(httptest.NewRequest(http.MethodGet, "/x", nil)); got != "unmatched" {
		t.Errorf("routePattern() = %q", got)
	}
}
