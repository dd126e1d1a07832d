// Package trace assigns request ids and logs and measures every request.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	tlog "titus/internal/log"
	"titus/internal/metrics"
)

type contextKey struct{}

// Middleware tags requests with an id, installs a request logger and
// records the outcome.
type Middleware struct {
	logger    *tlog.Logger
	extractIP func(*http.Request) string
}

func NewMiddleware(logger *tlog.Logger, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{logger: logger, extractIP: extractIP}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := GenerateRequestID()
		ctx := context.WithValue(r.Context(), contextKey{}, requestID)
		if m.logger != nil {
			ctx = tlog.NewContext(ctx, m.logger.With(tlog.FieldRequestID, requestID))
		}
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)

		tlog.LogHTTPStart(ctx, r, clientIP)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		tlog.LogHTTPEnd(ctx, r, status, d.Milliseconds(), clientIP)
		metrics.RecordHTTP(routePattern(r), r.Method, status, d)
	})
}

// routePattern is the matched chi pattern, or "unmatched" for 404s.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func GenerateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
