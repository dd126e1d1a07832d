// Package metrics records operational counters behind a small interface.
// The default backend discards everything, so callers never check whether
// metrics are enabled.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names.
const (
	DatasetLoads        = "titus_dataset_loads_total"
	DatasetLoadDuration = "titus_dataset_load_duration_seconds"
	DatasetRows         = "titus_dataset_rows"
	SectionsEvaluated   = "titus_sections_evaluated_total"
	ChartsRendered      = "titus_charts_rendered_total"
	ActiveSessions      = "titus_sessions_active"
	SessionsEvicted     = "titus_sessions_evicted_total"
	HTTPRequests        = "titus_http_requests_total"
	HTTPDuration        = "titus_http_request_duration_seconds"
)

type Labels map[string]string

type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	SetGauge(name string, value float64, labels Labels)
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) SetGauge(string, float64, Labels)         {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. Passing nil restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordDatasetLoad counts a load attempt from source and, on success, the
// size of the resulting table.
func RecordDatasetLoad(source string, rows int, err error, d time.Duration) {
	b := current()
	lbls := Labels{"source": source, "status": status(err)}
	b.IncCounter(DatasetLoads, 1, lbls)
	b.ObserveHistogram(DatasetLoadDuration, d.Seconds(), lbls)
	if err == nil {
		b.SetGauge(DatasetRows, float64(rows), Labels{"source": source})
	}
}

// RecordSection counts one evaluated report section.
func RecordSection(kind string, err error) {
	current().IncCounter(SectionsEvaluated, 1, Labels{"kind": kind, "status": status(err)})
}

// RecordChart counts a rendered chart payload by format (json or png).
func RecordChart(format string, err error) {
	current().IncCounter(ChartsRendered, 1, Labels{"format": format, "status": status(err)})
}

func SetActiveSessions(n int) {
	current().SetGauge(ActiveSessions, float64(n), nil)
}

func RecordSessionEvicted() {
	current().IncCounter(SessionsEvicted, 1, nil)
}

// RecordHTTP counts a finished request. route is the router pattern, not the
// raw path, to keep label cardinality bounded.
func RecordHTTP(route, method string, code int, d time.Duration) {
	b := current()
	lbls := Labels{"route": route, "method": method, "code": strconv.Itoa(code)}
	b.IncCounter(HTTPRequests, 1, lbls)
	b.ObserveHistogram(HTTPDuration, d.Seconds(), Labels{"route": route, "method": method})
}
