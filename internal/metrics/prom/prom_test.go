package prom

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"titus/internal/metrics"
)

func TestBackendExposesMetrics(t *testing.T) {
	b, err := NewBackend()
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	metrics.SetBackend(b)
	defer metrics.SetBackend(nil)

	metrics.RecordDatasetLoad("file", 42, nil, 150*time.Millisecond)
	metrics.RecordSection("bar", errors.New("unknown field"))
	metrics.RecordHTTP("/healthz", "GET", 200, time.Millisecond)
	metrics.SetActiveSessions(2)

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`titus_dataset_loads_total{source="file",status="success"} 1`,
		`titus_dataset_rows{source="file"} 42`,
		`titus_sections_evaluated_total{kind="bar",status="failure"} 1`,
		`titus_http_requests_total{code="200",method="GET",route="/healthz"} 1`,
		`titus_sessions_active 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestUnknownMetricIgnored(t *testing.T) {
	b, err := NewBackend()
	if err != nil {
		t.Fatal(err)
	}
	b.IncCounter("not_a_metric", 1, nil)
	b.ObserveHistogram("not_a_metric", 1, nil)
	b.SetGauge("not_a_metric", 1, nil)
}
