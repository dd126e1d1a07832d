package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	tlog "titus/internal/log"
	"titus/internal/middleware/ratelimit"
	"titus/internal/report"
	"titus/internal/services"
	"titus/internal/session"
	"titus/internal/sheets/memory"
)

var shipmentRows = [][]string{
	{"DATE", "Destination", "Client code", "Client level", "Category1", "Profit", "Sales total", "Cost total", "WEIGHT", "CBM"},
	{"2024-01-10", "Lagos", "C1", "VIP", "Food", "100", "400", "300", "10", "1"},
	{"2024-01-20", "Accra", "C2", "Std", "Tools", "50", "150", "100", "5", "0.5"},
	{"2024-02-05", "Lagos", "C1", "VIP", "Tools", "-20", "80", "100", "2", "0.2"},
}

type testServer struct {
	*Server
	datasets *services.DatasetService
	cookies  []*http.Cookie
}

func newTestServer(t *testing.T, withSource bool, limiter *ratelimit.Limiter) *testServer {
	t.Helper()
	catalog, err := report.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	var svc *services.DatasetService
	if withSource {
		svc = services.NewDatasetService(memory.New(shipmentRows), nil, nil)
	} else {
		svc = services.NewDatasetService(nil, nil, nil)
	}
	srv, err := NewServer(Options{
		Addr:     ":0",
		Catalog:  catalog,
		Datasets: svc,
		Sessions: session.NewStore(16, time.Hour),
		Limiter:  limiter,
		Logger:   tlog.New(tlog.Config{Output: io.Discard}),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("titus_http_requests_total 1\n"))
		}),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return &testServer{Server: srv, datasets: svc}
}

// do sends req with the cookies collected so far and keeps new ones.
func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range ts.cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	if cs := rr.Result().Cookies(); len(cs) > 0 {
		ts.cookies = cs
	}
	return rr
}

func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	return ts.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (ts *testServer) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	return ts.do(req)
}

func (ts *testServer) reload(t *testing.T) {
	t.Helper()
	if _, err := ts.datasets.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t, true, nil)

	if rr := ts.get("/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	if rr := ts.get("/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before load status=%d, want 503", rr.Code)
	}
	ts.reload(t)
	if rr := ts.get("/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("readyz after load status=%d", rr.Code)
	}
	if rr := ts.get("/metrics"); !strings.Contains(rr.Body.String(), "titus_http_requests_total") {
		t.Errorf("metrics body = %q", rr.Body.String())
	}
}

func TestIndexWithoutDataset(t *testing.T) {
	ts := newTestServer(t, false, nil)

	rr := ts.get("/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Upload a shipment workbook") {
		t.Error("index should prompt for an upload")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing security headers")
	}
	if len(ts.cookies) == 0 || ts.cookies[0].Name != session.CookieName {
		t.Errorf("session cookie not set: %v", ts.cookies)
	}

	if rr := ts.get("/charts/main/profit-analysis.json"); rr.Code != http.StatusNoContent {
		t.Errorf("chart without data status=%d, want 204", rr.Code)
	}
	if rr := ts.get("/export.csv"); rr.Code != http.StatusNotFound {
		t.Errorf("export without data status=%d, want 404", rr.Code)
	}
	if rr := ts.postForm("/filters", url.Values{"in.destination": {"Lagos"}}); rr.Code != http.StatusConflict {
		t.Errorf("filters without data status=%d, want 409", rr.Code)
	}
	if rr := ts.postForm("/reload", nil); rr.Code != http.StatusConflict {
		t.Errorf("reload without source status=%d, want 409", rr.Code)
	}
}

func TestDashboardPages(t *testing.T) {
	ts := newTestServer(t, true, nil)
	ts.reload(t)

	rr := ts.get("/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Total Sales", "$630.00", "Profit Analysis", "Download CSV"} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/pages/comparison", nil)
	req.Header.Set("HX-Request", "true")
	rr = ts.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("page status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "<!doctype html>") {
		t.Error("HTMX page request should return the partial")
	}

	if rr := ts.get("/pages/comparison"); !strings.Contains(rr.Body.String(), "<!doctype html>") {
		t.Error("direct page request should return the full layout")
	}
	if rr := ts.get("/pages/missing"); rr.Code != http.StatusNotFound {
		t.Errorf("missing page status=%d", rr.Code)
	}

	rr = ts.get("/pages/main/sections/kpis")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Total Profit") {
		t.Errorf("kpi section status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = ts.get("/pages/main/sections/profit-analysis?metric=Planet")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "skipped") {
		t.Errorf("invalid selection should render a warning, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestChartEndpoints(t *testing.T) {
	ts := newTestServer(t, true, nil)
	ts.reload(t)

	rr := ts.get("/charts/main/profit-analysis.json?group=Client+level")
	if rr.Code != http.StatusOK {
		t.Fatalf("chart json status=%d body=%s", rr.Code, rr.Body.String())
	}
	var cfg struct {
		Type string `json:"type"`
		Data struct {
			Labels []string `json:"labels"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode chart: %v", err)
	}
	if cfg.Type != "bar" || len(cfg.Data.Labels) != 2 {
		t.Errorf("chart = %+v", cfg)
	}

	if rr := ts.get("/charts/main/profit-analysis.json?metric=Planet"); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown metric status=%d, want 400", rr.Code)
	}
	if rr := ts.get("/charts/main/nope.json"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown section status=%d, want 404", rr.Code)
	}
	if rr := ts.get("/charts/main/kpis.json"); rr.Code != http.StatusNoContent {
		t.Errorf("kpi chart status=%d, want 204", rr.Code)
	}

	rr = ts.get("/charts/main/profit-analysis.png")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("png status=%d type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
	if n := ts.charts.Size(); n != 1 {
		t.Errorf("chart cache size = %d, want 1", n)
	}
	ts.get("/charts/main/profit-analysis.png")
	if n := ts.charts.Size(); n != 1 {
		t.Errorf("second request should hit the cache, size = %d", n)
	}
}

func TestFiltersAndExport(t *testing.T) {
	ts := newTestServer(t, true, nil)
	ts.reload(t)
	ts.get("/")

	rr := ts.postForm("/filters", url.Values{"in.destination": {"Lagos"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("filters status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventFiltersChanged) {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
	if !strings.Contains(rr.Body.String(), "Destination: Lagos") {
		t.Error("sidebar should list the active filter")
	}

	rr = ts.get("/export.csv")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "titus_filtered.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	csv := rr.Body.String()
	if !strings.Contains(csv, "Lagos") || strings.Contains(csv, "Accra") {
		t.Errorf("export did not follow the view:\n%s", csv)
	}

	// Another browser still sees everything.
	other := &testServer{Server: ts.Server, datasets: ts.datasets}
	if csv := other.get("/export.csv").Body.String(); !strings.Contains(csv, "Accra") {
		t.Error("filters leaked across sessions")
	}

	rr = ts.postForm("/filters", url.Values{"in.planet": {"Mars"}})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown filter field status=%d, want 400", rr.Code)
	}

	rr = ts.postForm("/filters/reset", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status=%d", rr.Code)
	}
	if csv := ts.get("/export.csv").Body.String(); !strings.Contains(csv, "Accra") {
		t.Error("reset should restore all rows")
	}
}

func TestFiltersKeepDatePreset(t *testing.T) {
	ts := newTestServer(t, true, nil)
	ts.reload(t)
	ts.get("/")

	rr := ts.postForm("/filters", url.Values{"date_preset": {"ytd"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("filters status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, `<option value="ytd" selected>`) {
		t.Error("submitted preset should stay selected")
	}
	if strings.Contains(body, `<option value="custom" selected>`) {
		t.Error("custom should not be selected after a preset was submitted")
	}
	if !strings.Contains(body, `value="2024-01-01"`) || !strings.Contains(body, `value="2024-02-05"`) {
		t.Error("sidebar should show the resolved year-to-date range")
	}

	rr = ts.postForm("/filters/reset", nil)
	if !strings.Contains(rr.Body.String(), `<option value="custom" selected>`) {
		t.Error("reset should fall back to a custom range")
	}
}

func workbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "Data"); err != nil {
		t.Fatal(err)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow("Data", cell, &values); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func (ts *testServer) upload(t *testing.T, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(content)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return ts.do(req)
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t, true, nil)
	ts.reload(t)
	ts.get("/")

	rows := [][]string{
		{"DATE", "Destination", "Profit"},
		{"2024-05-01", "Dakar", "70"},
	}
	rr := ts.upload(t, "may.xlsx", workbook(t, rows))
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventDatasetChanged) {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
	if csv := ts.get("/export.csv").Body.String(); !strings.Contains(csv, "Dakar") || strings.Contains(csv, "Lagos") {
		t.Errorf("session should see its upload:\n%s", csv)
	}
	if d, _ := ts.datasets.Current(); d.Table.Len() != 3 {
		t.Error("upload replaced the shared dataset")
	}

	rr = ts.postForm("/upload/clear", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("clear status=%d", rr.Code)
	}
	if csv := ts.get("/export.csv").Body.String(); !strings.Contains(csv, "Lagos") {
		t.Error("clearing the upload should restore the shared dataset")
	}

	if rr := ts.upload(t, "notes.xlsx", []byte("not a workbook")); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad upload status=%d, want 422", rr.Code)
	}
}

func TestReloadEndpoint(t *testing.T) {
	ts := newTestServer(t, true, nil)

	rr := ts.postForm("/reload", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("reload status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventDatasetChanged) {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
	if _, ok := ts.datasets.Current(); !ok {
		t.Error("reload did not load the shared dataset")
	}
}

func TestRateLimitOnPosts(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 1, StaleAfter: time.Minute})
	ts := newTestServer(t, true, limiter)
	ts.reload(t)

	if rr := ts.postForm("/filters/reset", nil); rr.Code != http.StatusOK {
		t.Fatalf("first post status=%d", rr.Code)
	}
	rr := ts.postForm("/filters/reset", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second post status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rr := ts.get("/"); rr.Code != http.StatusOK {
		t.Errorf("reads are not limited, status=%d", rr.Code)
	}
}

func TestNewServerRequiresDependencies(t *testing.T) {
	if _, err := NewServer(Options{}); err == nil {
		t.Fatal("expected error without catalog, datasets and sessions")
	}
}
