package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"airquality-server/internal/config"
	"airquality-server/internal/metrics"
	"airquality-server/internal/modules/airquality/controller"
	"airquality-server/internal/modules/airquality/repository"
	"airquality-server/internal/modules/airquality/types"
)

func testConfig() config.Config {
	return config.Config{
		HTTPAddr:        ":0",
		CORSOrigins:     []string{"*"},
		RateLimitWindow: time.Minute,
	}
}

func testRepository() repository.MeasurementRepository {
	return repository.NewRepository([]types.Measurement{
		{Lat: 44.355, Lon: 176.255005, PM25: 6.2},
		{Lat: 44.355, Lon: 176.265, PM25: 5.2},
	})
}

func newTestServer(t *testing.T, cfg config.Config, repo repository.MeasurementRepository) *httptest.Server {
	t.Helper()

	router := NewRouter(cfg, repo, func(r chi.Router) {
		controller.NewAirQualityController(repo).RegisterRoutes(r)
	})
	srv := NewServer(cfg, router)
	ts := httptest.NewServer(srv.Handler)

	t.Cleanup(ts.Close)
	return ts
}

func mustGetJSON[T any](t *testing.T, client *http.Client, url string, out *T) *http.Response {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	return resp
}

func mustGetRaw(t *testing.T, client *http.Client, url string) (*http.Response, string) {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, testConfig(), testRepository())

	var body healthResponse
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/healthz", &body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if body.Status != "ok" || body.Records != 2 {
		t.Fatalf("body=%+v want status=ok records=2", body)
	}
}

func TestHealthz_NoStore(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	var body map[string]string
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/healthz", &body)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusInternalServerError)
	}
	if body["error"] == "" {
		t.Fatalf("expected error message, got %v", body)
	}
}

func TestFeatureRoutesMounted(t *testing.T) {
	ts := newTestServer(t, testConfig(), testRepository())

	var entries []types.Entry
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/data", &entries)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries)=%d want=2", len(entries))
	}
}

func TestRequestMetrics(t *testing.T) {
	ts := newTestServer(t, testConfig(), testRepository())

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/data/{id:[0-9]+}", "404")
	before := testutil.ToFloat64(counter)

	resp, _ := mustGetRaw(t, ts.Client(), ts.URL+"/data/999")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusNotFound)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("requests counter=%v want=%v", got, before+1)
	}

	unmatched := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	mustGetRaw(t, ts.Client(), ts.URL+"/no/such/route")
	if got := testutil.ToFloat64(unmatched); got != before+1 {
		t.Errorf("unmatched counter=%v want=%v", got, before+1)
	}

	resp, body := mustGetRaw(t, ts.Client(), ts.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics status=%d", resp.StatusCode)
	}
	if !strings.Contains(body, "airquality_http_requests_total") {
		t.Error("/metrics does not expose airquality_http_requests_total")
	}
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.CORSOrigins = []string{"http://dashboard.example"}
	ts := newTestServer(t, cfg, testRepository())

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/data", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "http://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	_ = resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://dashboard.example" {
		t.Errorf("Access-Control-Allow-Origin=%q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/data", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Access-Control-Allow-Origin=%q", got)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRequests = 2
	ts := newTestServer(t, cfg, testRepository())

	for i := 0; i < 2; i++ {
		if resp, _ := mustGetRaw(t, ts.Client(), ts.URL+"/data/stats"); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status=%d want=%d", i, resp.StatusCode, http.StatusOK)
		}
	}
	if resp, _ := mustGetRaw(t, ts.Client(), ts.URL+"/data/stats"); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusTooManyRequests)
	}

	// Operational routes are outside the limited group.
	if resp, _ := mustGetRaw(t, ts.Client(), ts.URL+"/healthz"); resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
}

func TestDocs(t *testing.T) {
	ts := newTestServer(t, testConfig(), testRepository())

	var doc map[string]any
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/static/swagger.json", &doc)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/static/swagger.json status=%d", resp.StatusCode)
	}
	if doc["swagger"] != "2.0" {
		t.Errorf("swagger=%v want 2.0", doc["swagger"])
	}
	paths, _ := doc["paths"].(map[string]any)
	for _, p := range []string{"/data", "/data/{id}", "/data/filter/{lat}/{lon}", "/data/stats"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("swagger.json missing path %s", p)
		}
	}

	var served map[string]any
	resp = mustGetJSON(t, ts.Client(), ts.URL+"/api/doc.json", &served)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/api/doc.json status=%d", resp.StatusCode)
	}
	if served["swagger"] != "2.0" {
		t.Errorf("/api/doc.json swagger=%v", served["swagger"])
	}

	resp, body := mustGetRaw(t, ts.Client(), ts.URL+"/api/index.html")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "swagger-ui") {
		t.Errorf("/api/index.html status=%d", resp.StatusCode)
	}
}

func TestDocs_StaticDirOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "swagger.json"), []byte(`{"swagger":"override"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.StaticDir = dir
	ts := newTestServer(t, cfg, testRepository())

	var doc map[string]any
	mustGetJSON(t, ts.Client(), ts.URL+"/static/swagger.json", &doc)
	if doc["swagger"] != "override" {
		t.Errorf("swagger=%v want override", doc["swagger"])
	}
}
