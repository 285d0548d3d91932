package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pep299/qiita-highlight-bridge/internal/config"
	"github.com/pep299/qiita-highlight-bridge/internal/job"
	"github.com/pep299/qiita-highlight-bridge/internal/metrics"
	"github.com/pep299/qiita-highlight-bridge/internal/report"
)

type fakeRunner struct {
	calls    []int
	triggers []string
	err      error
	delay    time.Duration
}

func (f *fakeRunner) RunFor(ctx context.Context, trigger string, backfillDays int) (*report.Report, error) {
	time.Sleep(f.delay)
	f.calls = append(f.calls, backfillDays)
	f.triggers = append(f.triggers, trigger)
	rep := report.New(trigger, backfillDays, time.Now())
	if f.err != nil {
		rep.Status = report.StatusFailure
		return rep, f.err
	}
	rep.Status = report.StatusSuccess
	rep.New = 2
	return rep, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:             "8080",
		Host:             "0.0.0.0",
		QiitaToken:       "qiita-secret",
		NotionToken:      "notion-secret",
		NotionDatabaseID: "db",
		MinLikes:         500,
		MinStocks:        500,
		BackfillDays:     1,
		WebhookAuthToken: "hook-token",
	}
}

func newTestServer(runner Runner, store report.Store) (*Server, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	return NewServer(testConfig(), runner, store, reg, nil), reg
}

func do(t *testing.T, s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.SetupRoutes().ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(&fakeRunner{}, nil)

	w := do(t, s, "GET", "/api/v1/health", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["status"] != "ok" || body["version"] != Version {
		t.Errorf("Unexpected health response %v", body)
	}
}

func TestSyncHandlerRequiresToken(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestServer(runner, nil)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"wrong", "other-token"},
		{"prefix only", "hook"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, "POST", "/api/v1/sync", "", tt.token)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", w.Code)
			}
		})
	}
	if len(runner.calls) != 0 {
		t.Error("Runner must not be called without a valid token")
	}
}

func TestSyncHandler(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestServer(runner, nil)

	w := do(t, s, "POST", "/api/v1/sync", "", "hook-token")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, s, "POST", "/api/v1/sync", `{"days":7}`, "hook-token")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	if len(runner.calls) != 2 || runner.calls[0] != 1 || runner.calls[1] != 7 {
		t.Errorf("Expected default then 7 days, got %v", runner.calls)
	}
	if runner.triggers[0] != report.TriggerHTTP {
		t.Errorf("Expected http trigger, got %s", runner.triggers[0])
	}

	var resp struct {
		Status string        `json:"status"`
		Data   report.Report `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "success" || resp.Data.BackfillDays != 7 || resp.Data.New != 2 {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestSyncHandlerErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"invalid json", `{"days":`, nil, http.StatusBadRequest},
		{"zero days", `{"days":0}`, nil, http.StatusBadRequest},
		{"too many days", `{"days":400}`, nil, http.StatusBadRequest},
		{"already running", ``, job.ErrAlreadyRunning, http.StatusConflict},
		{"run failure", ``, errors.New("fetching popular items: boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(&fakeRunner{err: tt.err}, nil)
			w := do(t, s, "POST", "/api/v1/sync", tt.body, "hook-token")
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestSyncHandlerWithoutConfiguredToken(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestServer(runner, nil)
	s.config.WebhookAuthToken = ""

	w := do(t, s, "POST", "/api/v1/sync", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected open access when no token is configured, got %d", w.Code)
	}
}

func TestSyncMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(&fakeRunner{}, nil)

	w := do(t, s, "GET", "/api/v1/sync", "", "hook-token")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestSyncOutlastsWriteTimeout(t *testing.T) {
	s, _ := newTestServer(&fakeRunner{delay: 300 * time.Millisecond}, nil)

	server := httptest.NewUnstartedServer(s.SetupRoutes())
	server.Config.WriteTimeout = 100 * time.Millisecond
	server.Start()
	defer server.Close()

	req, err := http.NewRequest("POST", server.URL+"/api/v1/sync", nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer hook-token")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Expected a response after a slow run, got %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	var body Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Status != "success" {
		t.Errorf("Expected status 'success', got %q", body.Status)
	}
}

func TestRunsHandlers(t *testing.T) {
	store := report.NewMemoryStore(10)
	ctx := context.Background()
	var last *report.Report
	for i := 0; i < 3; i++ {
		last = report.New(report.TriggerSchedule, 1, time.Now())
		store.Save(ctx, last)
	}
	s, _ := newTestServer(&fakeRunner{}, store)

	w := do(t, s, "GET", "/api/v1/runs?limit=2", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var list struct {
		Data []report.Report `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(list.Data) != 2 || list.Data[0].ID != last.ID {
		t.Errorf("Expected the 2 newest runs, got %+v", list.Data)
	}

	if w := do(t, s, "GET", "/api/v1/runs?limit=abc", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad limit, got %d", w.Code)
	}

	w = do(t, s, "GET", "/api/v1/runs/"+last.ID, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	if w := do(t, s, "GET", "/api/v1/runs/unknown", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestRunsHandlersWithoutStore(t *testing.T) {
	s, _ := newTestServer(&fakeRunner{}, nil)

	if w := do(t, s, "GET", "/api/v1/runs", "", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestConfigHandlerHidesSecrets(t *testing.T) {
	s, _ := newTestServer(&fakeRunner{}, nil)

	w := do(t, s, "GET", "/api/v1/config", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, secret := range []string{"qiita-secret", "notion-secret", "hook-token"} {
		if strings.Contains(body, secret) {
			t.Errorf("Config response leaked %s", secret)
		}
	}
	if !strings.Contains(body, `"min_likes":500`) {
		t.Errorf("Expected thresholds in config response, got %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(&fakeRunner{}, nil)

	w := do(t, s, "GET", "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "qiita_bridge_") {
		t.Error("Expected bridge metrics in exposition")
	}
}
