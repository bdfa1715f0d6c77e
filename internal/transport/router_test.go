package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pitabwire/backoffice/internal/config"
	"github.com/pitabwire/backoffice/internal/observability"
)

// testDeps returns router dependencies with every readiness check passing
// and no views wired.
func testDeps() Dependencies {
	cfg := config.Defaults()
	cfg.Server.CORS.AllowedOrigins = []string{"https://admin.example.com"}
	cfg.Server.HandlerTimeout = 5 * time.Second
	return Dependencies{
		Config: cfg,
		Readiness: observability.ReadinessChecks{
			DefinitionsLoaded: func() bool { return true },
			OpenAPILoaded:     func() bool { return true },
		},
	}
}

func TestNewRouter_operationalEndpoints(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		tweak  func(*Dependencies)
		status int
	}{
		{name: "health", path: "/ui/health", status: http.StatusOK},
		{name: "ready", path: "/ui/ready", status: http.StatusOK},
		{
			name:   "definitions missing",
			path:   "/ui/ready",
			tweak:  func(d *Dependencies) { d.Readiness.DefinitionsLoaded = func() bool { return false } },
			status: http.StatusServiceUnavailable,
		},
		{
			name: "session table full",
			path: "/ui/ready",
			tweak: func(d *Dependencies) {
				d.Readiness.SessionCapacity = func() (int, int) { return 10, 10 }
			},
			status: http.StatusServiceUnavailable,
		},
		{name: "metrics", path: "/metrics", status: http.StatusOK},
		{
			name:   "metrics on custom path",
			path:   "/internal/metrics",
			tweak:  func(d *Dependencies) { d.Config.Observability.Metrics.Path = "/internal/metrics" },
			status: http.StatusOK,
		},
		{
			name:   "metrics disabled",
			path:   "/metrics",
			tweak:  func(d *Dependencies) { d.Config.Observability.Metrics.Enabled = false },
			status: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			if tt.tweak != nil {
				tt.tweak(&deps)
			}
			w := httptest.NewRecorder()
			NewRouter(deps).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.status {
				t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.status)
			}
		})
	}
}

func TestNewRouter_healthBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewRouter(testDeps()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ui/health", nil))

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
	// Operational endpoints still pass through the outer middleware.
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}
	if w.Header().Get(HeaderCorrelationID) == "" {
		t.Error("correlation id missing")
	}
}

func TestNewRouter_listViewRoutes(t *testing.T) {
	r := NewRouter(testAPI(&mockInvoker{result: testBody()}))

	for _, route := range []string{
		"GET /ui/views/leads.list",
		"GET /ui/views/leads.list/data",
		"POST /ui/views/leads.list/sessions",
		"GET /ui/sessions/s-1",
		"POST /ui/sessions/s-1/events",
		"DELETE /ui/sessions/s-1",
		"GET /ui/options/salesUnit?view=leads.list",
	} {
		t.Run(route, func(t *testing.T) {
			method, target, _ := strings.Cut(route, " ")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
			if w.Code == http.StatusNotFound || w.Code == http.StatusMethodNotAllowed {
				t.Errorf("%s answered %d", route, w.Code)
			}
		})
	}
}

func TestNewRouter_wrongMethod(t *testing.T) {
	w := httptest.NewRecorder()
	NewRouter(testDeps()).ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/ui/sessions/s-1", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
