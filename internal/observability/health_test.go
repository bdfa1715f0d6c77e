package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleHealth_returnsOK(t *testing.T) {
	// Set build-time variables for test.
	origVersion, origCommit := Version, Commit
	Version = "1.2.3"
	Commit = "abc1234"
	t.Cleanup(func() {
		Version = origVersion
		Commit = origCommit
	})

	handler := HandleHealth()
	req := httptest.NewRequest(http.MethodGet, "/ui/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", resp.Version)
	}
	if resp.Commit != "abc1234" {
		t.Errorf("commit = %q, want abc1234", resp.Commit)
	}
}

func TestHandleHealth_defaultValues(t *testing.T) {
	handler := HandleHealth()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ui/health", nil))

	var resp HealthResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Version == "" {
		t.Error("version should have a default value")
	}
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) HealthCheck(_ context.Context) error {
	return m.err
}

func serveReady(t *testing.T, checks ReadinessChecks) (int, ReadinessResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	HandleReady(checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ui/ready", nil))

	var resp ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return rec.Code, resp
}

func loaded() bool    { return true }
func notLoaded() bool { return false }

func TestHandleReady(t *testing.T) {
	tests := []struct {
		name       string
		checks     ReadinessChecks
		wantCode   int
		wantStatus map[string]string
	}{
		{
			name:       "required checks pass",
			checks:     ReadinessChecks{DefinitionsLoaded: loaded, OpenAPILoaded: loaded},
			wantCode:   http.StatusOK,
			wantStatus: map[string]string{"definitions": "ok", "openapi_index": "ok"},
		},
		{
			name:       "definitions missing",
			checks:     ReadinessChecks{DefinitionsLoaded: notLoaded, OpenAPILoaded: loaded},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: map[string]string{"definitions": "error", "openapi_index": "ok"},
		},
		{
			name:       "openapi missing",
			checks:     ReadinessChecks{DefinitionsLoaded: loaded, OpenAPILoaded: notLoaded},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: map[string]string{"definitions": "ok", "openapi_index": "error"},
		},
		{
			name:       "nil flag functions fail",
			checks:     ReadinessChecks{},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: map[string]string{"definitions": "error", "openapi_index": "error"},
		},
		{
			name: "option store healthy",
			checks: ReadinessChecks{
				DefinitionsLoaded: loaded,
				OpenAPILoaded:     loaded,
				OptionStore:       &mockHealthChecker{},
			},
			wantCode:   http.StatusOK,
			wantStatus: map[string]string{"definitions": "ok", "openapi_index": "ok", "option_store": "ok"},
		},
		{
			name: "option store down",
			checks: ReadinessChecks{
				DefinitionsLoaded: loaded,
				OpenAPILoaded:     loaded,
				OptionStore:       &mockHealthChecker{err: errors.New("redis down")},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: map[string]string{"definitions": "ok", "openapi_index": "ok", "option_store": "error"},
		},
		{
			name: "session store has room",
			checks: ReadinessChecks{
				DefinitionsLoaded: loaded,
				OpenAPILoaded:     loaded,
				SessionCapacity:   func() (int, int) { return 3, 10 },
			},
			wantCode:   http.StatusOK,
			wantStatus: map[string]string{"definitions": "ok", "openapi_index": "ok", "filter_sessions": "ok"},
		},
		{
			name: "unbounded session store",
			checks: ReadinessChecks{
				DefinitionsLoaded: loaded,
				OpenAPILoaded:     loaded,
				SessionCapacity:   func() (int, int) { return 500, 0 },
			},
			wantCode:   http.StatusOK,
			wantStatus: map[string]string{"definitions": "ok", "openapi_index": "ok", "filter_sessions": "ok"},
		},
		{
			name: "session store full",
			checks: ReadinessChecks{
				DefinitionsLoaded: loaded,
				OpenAPILoaded:     loaded,
				SessionCapacity:   func() (int, int) { return 10, 10 },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: map[string]string{"definitions": "ok", "openapi_index": "ok", "filter_sessions": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := serveReady(t, tt.checks)
			if code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
			wantOverall := "ready"
			if tt.wantCode != http.StatusOK {
				wantOverall = "not_ready"
			}
			if resp.Status != wantOverall {
				t.Errorf("overall = %q, want %q", resp.Status, wantOverall)
			}
			if len(resp.Checks) != len(tt.wantStatus) {
				t.Errorf("checks = %v, want %d entries", resp.Checks, len(tt.wantStatus))
			}
			for name, want := range tt.wantStatus {
				got := resp.Checks[name]
				if got.Status != want {
					t.Errorf("%s = %q, want %q", name, got.Status, want)
				}
				if got.LatencyMs < 0 {
					t.Errorf("%s latency = %d, want >= 0", name, got.LatencyMs)
				}
				if want == "error" && got.Error == "" {
					t.Errorf("%s has no error message", name)
				}
			}
		})
	}
}

func TestHandleReady_sessionCapacityMessage(t *testing.T) {
	_, resp := serveReady(t, ReadinessChecks{
		DefinitionsLoaded: loaded,
		OpenAPILoaded:     loaded,
		SessionCapacity:   func() (int, int) { return 4, 4 },
	})
	if got := resp.Checks["filter_sessions"].Error; got != "4 of 4 filter sessions open" {
		t.Errorf("error = %q", got)
	}
}

func TestHandleReady_optionStoreRespectsTimeout(t *testing.T) {
	_, resp := serveReady(t, ReadinessChecks{
		DefinitionsLoaded: loaded,
		OpenAPILoaded:     loaded,
		OptionStore:       deadlineChecker{},
	})
	if resp.Checks["option_store"].Status != "ok" {
		t.Errorf("option_store = %+v, want ok", resp.Checks["option_store"])
	}
}

// deadlineChecker fails unless the check context carries a deadline.
type deadlineChecker struct{}

func (deadlineChecker) HealthCheck(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	return nil
}
