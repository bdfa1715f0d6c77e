package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// HealthResponse is the JSON response for the liveness endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// ReadinessResponse is the JSON response for the readiness endpoint.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult is the result of a single readiness check.
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthChecker can verify its own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ReadinessChecks lists the dependencies checked by the readiness endpoint.
type ReadinessChecks struct {
	DefinitionsLoaded func() bool
	OpenAPILoaded     func() bool

	// OptionStore is checked only when set.
	OptionStore HealthChecker
	// SessionCapacity reports open and maximum filter sessions. Checked only
	// when set. A full session store is not ready; limit 0 means unbounded.
	SessionCapacity func() (open, limit int)
}

type readinessCheck struct {
	name string
	run  func(context.Context) error
}

func (c ReadinessChecks) list() []readinessCheck {
	ps := []readinessCheck{
		{name: "definitions", run: flagCheck(c.DefinitionsLoaded, "no definitions loaded")},
		{name: "openapi_index", run: flagCheck(c.OpenAPILoaded, "no OpenAPI specs loaded")},
	}
	if c.OptionStore != nil {
		ps = append(ps, readinessCheck{name: "option_store", run: c.OptionStore.HealthCheck})
	}
	if c.SessionCapacity != nil {
		ps = append(ps, readinessCheck{name: "filter_sessions", run: func(context.Context) error {
			open, limit := c.SessionCapacity()
			if limit > 0 && open >= limit {
				return fmt.Errorf("%d of %d filter sessions open", open, limit)
			}
			return nil
		}})
	}
	return ps
}

// flagCheck fails with msg unless fn is set and reports true.
func flagCheck(fn func() bool, msg string) func(context.Context) error {
	return func(context.Context) error {
		if fn == nil || !fn() {
			return errors.New(msg)
		}
		return nil
	}
}

const checkTimeout = 2 * time.Second

// HandleHealth returns an HTTP handler for the liveness endpoint.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:  "ok",
			Version: Version,
			Commit:  Commit,
		})
	}
}

// HandleReady returns an HTTP handler for the readiness endpoint. All
// checks run concurrently, each bounded by its own timeout.
func HandleReady(checks ReadinessChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := checks.list()
		results := make([]CheckResult, len(list))

		var wg sync.WaitGroup
		for i, p := range list {
			wg.Go(func() {
				results[i] = runCheck(r.Context(), p.run)
			})
		}
		wg.Wait()

		resp := ReadinessResponse{Status: "ready", Checks: make(map[string]CheckResult, len(list))}
		httpStatus := http.StatusOK
		for i, p := range list {
			resp.Checks[p.name] = results[i]
			if results[i].Status != "ok" {
				resp.Status = "not_ready"
				httpStatus = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(httpStatus)
		json.NewEncoder(w).Encode(resp)
	}
}

func runCheck(parent context.Context, run func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(parent, checkTimeout)
	defer cancel()

	start := time.Now()
	err := run(ctx)
	result := CheckResult{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		result.Status = "error"
		result.Error = err.Error()
	}
	return result
}
