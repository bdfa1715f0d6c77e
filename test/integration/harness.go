// Package integration provides a reusable test harness for end-to-end
// integration testing of the backoffice server. It starts a full HTTP server
// with mock backend services and an in-memory option store.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/pitabwire/backoffice/internal/config"
	"github.com/pitabwire/backoffice/internal/definition"
	"github.com/pitabwire/backoffice/internal/invoker"
	"github.com/pitabwire/backoffice/internal/listing"
	"github.com/pitabwire/backoffice/internal/observability"
	"github.com/pitabwire/backoffice/internal/openapi"
	"github.com/pitabwire/backoffice/internal/options"
	"github.com/pitabwire/backoffice/internal/transport"
	"github.com/pitabwire/backoffice/model"
)

const leadsService = "leads-svc"

// TestHarness encapsulates a fully wired server with mock backends for
// integration testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server

	// Internal components exposed for advanced test scenarios.
	Registry    *definition.Registry
	OAIndex     *openapi.Index
	Invokers    *invoker.Registry
	OptionStore *options.MemoryStore
	Sessions    *listing.Sessions

	backend *MockBackend
	cfg     *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	handlerTimeout time.Duration
	fetchTimeout   time.Duration
	breaker        config.CircuitBreakerConfig
	retry          config.RetryConfig
	sessions       config.SessionsConfig
	sdkHandlers    []invoker.SDKHandler
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithFetchTimeout bounds each list fetch, including retries.
func WithFetchTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.fetchTimeout = d
	}
}

// WithCircuitBreaker sets the circuit breaker of the leads service.
func WithCircuitBreaker(cb config.CircuitBreakerConfig) HarnessOption {
	return func(c *harnessConfig) {
		c.breaker = cb
	}
}

// WithRetry sets the retry policy of the leads service.
func WithRetry(r config.RetryConfig) HarnessOption {
	return func(c *harnessConfig) {
		c.retry = r
	}
}

// WithSessions sets the filter session configuration.
func WithSessions(s config.SessionsConfig) HarnessOption {
	return func(c *harnessConfig) {
		c.sessions = s
	}
}

// WithSDKHandler registers an in-process handler for sdk option sources.
func WithSDKHandler(handler invoker.SDKHandler) HarnessOption {
	return func(c *harnessConfig) {
		c.sdkHandlers = append(c.sdkHandlers, handler)
	}
}

// NewTestHarness creates and starts a full server instance. The server is
// automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		handlerTimeout: 10 * time.Second,
		fetchTimeout:   5 * time.Second,
		breaker: config.CircuitBreakerConfig{
			FailureThreshold: 100,
			SuccessThreshold: 1,
			Timeout:          30 * time.Second,
		},
		sessions: config.SessionsConfig{TTL: time.Minute, MaxSessions: 100},
	}
	for _, opt := range opts {
		opt(hc)
	}

	testdata := testdataDir()
	h := &TestHarness{t: t}

	// The backend starts first so the index can point at its URL.
	specPath := filepath.Join(testdata, "specs", "leads-svc.yaml")
	h.OAIndex = openapi.NewIndex()
	if err := h.OAIndex.Load([]openapi.SpecSource{{ServiceID: leadsService, SpecPath: specPath}}); err != nil {
		t.Fatalf("load OpenAPI spec: %v", err)
	}
	h.backend = newMockBackend(t, leadsService, operationRoutes(h.OAIndex, leadsService))
	h.OAIndex = openapi.NewIndex()
	if err := h.OAIndex.Load([]openapi.SpecSource{{ServiceID: leadsService, BaseURL: h.backend.URL(), SpecPath: specPath}}); err != nil {
		t.Fatalf("load OpenAPI spec: %v", err)
	}

	defs, err := definition.NewLoader().LoadAll([]string{filepath.Join(testdata, "definitions")})
	if err != nil {
		t.Fatalf("load definitions: %v", err)
	}
	if verrs := definition.NewValidator(listing.RendererNames(), true).Validate(defs, h.OAIndex); len(verrs) > 0 {
		t.Fatalf("definitions invalid: %v", verrs)
	}
	h.Registry = definition.NewRegistry(defs)

	cfg := config.Defaults()
	cfg.Server.HandlerTimeout = hc.handlerTimeout
	cfg.Services = map[string]config.ServiceConfig{
		leadsService: {
			BaseURL:        h.backend.URL(),
			Timeout:        5 * time.Second,
			CircuitBreaker: hc.breaker,
			Retry:          hc.retry,
		},
	}
	cfg.Sessions = hc.sessions
	cfg.Listing.FetchTimeout = hc.fetchTimeout
	h.cfg = cfg

	sdk := invoker.NewSDKHandlerRegistry()
	for _, handler := range hc.sdkHandlers {
		sdk.Register(handler)
	}
	h.Invokers = invoker.NewRegistry()
	h.Invokers.Register(invoker.NewOpenAPIOperationInvoker(h.OAIndex, cfg.Services, nil, nil))
	h.Invokers.Register(invoker.NewSDKOperationInvoker(sdk))

	h.OptionStore = options.NewMemoryStore(cfg.Options.Cache.MaxEntries)
	sources := options.NewLookupSources(h.Registry.AllOptionSources(), options.LookupConfig{
		Invoker:    h.Invokers,
		Store:      h.OptionStore,
		DefaultTTL: cfg.Options.Cache.TTL,
	})

	provider := listing.NewProvider(listing.Deps{
		Definitions: h.Registry,
		Invoker:     h.Invokers,
		Sources:     sources,
		Services:    cfg.Services,
		Listing:     cfg.Listing,
	})
	h.Sessions = listing.NewSessions(provider, cfg.Sessions, nil, nil)

	router := transport.NewRouter(transport.Dependencies{
		Config:   cfg,
		Views:    provider,
		Sessions: h.Sessions,
		Readiness: observability.ReadinessChecks{
			DefinitionsLoaded: func() bool { return len(h.Registry.ViewIDs()) > 0 },
			OpenAPILoaded:     func() bool { return len(h.OAIndex.AllOperationIDs(leadsService)) > 0 },
			OptionStore:       h.OptionStore,
			SessionCapacity:   h.Sessions.Capacity,
		},
	})

	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Sessions.Run(ctx)

	return h
}

// operationRoutes lists the method and path of every indexed operation.
func operationRoutes(idx *openapi.Index, serviceID string) map[string]operationRoute {
	routes := make(map[string]operationRoute)
	for _, opID := range idx.AllOperationIDs(serviceID) {
		op, _ := idx.GetOperation(serviceID, opID)
		routes[opID] = operationRoute{method: op.Method, pathPattern: op.PathTemplate}
	}
	return routes
}

// BaseURL returns the base URL of the test server.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// Backend returns the mock leads service.
func (h *TestHarness) Backend() *MockBackend {
	return h.backend
}

// GET sends a GET request to the test server.
func (h *TestHarness) GET(path string) *http.Response {
	return h.doRequest("GET", path, nil, nil)
}

// GETWithHeaders sends a GET request with additional headers.
func (h *TestHarness) GETWithHeaders(path string, headers map[string]string) *http.Response {
	return h.doRequest("GET", path, nil, headers)
}

// POST sends a POST request with a JSON body to the test server.
func (h *TestHarness) POST(path string, body any) *http.Response {
	return h.doRequest("POST", path, body, nil)
}

// DELETE sends a DELETE request to the test server.
func (h *TestHarness) DELETE(path string) *http.Response {
	return h.doRequest("DELETE", path, nil, nil)
}

func (h *TestHarness) doRequest(method, path string, body any, headers map[string]string) *http.Response {
	h.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequest(method, h.server.URL+path, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Tenant-Id", "acme-corp")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// OpenSession opens a filter session on a view and returns its response.
func (h *TestHarness) OpenSession(t *testing.T, viewID string) model.SessionResponse {
	t.Helper()
	var resp model.SessionResponse
	h.AssertJSON(t, h.POST("/ui/views/"+viewID+"/sessions", nil), http.StatusCreated, &resp)
	return resp
}

// SendEvent posts a filter event to a session.
func (h *TestHarness) SendEvent(t *testing.T, sessionID string, event map[string]any) model.SessionResponse {
	t.Helper()
	var resp model.SessionResponse
	h.AssertJSON(t, h.POST("/ui/sessions/"+sessionID+"/events", event), http.StatusOK, &resp)
	return resp
}

// --- Helpers ---

// testdataDir returns the absolute path to the testdata directory.
func testdataDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata")
}

// LeadFixture returns a lead as the leads service lists it.
func LeadFixture(id, name, status string, amount float64) map[string]any {
	return map[string]any{
		"id":        id,
		"lead_name": name,
		"status":    status,
		"createdAt": "2024-03-01",
		"amount":    amount,
		"assignedTo": map[string]any{
			"id":        "emp-1",
			"firstName": "Ada",
			"lastName":  "Lovelace",
			"email":     "ada@acme.example.com",
		},
	}
}

// LeadListFixture wraps leads in the list envelope of the leads service.
func LeadListFixture(leads []map[string]any, total int) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"items": leads,
			"total": total,
		},
	}
}

// ErrorFixture returns a backend error body.
func ErrorFixture(code, message string) map[string]any {
	return map[string]any{
		"code":    code,
		"message": message,
	}
}

// FormatJSON pretty-prints v for test failure messages.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func assertEqual(t *testing.T, got, want any, name string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}
