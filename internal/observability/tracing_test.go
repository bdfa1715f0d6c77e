package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/pitabwire/backoffice/internal/config"
)

// recordSpans installs a global provider that keeps every finished span in
// memory for the duration of the test.
func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	spans := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(spans),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return spans
}

func onlySpan(t *testing.T, exp *tracetest.InMemoryExporter) tracetest.SpanStub {
	t.Helper()
	got := exp.GetSpans()
	if len(got) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(got))
	}
	return got[0]
}

func attrs(s tracetest.SpanStub) map[string]string {
	m := make(map[string]string, len(s.Attributes))
	for _, kv := range s.Attributes {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestInitTracing(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.TracingConfig
		wantErr bool
	}{
		{"disabled", config.TracingConfig{}, false},
		{"stdout", config.TracingConfig{Enabled: true, Exporter: "stdout", SamplingRate: 1}, false},
		{"unknown exporter", config.TracingConfig{Enabled: true, Exporter: "jaeger-thrift"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := InitTracing(context.Background(), tt.cfg, "backoffice", "test")
			if tt.wantErr {
				if err == nil {
					t.Fatal("InitTracing succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("InitTracing: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Errorf("shutdown: %v", err)
			}
		})
	}
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, "TraceIDRatioBased{0.1}"},
		{0.5, "TraceIDRatioBased{0.5}"},
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
	}
	for _, tt := range tests {
		desc := newSampler(tt.rate).Description()
		if !strings.HasPrefix(desc, "ParentBased{") || !strings.Contains(desc, tt.want) {
			t.Errorf("newSampler(%v) = %q, want ParentBased with %s", tt.rate, desc, tt.want)
		}
	}
}

func TestStartSpan(t *testing.T) {
	exp := recordSpans(t)

	ctx, span := StartSpan(context.Background(), "options.resolve",
		AttrCapability.String("salesUnit"),
		AttrScope.String("u1"),
	)
	if trace.SpanFromContext(ctx) != span {
		t.Error("returned context does not carry the span")
	}
	if Tracer() == nil {
		t.Error("Tracer() = nil")
	}
	span.End()

	s := onlySpan(t, exp)
	if s.Name != "options.resolve" {
		t.Errorf("name = %q", s.Name)
	}
	a := attrs(s)
	if a["backoffice.capability"] != "salesUnit" || a["backoffice.option_scope"] != "u1" {
		t.Errorf("attributes = %v", a)
	}
}

func TestEndSpanWithError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
		wantEvents bool
	}{
		{"failure", errors.New("listLeads: 503"), codes.Error, true},
		{"success", nil, codes.Unset, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := recordSpans(t)
			_, span := StartSpan(context.Background(), "backend.invoke")
			EndSpanWithError(span, tt.err)

			s := onlySpan(t, exp)
			if s.Status.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", s.Status.Code, tt.wantStatus)
			}
			if tt.err != nil && s.Status.Description != tt.err.Error() {
				t.Errorf("description = %q", s.Status.Description)
			}
			if got := len(s.Events) > 0; got != tt.wantEvents {
				t.Errorf("has events = %v, want %v", got, tt.wantEvents)
			}
		})
	}
}

func TestTraceIDFromContext(t *testing.T) {
	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Errorf("without span = %q, want empty", got)
	}

	recordSpans(t)
	ctx, span := StartSpan(context.Background(), "listing.fetch")
	defer span.End()
	if got, want := TraceIDFromContext(ctx), span.SpanContext().TraceID().String(); got != want {
		t.Errorf("TraceIDFromContext = %q, want %q", got, want)
	}
}

func TestSetRequestAttributes(t *testing.T) {
	// No active span: both calls are no-ops.
	SetRequestAttributes(context.Background(), "acme", "u-1")
	RecordCacheLookup(context.Background(), false)

	exp := recordSpans(t)
	ctx, span := StartSpan(context.Background(), "request")
	SetRequestAttributes(ctx, "acme", "")
	RecordCacheLookup(ctx, true)
	span.End()

	a := attrs(onlySpan(t, exp))
	if a["backoffice.tenant_id"] != "acme" {
		t.Errorf("tenant_id = %q", a["backoffice.tenant_id"])
	}
	if _, ok := a["backoffice.subject_id"]; ok {
		t.Error("empty subject recorded")
	}
	if a["backoffice.cache_hit"] != "true" {
		t.Errorf("cache_hit = %q", a["backoffice.cache_hit"])
	}
}

func serveTraced(h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	TracingMiddleware(h).ServeHTTP(rec, req)
	return rec
}

func TestTracingMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		status     int
		wantName   string
		wantError  bool
		wantStatus string
	}{
		{"descriptor", http.MethodGet, "/ui/views/leads.open", http.StatusOK, "GET /ui/views/leads.open", false, "200"},
		{"session open", http.MethodPost, "/ui/views/leads.open/sessions", http.StatusCreated, "POST /ui/views/leads.open/sessions", false, "201"},
		{"expired session", http.MethodPost, "/ui/sessions/s-1/events", http.StatusGone, "POST /ui/sessions/s-1/events", false, "410"},
		{"handler failure", http.MethodGet, "/ui/views/leads.open/data", http.StatusInternalServerError, "GET /ui/views/leads.open/data", true, "500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := recordSpans(t)
			rec := serveTraced(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}), tt.method, tt.target, nil)

			s := onlySpan(t, exp)
			if s.Name != tt.wantName {
				t.Errorf("name = %q, want %q", s.Name, tt.wantName)
			}
			if s.SpanKind != trace.SpanKindServer {
				t.Errorf("kind = %v, want server", s.SpanKind)
			}
			if (s.Status.Code == codes.Error) != tt.wantError {
				t.Errorf("status = %v, want error %v", s.Status.Code, tt.wantError)
			}
			a := attrs(s)
			if a["http.request.method"] != tt.method || a["url.path"] != tt.target {
				t.Errorf("request attributes = %v", a)
			}
			if a["http.response.status_code"] != tt.wantStatus {
				t.Errorf("status attribute = %q, want %s", a["http.response.status_code"], tt.wantStatus)
			}
			if rec.Header().Get("Traceparent") == "" {
				t.Error("response carries no Traceparent")
			}
		})
	}
}

func TestTracingMiddleware_continuesIncomingTrace(t *testing.T) {
	exp := recordSpans(t)
	const (
		traceID  = "4bf92f3577b34da6a3ce929d0e0e4736"
		parentID = "00f067aa0ba902b7"
	)
	serveTraced(http.NotFoundHandler(), http.MethodGet, "/ui/options/salesUnit",
		http.Header{"Traceparent": {"00-" + traceID + "-" + parentID + "-01"}})

	s := onlySpan(t, exp)
	if got := s.SpanContext.TraceID().String(); got != traceID {
		t.Errorf("trace id = %q, want %q", got, traceID)
	}
	if got := s.Parent.SpanID().String(); got != parentID {
		t.Errorf("parent = %q, want %q", got, parentID)
	}
}

func TestTracingMiddleware_namesSpanAfterRoute(t *testing.T) {
	exp := recordSpans(t)

	r := chi.NewRouter()
	r.Use(TracingMiddleware)
	r.Get("/ui/sessions/{sessionId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ui/sessions/abc", nil))

	s := onlySpan(t, exp)
	if s.Name != "GET /ui/sessions/{sessionId}" {
		t.Errorf("name = %q, want the route pattern", s.Name)
	}
	if got := attrs(s)["http.route"]; got != "/ui/sessions/{sessionId}" {
		t.Errorf("http.route = %q", got)
	}
}

func TestInjectTraceHeaders(t *testing.T) {
	recordSpans(t)
	ctx, span := StartSpan(context.Background(), "backend.invoke")
	defer span.End()

	h := http.Header{}
	InjectTraceHeaders(ctx, h)
	if !strings.Contains(h.Get("Traceparent"), span.SpanContext().TraceID().String()) {
		t.Errorf("Traceparent = %q", h.Get("Traceparent"))
	}
}

func TestSpanHierarchy_filterEvent(t *testing.T) {
	exp := recordSpans(t)

	ctx, root := StartSpan(context.Background(), "POST /ui/sessions/{sessionId}/events")
	ctx, apply := StartSpan(ctx, "listing.session.apply",
		AttrSessionID.String("abc"),
		AttrViewID.String("leads.open"),
	)
	optCtx, opt := StartSpan(ctx, "options.resolve",
		AttrCapability.String("assignedTo"),
		AttrSourceID.String("employees"),
	)
	RecordCacheLookup(optCtx, false)
	opt.End()
	fetchCtx, fetch := StartSpan(ctx, "listing.fetch")
	_, invoke := StartSpan(fetchCtx, "backend.invoke", AttrServiceID.String("leads-svc"))
	invoke.End()
	fetch.End()
	apply.End()
	root.End()

	spans := exp.GetSpans()
	if len(spans) != 5 {
		t.Fatalf("recorded %d spans, want 5", len(spans))
	}
	byName := make(map[string]tracetest.SpanStub, len(spans))
	for _, s := range spans {
		if s.SpanContext.TraceID() != spans[0].SpanContext.TraceID() {
			t.Errorf("%s is on another trace", s.Name)
		}
		byName[s.Name] = s
	}
	for child, parent := range map[string]string{
		"listing.session.apply": "POST /ui/sessions/{sessionId}/events",
		"options.resolve":       "listing.session.apply",
		"listing.fetch":         "listing.session.apply",
		"backend.invoke":        "listing.fetch",
	} {
		if byName[child].Parent.SpanID() != byName[parent].SpanContext.SpanID() {
			t.Errorf("%s is not a child of %s", child, parent)
		}
	}
}
