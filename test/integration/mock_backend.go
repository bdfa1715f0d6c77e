package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

// MockBackend plays a backend service. Each operation answers from a
// script of replies; the last reply repeats once the script runs out, and
// an operation without a script returns an empty page.
type MockBackend struct {
	serviceID string
	server    *httptest.Server

	mu      sync.Mutex
	scripts map[string]*script
	calls   map[string][]*RecordedRequest
}

// RecordedRequest is one call the mock received.
type RecordedRequest struct {
	Method  string
	Path    string
	Query   url.Values
	Headers http.Header
}

func (r *RecordedRequest) QueryParam(name string) string {
	return r.Query.Get(name)
}

type reply struct {
	status int
	body   any
	delay  time.Duration
	drop   bool
}

type script struct {
	replies []reply
	next    int
}

func (s *script) pop() reply {
	r := s.replies[min(s.next, len(s.replies)-1)]
	if s.next < len(s.replies) {
		s.next++
	}
	return r
}

// operationRoute is where an operation is served.
type operationRoute struct {
	method      string
	pathPattern string
}

func newMockBackend(t *testing.T, serviceID string, routes map[string]operationRoute) *MockBackend {
	t.Helper()
	mb := &MockBackend{
		serviceID: serviceID,
		scripts:   map[string]*script{},
		calls:     map[string][]*RecordedRequest{},
	}

	mux := http.NewServeMux()
	for opID, route := range routes {
		mux.Handle(route.method+" "+route.pathPattern, mb.serve(opID))
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorFixture("NOT_FOUND", serviceID+" has no route for "+r.Method+" "+r.URL.Path))
	})

	mb.server = httptest.NewServer(mux)
	t.Cleanup(mb.server.Close)
	return mb
}

func (mb *MockBackend) URL() string {
	return mb.server.URL
}

// OperationMock scripts the replies of one operation.
type OperationMock struct {
	mb   *MockBackend
	opID string
}

func (mb *MockBackend) OnOperation(operationID string) *OperationMock {
	return &OperationMock{mb: mb, opID: operationID}
}

func (om *OperationMock) then(r reply) *OperationMock {
	om.mb.mu.Lock()
	defer om.mb.mu.Unlock()
	s := om.mb.scripts[om.opID]
	if s == nil {
		s = &script{}
		om.mb.scripts[om.opID] = s
	}
	s.replies = append(s.replies, r)
	return om
}

func (om *OperationMock) RespondWith(status int, body any) *OperationMock {
	return om.then(reply{status: status, body: body})
}

// RespondWithError replies with a backend error envelope.
func (om *OperationMock) RespondWithError(status int, code, message string) *OperationMock {
	return om.then(reply{status: status, body: ErrorFixture(code, message)})
}

// RespondWithDelay holds the reply back for delay, or until the caller
// gives up.
func (om *OperationMock) RespondWithDelay(delay time.Duration, status int, body any) *OperationMock {
	return om.then(reply{status: status, body: body, delay: delay})
}

// RespondWithConnectionError closes the connection without answering.
func (om *OperationMock) RespondWithConnectionError() *OperationMock {
	return om.then(reply{drop: true})
}

func (mb *MockBackend) serve(opID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mb.mu.Lock()
		mb.calls[opID] = append(mb.calls[opID], &RecordedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.Query(),
			Headers: r.Header.Clone(),
		})
		rep := reply{status: http.StatusOK, body: map[string]any{"data": []any{}}}
		if s := mb.scripts[opID]; s != nil && len(s.replies) > 0 {
			rep = s.pop()
		}
		mb.mu.Unlock()

		switch {
		case rep.drop:
			if conn, _, err := http.NewResponseController(w).Hijack(); err == nil {
				conn.Close()
			}
			return
		case rep.delay > 0:
			select {
			case <-time.After(rep.delay):
			case <-r.Context().Done():
				return
			}
		}
		writeJSON(w, rep.status, rep.body)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// CallCount is the number of requests operationID received.
func (mb *MockBackend) CallCount(operationID string) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.calls[operationID])
}

func (mb *MockBackend) AssertCalled(t *testing.T, operationID string, want int) {
	t.Helper()
	if got := mb.CallCount(operationID); got != want {
		t.Errorf("%s: %s called %d times, want %d", mb.serviceID, operationID, got, want)
	}
}

func (mb *MockBackend) AssertNotCalled(t *testing.T, operationID string) {
	t.Helper()
	mb.AssertCalled(t, operationID, 0)
}

// LastRequest returns the most recent request for operationID, or nil.
func (mb *MockBackend) LastRequest(operationID string) *RecordedRequest {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if reqs := mb.calls[operationID]; len(reqs) > 0 {
		return reqs[len(reqs)-1]
	}
	return nil
}

// ResetOperation forgets the script and the calls of operationID.
func (mb *MockBackend) ResetOperation(operationID string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	delete(mb.scripts, operationID)
	delete(mb.calls, operationID)
}
