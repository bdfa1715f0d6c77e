package observability

import "net/http"

// StatusRecorder remembers the status code and body size written through
// the wrapped ResponseWriter. The status is 200 until a handler says
// otherwise.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
	Bytes  int

	headerSent bool
}

// NewStatusRecorder wraps w. A writer that already is a StatusRecorder is
// returned as is, so stacked middleware share one record.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	if rec, ok := w.(*StatusRecorder); ok {
		return rec
	}
	return &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
}

func (r *StatusRecorder) WriteHeader(code int) {
	if !r.headerSent {
		r.Status = code
		r.headerSent = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *StatusRecorder) Write(b []byte) (int, error) {
	r.headerSent = true
	n, err := r.ResponseWriter.Write(b)
	r.Bytes += n
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *StatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
