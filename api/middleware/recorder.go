package middleware

import (
	"bytes"
	"net/http"
)

// responseRecorder tracks the status and size of a response and, when
// capture is set, keeps a copy of the body.
type responseRecorder struct {
	http.ResponseWriter
	status  int
	written int
	capture bool
	body    bytes.Buffer
}

func newResponseRecorder(w http.ResponseWriter, capture bool) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, capture: capture}
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.status != 0 {
		return
	}
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.WriteHeader(http.StatusOK)
	}
	if r.capture {
		r.body.Write(b)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += n
	return n, err
}

// Status returns the written status, defaulting to 200 when the handler
// never wrote a header.
func (r *responseRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
