package middleware

import (
	"bytes"
	"net/http"
)

// statusWriter records the status and size of a response. When tee is set
// the body is also copied into it.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int
	tee     *bytes.Buffer
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w}
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status != 0 {
		return
	}
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if w.tee != nil {
		w.tee.Write(p)
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += n
	return n, err
}

// Status is the response status, 200 when the handler never set one
func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
