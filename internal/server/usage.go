package server

import (
	"net/http"
	"strconv"

	"github.com/mukti-ai/studycore/internal/domain"
)

// UsageReporter exposes the Groq usage counter.
type UsageReporter interface {
	Snapshot() domain.UsageSnapshot
}

// UsageHeadersMiddleware adds the Groq usage counter to every response as
// x-groq-usage-* headers. The snapshot is taken when the handler first
// writes, so it includes the tokens spent by the request itself.
func UsageHeadersMiddleware(usage UsageReporter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(&usageResponseWriter{ResponseWriter: w, usage: usage}, r)
		})
	}
}

// usageResponseWriter wraps ResponseWriter to write usage headers.
type usageResponseWriter struct {
	http.ResponseWriter
	usage        UsageReporter
	wroteHeaders bool
}

func (rw *usageResponseWriter) WriteHeader(code int) {
	rw.writeUsageHeaders()
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *usageResponseWriter) Write(b []byte) (int, error) {
	rw.writeUsageHeaders()
	return rw.ResponseWriter.Write(b)
}

func (rw *usageResponseWriter) writeUsageHeaders() {
	if rw.wroteHeaders {
		return
	}
	rw.wroteHeaders = true

	snap := rw.usage.Snapshot()
	h := rw.Header()
	h.Set("x-groq-usage-tokens", strconv.FormatInt(snap.Tokens, 10))
	h.Set("x-groq-usage-threshold", strconv.FormatInt(snap.Threshold, 10))
	h.Set("x-groq-usage-remaining", strconv.FormatInt(max(snap.Threshold-snap.Tokens, 0), 10))
}

// Flush forwards Flush to the underlying ResponseWriter if it supports http.Flusher.
func (rw *usageResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
