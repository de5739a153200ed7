package middleware

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/civicmesh/civic-broker/pkg/logger"
)

// Timeout bounds request handling so that a stalled Redis or upstream call
// cannot hold a connection open forever. If the handler has not written
// anything by the deadline, a JSON 504 is returned and the handler's context
// is cancelled.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			done := make(chan struct{})
			tw := &timeoutWriter{ResponseWriter: w}
			go func() {
				next.ServeHTTP(tw, r.WithContext(ctx))
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
				if !tw.wrote.Load() {
					logger.FromContext(r.Context()).Warn("request deadline exceeded",
						"method", r.Method,
						"path", r.URL.Path,
						"timeout", timeout,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					w.Write([]byte(`{"error":"request timeout"}`))
				}
			}
		})
	}
}

// timeoutWriter records whether the handler goroutine already produced a
// response, since it may race the deadline.
type timeoutWriter struct {
	http.ResponseWriter
	wrote atomic.Bool
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.wrote.Store(true)
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.wrote.Store(true)
	return tw.ResponseWriter.Write(b)
}
