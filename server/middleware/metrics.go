package middleware

import (
	"net/http"
	"time"

	"github.com/kbukum/meshnode/observability"
)

// Metrics counts inbound requests and observes their latency, skipping
// probes. A nil metrics disables it.
func Metrics(service string, metrics *observability.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isProbe(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			start := time.Now()
			metrics.InboundStarted(ctx)
			sw := newStatusWriter(w)
			defer func() {
				metrics.InboundFinished(ctx, service, r.URL.Path, sw.status, time.Since(start))
			}()
			next.ServeHTTP(sw, r)
		})
	}
}
