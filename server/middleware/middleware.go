package middleware

import "net/http"

// Middleware decorates the server's root handler, so it sees Gin routes and
// plain mux routes alike.
type Middleware func(http.Handler) http.Handler

// Chain nests mws so that mws[0] is outermost: Chain(a, b)(h) == a(b(h)).
func Chain(mws ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}

// isProbe reports liveness, readiness and health paths. Registries and
// orchestrators poll them, so they are neither logged, traced nor counted.
func isProbe(path string) bool {
	switch path {
	case "/health", "/alive", "/ready":
		return true
	}
	return false
}
