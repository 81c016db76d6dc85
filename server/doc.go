// Package server provides the inbound HTTP server: Gin routing mounted on a
// ServeMux, served over HTTP/1.1 and h2c, with a net/http middleware stack
// applied around every route.
//
// # Middleware
//
// server/middleware, in the order ApplyMiddleware installs it:
//
//   - RequestID: keeps or generates X-Request-Id and stores it in the context
//   - Tracing: continues W3C trace context and opens a server span
//   - RequestLogger: one log line per request, level by status
//   - Metrics: request.total, request.duration, request.active
//   - Recovery: panics become a 500 JSON error envelope
//
// # Endpoints
//
// server/endpoint:
//
//   - /health: component health aggregation, 503 when any is unhealthy
//   - /info: version and build information
//   - /alive: liveness probe
//   - /ready: readiness probe
package server
