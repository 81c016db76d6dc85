package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/kbukum/meshnode/logger"
)

// HeaderRequestID is read from and echoed to every request.
const HeaderRequestID = "X-Request-Id"

// maxRequestIDLen bounds a caller-supplied ID; longer ones are replaced.
const maxRequestIDLen = 128

// RequestID keeps the caller's X-Request-Id or generates a UUID, echoes it on
// the response and stores it in the request context for logging and
// propagation to downstream calls.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" || len(id) > maxRequestIDLen {
				id = uuid.NewString()
				r.Header.Set(HeaderRequestID, id)
			}
			w.Header().Set(HeaderRequestID, id)
			next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
		})
	}
}
