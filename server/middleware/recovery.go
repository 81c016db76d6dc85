package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "github.com/kbukum/meshnode/errors"
	"github.com/kbukum/meshnode/logger"
)

// Recovery turns a panic in a handler into a logged 500 with the standard
// error envelope. Place it inside RequestID so the log line carries the ID.
func Recovery(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				log.WithContext(r.Context()).Error("Panic recovered", logger.Fields(
					logger.FieldError, err.Error(),
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				))
				writeJSON(w, http.StatusInternalServerError, apperrors.Internal(err).ToResponse())
			}()
			next.ServeHTTP(w, r)
		})
	}
}
