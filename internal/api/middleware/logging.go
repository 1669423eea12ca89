package middleware

import (
	"net/http"
	"time"

	"github.com/book-expert/logger"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogging logs one line per request with method, path, status and
// duration.
func RequestLogging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			log.Info("%s %s -> %d (%s)", r.Method, r.URL.Path, wrapped.Status(), time.Since(start))
		})
	}
}
