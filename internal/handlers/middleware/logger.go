package middleware

import (
	"net/http"
	"time"

	"github.com/nkiryanov/payledger/internal/logger"
)

// Polled by infrastructure; successful requests are logged at debug level only
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	size, err := w.ResponseWriter.Write(p)
	w.size += size
	return size, err
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.status = statusCode
}

// Choose log func by response status: server errors are errors, client errors are warnings
func levelFor(l logger.Logger, path string, status int) func(msg string, args ...any) {
	switch {
	case status >= http.StatusInternalServerError:
		return l.Error
	case status >= http.StatusBadRequest:
		return l.Warn
	case quietPaths[path]:
		return l.Debug
	default:
		return l.Info
	}
}

func LoggerMiddleware(l logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			levelFor(l, r.URL.Path, rec.status)(
				"HTTP request served",
				"method", r.Method,
				"uri", r.RequestURI,
				"status", rec.status,
				"size", rec.size,
				"duration", time.Since(start),
			)
		})
	}
}
