package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Logging returns a middleware that logs HTTP requests. Requests for
// skipped paths are logged at Debug.
func Logging(logger *logrus.Logger, skipPaths ...string) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := GetStartTime(r.Context())
			if start.IsZero() {
				start = time.Now()
			}

			// Create response writer wrapper to capture status code
			wrapped := &responseWriterWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Process request
			next.ServeHTTP(wrapped, r)

			entry := logger.WithFields(logrus.Fields{
				"request_id": GetRequestID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     wrapped.statusCode,
				"bytes":      wrapped.bytes,
				"duration":   time.Since(start),
				"remote_ip":  r.RemoteAddr,
				"user_agent": r.UserAgent(),
			})

			switch {
			case skip[r.URL.Path]:
				entry.Debug("HTTP request")
			case wrapped.statusCode >= http.StatusInternalServerError:
				entry.Error("HTTP request")
			default:
				entry.Info("HTTP request")
			}
		})
	}
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
// and response size
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode  int
	bytes       int
	wroteHeader bool
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
