package util

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// LogHandler provides middleware that logs all requests and response codes
// using logrus.
func LogHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rwi := &rwInterceptor{ResponseWriter: w}
		next.ServeHTTP(rwi, r)

		entry := log.WithFields(log.Fields{
			"status":   rwi.statusCode,
			"duration": time.Since(start),
		})
		switch code := rwi.statusCode; {
		case code >= 500:
			entry.Errorf("%s %s", r.Method, r.URL.Path)
		case code >= 400:
			entry.Warnf("%s %s", r.Method, r.URL.Path)
		default:
			entry.Debugf("%s %s", r.Method, r.URL.Path)
		}
	})
}

type rwInterceptor struct {
	http.ResponseWriter
	statusCode int
}

func (rwi *rwInterceptor) WriteHeader(code int) {
	rwi.statusCode = code
	rwi.ResponseWriter.WriteHeader(code)
}

func (rwi *rwInterceptor) Write(b []byte) (int, error) {
	if rwi.statusCode == 0 {
		rwi.WriteHeader(http.StatusOK)
	}
	return rwi.ResponseWriter.Write(b)
}

// Flush lets event streams pass through the interceptor.
func (rwi *rwInterceptor) Flush() {
	if f, ok := rwi.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
