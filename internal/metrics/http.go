package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/campuscircle/internal/router"
)

// knownRoutes are recorded under their own path. Anything else is "other"
// so that scanners probing random URLs cannot grow the label set.
var knownRoutes = map[string]bool{
	router.PathHome:     true,
	router.PathLogin:    true,
	router.PathRegister: true,
	router.PathAdmin:    true,
	router.PathListings: true,
	router.PathNotFound: true,
	"/logout":           true,
	"/health":           true,
}

// statusRecorder captures the status code written by the next handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wrote {
		rw.status = code
		rw.wrote = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wrote = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// routeLabel maps a request path onto a bounded set of labels.
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/users/") {
		return "/users/{id}"
	}
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// Middleware records HTTP request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics endpoint to avoid recursion
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := routeLabel(r.URL.Path)
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
