package middleware

import (
	"crypto/subtle"
	"net/http"
)

// MetricsAuthMiddleware guards the Prometheus endpoint with basic auth.
type MetricsAuthMiddleware struct {
	username []byte
	password []byte
}

// NewMetricsAuthMiddleware creates the metrics guard. Authentication is
// enabled only when both username and password are set.
func NewMetricsAuthMiddleware(username, password string) *MetricsAuthMiddleware {
	if username == "" || password == "" {
		return &MetricsAuthMiddleware{}
	}
	return &MetricsAuthMiddleware{username: []byte(username), password: []byte(password)}
}

// Enabled reports whether credentials are required.
func (m *MetricsAuthMiddleware) Enabled() bool {
	return len(m.username) > 0
}

// Handler returns middleware that requires basic authentication.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	if !m.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		// Both comparisons always run.
		userMatch := subtle.ConstantTimeCompare([]byte(user), m.username)
		passMatch := subtle.ConstantTimeCompare([]byte(pass), m.password)
		if !ok || userMatch&passMatch != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
