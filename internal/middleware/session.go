// Package middleware contains HTTP middleware for the CampusCircle web tier.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler and are composed with Stack.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/campuscircle/internal/auth"
	"github.com/DukeRupert/campuscircle/internal/handler"
	"github.com/DukeRupert/campuscircle/internal/router"
	"github.com/DukeRupert/campuscircle/internal/session"
)

// SessionMiddleware attaches the browser session to every request.
type SessionMiddleware struct {
	store  *session.Store
	logger *slog.Logger
}

// NewSessionMiddleware creates a SessionMiddleware backed by store.
func NewSessionMiddleware(store *session.Store, logger *slog.Logger) *SessionMiddleware {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SessionMiddleware{store: store, logger: logger}
}

// WithSession loads the request's session, creating one and setting its
// cookie when the request carries no live session. The session can be
// retrieved in handlers using:
//
//	s := auth.GetSession(r.Context())
func (m *SessionMiddleware) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := m.store.Load(w, r)
		next.ServeHTTP(w, r.WithContext(auth.SetSession(r.Context(), s)))
	})
}

// RequireUser requires a signed-in user. It must run after WithSession.
// Unauthenticated HTML requests are redirected to the login page; API
// requests get 401.
func (m *SessionMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			if isAPIRequest(r) {
				handler.UnauthorizedResponse(w, r, m.logger)
				return
			}
			if r.Header.Get("HX-Request") == "true" {
				w.Header().Set("HX-Redirect", router.PathLogin)
				w.WriteHeader(http.StatusOK)
				return
			}
			http.Redirect(w, r, router.PathLogin, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isAPIRequest reports whether the request expects a JSON response.
// htmx requests want HTML fragments.
func isAPIRequest(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return false
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// Stack composes middleware. The first middleware is the outermost: it runs
// first on the request and last on the response.
//
// Example:
//
//	stack := Stack(securityMw.Handler, loggingMw.Handler, sessionMw.WithSession)
//	server.Handler = stack(mux)
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
