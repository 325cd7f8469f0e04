// Package auth provides request context helpers for the browser session and
// its signed-in user.
//
// This package is imported by both middleware and handler packages without
// causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/campuscircle/internal/domain"
	"github.com/DukeRupert/campuscircle/internal/session"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const sessionContextKey contextKey = "session"

// SetSession stores the browser session in the context.
func SetSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// GetSession returns the browser session, or nil if the request did not
// pass through the session middleware.
func GetSession(ctx context.Context) *session.Session {
	s, ok := ctx.Value(sessionContextKey).(*session.Session)
	if !ok {
		return nil
	}
	return s
}

// GetUser returns the signed-in user of the request's session.
//
// Returns nil if no user is signed in or the token has expired.
//
// Usage:
//
//	user := auth.GetUser(r.Context())
//	if user == nil {
//	    // Handle anonymous request
//	}
func GetUser(ctx context.Context) *domain.User {
	s := GetSession(ctx)
	if s == nil {
		return nil
	}
	return s.User()
}

// GetUserFromRequest is GetUser for the request's context.
func GetUserFromRequest(r *http.Request) *domain.User {
	return GetUser(r.Context())
}
