// Package session keeps the per-browser state of the web tier: the mounted
// page instances, queued notifications, pending navigation and the backend
// auth token. Sessions live in memory only and are swept when idle.
package session

const (
	// CookieName is the name of the cookie that stores the session ID.
	CookieName = "campuscircle_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// CookieMaxAge bounds the browser-side lifetime of the cookie (1 day).
	// Idle sessions are dropped server-side much sooner.
	CookieMaxAge = 24 * 60 * 60
)
