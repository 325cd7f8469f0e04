// Package router records client-side navigation requested while handling an
// event. The HTTP handler turns a recorded target into a redirect.
package router

import (
	"context"
	"strings"
	"sync"
)

// Navigation targets used by the pages.
const (
	PathHome     = "/"
	PathLogin    = "/login"
	PathRegister = "/register"
	PathAdmin    = "/admin"
	PathListings = "/listings"
	PathNotFound = "/404"
)

// Navigator remembers the most recent navigation request. Only local paths
// are accepted; anything else is recorded as the home page.
type Navigator struct {
	mu     sync.Mutex
	target string
}

// Navigate requests a move to path.
func (n *Navigator) Navigate(path string) {
	if !IsLocalPath(path) {
		path = PathHome
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.target = path
}

// Take returns the pending target and clears it.
func (n *Navigator) Take() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	target := n.target
	n.target = ""
	return target, target != ""
}

// Pending returns the pending target without clearing it.
func (n *Navigator) Pending() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target
}

type navigatorKey struct{}

// WithNavigator returns a context carrying a fresh Navigator, so that
// navigation requested while handling one request is answered by that
// request alone.
func WithNavigator(ctx context.Context) (context.Context, *Navigator) {
	n := &Navigator{}
	return context.WithValue(ctx, navigatorKey{}, n), n
}

// FromContext returns the Navigator carried by ctx, if any.
func FromContext(ctx context.Context) (*Navigator, bool) {
	if ctx == nil {
		return nil, false
	}
	n, ok := ctx.Value(navigatorKey{}).(*Navigator)
	return n, ok
}

// IsLocalPath reports whether path is a same-origin absolute path.
// Protocol-relative and backslash-prefixed paths are rejected because
// browsers treat them as other hosts.
func IsLocalPath(path string) bool {
	if path == "" || path[0] != '/' {
		return false
	}
	if strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return false
	}
	return !strings.ContainsAny(path, "\r\n")
}
