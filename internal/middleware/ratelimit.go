package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitMessage is shown to clients that exceeded a limit.
const RateLimitMessage = "Too many attempts. Please wait a moment and try again."

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimiter counts requests per key in fixed windows.
type RateLimiter struct {
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a rate limiter allowing maxAttempts per window.
// Expired entries are removed by Run.
func NewRateLimiter(maxAttempts int, window time.Duration, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
		now:         time.Now,
		entries:     make(map[string]*rateLimitEntry),
	}
}

// Allow reports whether a request from key is within the limit, and counts it.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, exists := rl.entries[key]
	if !exists || now.Sub(entry.windowStart) >= rl.window {
		rl.entries[key] = &rateLimitEntry{count: 1, windowStart: now}
		return true
	}
	if entry.count < rl.maxAttempts {
		entry.count++
		return true
	}
	return false
}

// Reset clears the count for key.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, key)
}

// TimeUntilReset returns how long until the window for key ends.
func (rl *RateLimiter) TimeUntilReset(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.entries[key]
	if !exists {
		return 0
	}
	elapsed := rl.now().Sub(entry.windowStart)
	if elapsed >= rl.window {
		return 0
	}
	return rl.window - elapsed
}

// Prune removes entries whose window has ended and returns how many were removed.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, entry := range rl.entries {
		if now.Sub(entry.windowStart) >= rl.window {
			delete(rl.entries, key)
			removed++
		}
	}
	return removed
}

// Run prunes expired entries once per window until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Prune(); n > 0 {
				rl.logger.Debug("rate limit entries pruned", "count", n)
			}
		}
	}
}

// =============================================================================
// Rate Limit Middleware
// =============================================================================

// RateLimitMiddleware wraps a rate limiter for use as HTTP middleware.
type RateLimitMiddleware struct {
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware.
func NewRateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) *RateLimitMiddleware {
	if logger == nil {
		logger = limiter.logger
	}
	return &RateLimitMiddleware{limiter: limiter, logger: logger}
}

// Limit returns middleware that rejects requests over the limit, keyed by
// client IP. htmx requests get the message as an out-of-band toast and
// leave the form in place.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)
		if m.limiter.Allow(clientIP) {
			next.ServeHTTP(w, r)
			return
		}

		m.logger.Warn("rate limit exceeded",
			"ip", clientIP,
			"path", r.URL.Path,
			"method", r.Method,
		)

		retryAfter := int(math.Ceil(m.limiter.TimeUntilReset(clientIP).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

		switch {
		case r.Header.Get("HX-Request") == "true":
			// htmx does not swap 4xx bodies. Answer 200 with only the OOB toast.
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("HX-Reswap", "none")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`<div hx-swap-oob="beforeend:#toast-container"><div class="toast pointer-events-auto w-full max-w-sm rounded-lg border-l-4 border-yellow-500 bg-white p-4 text-yellow-800 shadow-lg" role="alert" data-type="warning"><p class="text-sm">` + RateLimitMessage + `</p></div></div>`))
		case isAPIRequest(r):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]map[string]string{
				"error": {"code": "rate_limit", "message": RateLimitMessage},
			})
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Too Many Requests</title></head>
<body>
<h1>Too Many Requests</h1>
<p>` + RateLimitMessage + `</p>
</body>
</html>`))
		}
	})
}

// =============================================================================
// Auth Rate Limiter
// =============================================================================

// AuthRateLimits configures the limits of the sign-in endpoints.
type AuthRateLimits struct {
	Login          int
	LoginWindow    time.Duration
	Register       int
	RegisterWindow time.Duration
}

// DefaultAuthRateLimits allows 5 logins per 15 minutes and 3 registrations per hour.
var DefaultAuthRateLimits = AuthRateLimits{
	Login:          5,
	LoginWindow:    15 * time.Minute,
	Register:       3,
	RegisterWindow: time.Hour,
}

// AuthRateLimiter limits login and registration submissions separately.
type AuthRateLimiter struct {
	login    *RateLimiter
	register *RateLimiter
	logger   *slog.Logger
}

// NewAuthRateLimiter creates the sign-in limiters. Zero fields take the defaults.
func NewAuthRateLimiter(limits AuthRateLimits, logger *slog.Logger) *AuthRateLimiter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if limits.Login <= 0 {
		limits.Login = DefaultAuthRateLimits.Login
	}
	if limits.LoginWindow <= 0 {
		limits.LoginWindow = DefaultAuthRateLimits.LoginWindow
	}
	if limits.Register <= 0 {
		limits.Register = DefaultAuthRateLimits.Register
	}
	if limits.RegisterWindow <= 0 {
		limits.RegisterWindow = DefaultAuthRateLimits.RegisterWindow
	}
	return &AuthRateLimiter{
		login:    NewRateLimiter(limits.Login, limits.LoginWindow, logger),
		register: NewRateLimiter(limits.Register, limits.RegisterWindow, logger),
		logger:   logger,
	}
}

// LimitLogin returns middleware for rate limiting login attempts.
func (a *AuthRateLimiter) LimitLogin(next http.Handler) http.Handler {
	return NewRateLimitMiddleware(a.login, a.logger).Limit(next)
}

// LimitRegister returns middleware for rate limiting registration attempts.
func (a *AuthRateLimiter) LimitRegister(next http.Handler) http.Handler {
	return NewRateLimitMiddleware(a.register, a.logger).Limit(next)
}

// Run prunes both limiters until ctx is done.
func (a *AuthRateLimiter) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, rl := range []*RateLimiter{a.login, a.register} {
		wg.Add(1)
		go func(rl *RateLimiter) {
			defer wg.Done()
			rl.Run(ctx)
		}(rl)
	}
	wg.Wait()
}

// =============================================================================
// Helpers
// =============================================================================

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For is "client, proxy1, proxy2"
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if clientIP := strings.TrimSpace(strings.Split(xff, ",")[0]); clientIP != "" {
			return clientIP
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
