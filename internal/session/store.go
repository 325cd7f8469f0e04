package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/DukeRupert/campuscircle/internal/loading"
)

// DefaultIdleTimeout is used when NewStore is given a non-positive timeout.
const DefaultIdleTimeout = 30 * time.Minute

// StoreConfig holds the settings of a Store.
type StoreConfig struct {
	IdleTimeout time.Duration
	Secure      bool // set the Secure flag on cookies

	// Optional.
	Sessions prometheus.Gauge // number of live sessions
	InFlight prometheus.Gauge // submissions waiting on the backend
	Logger   *slog.Logger
	Now      func() time.Time
}

// Store holds sessions in memory, keyed by the random ID in the session cookie.
type Store struct {
	idle     time.Duration
	secure   bool
	sessions prometheus.Gauge
	inFlight prometheus.Gauge
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	byID map[string]*Session
}

// NewStore creates an empty store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		idle:     cfg.IdleTimeout,
		secure:   cfg.Secure,
		sessions: cfg.Sessions,
		inFlight: cfg.InFlight,
		logger:   cfg.Logger,
		now:      cfg.Now,
		byID:     make(map[string]*Session),
	}
}

// Create starts a new session.
func (st *Store) Create() *Session {
	s := newSession(uuid.NewString(), loading.New(st.inFlight), st.now)
	st.mu.Lock()
	st.byID[s.ID] = s
	n := len(st.byID)
	st.mu.Unlock()
	st.report(n)
	return s
}

// Get returns a live session and marks it as used.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.byID[id]
	st.mu.Unlock()
	if !ok || st.expired(s) {
		return nil, false
	}
	s.touch()
	return s, true
}

// Load returns the request's session, creating one and setting its cookie
// when the request has none or it is no longer live.
func (st *Store) Load(w http.ResponseWriter, r *http.Request) *Session {
	if cookie, err := r.Cookie(CookieName); err == nil {
		if s, ok := st.Get(cookie.Value); ok {
			return s
		}
	}
	s := st.Create()
	SetCookie(w, s.ID, st.secure)
	return s
}

// Delete drops a session and releases its pages.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	s, ok := st.byID[id]
	delete(st.byID, id)
	n := len(st.byID)
	st.mu.Unlock()
	if ok {
		s.close()
		st.report(n)
	}
}

// Len returns the number of stored sessions, including idle ones not yet swept.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.byID)
}

// Sweep removes idle sessions and returns how many were removed.
func (st *Store) Sweep() int {
	var stale []*Session
	st.mu.Lock()
	for id, s := range st.byID {
		if st.expired(s) {
			stale = append(stale, s)
			delete(st.byID, id)
		}
	}
	n := len(st.byID)
	st.mu.Unlock()

	for _, s := range stale {
		s.close()
	}
	if len(stale) > 0 {
		st.logger.Debug("swept idle sessions", "removed", len(stale), "remaining", n)
	}
	st.report(n)
	return len(stale)
}

// Run sweeps idle sessions every interval until ctx is done.
func (st *Store) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Sweep()
		}
	}
}

func (st *Store) expired(s *Session) bool {
	return st.now().Sub(s.idleSince()) > st.idle
}

func (st *Store) report(n int) {
	if st.sessions != nil {
		st.sessions.Set(float64(n))
	}
}

// SetCookie sets the session cookie on the response.
func SetCookie(w http.ResponseWriter, id string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     CookiePath,
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie from the client.
func ClearCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
