package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/DukeRupert/campuscircle/internal/domain"
	"github.com/DukeRupert/campuscircle/internal/loading"
	"github.com/DukeRupert/campuscircle/internal/notify"
)

// Page is a mounted page instance owned by a session.
type Page interface {
	// Close detaches the page's listeners and markup.
	Close()
}

// Session is the server-side state of one browser.
type Session struct {
	ID            string
	Notifications *notify.Queue
	Loading       *loading.Indicator

	now func() time.Time

	mu        sync.Mutex
	lastSeen  time.Time
	token     string
	expiresAt time.Time
	user      *domain.User
	pages     map[string]Page
}

func newSession(id string, ind *loading.Indicator, now func() time.Time) *Session {
	return &Session{
		ID:            id,
		Notifications: notify.NewQueue(0),
		Loading:       ind,
		now:           now,
		lastSeen:      now(),
		pages:         make(map[string]Page),
	}
}

// SetAuth stores the backend token and the user it belongs to. The token's
// exp claim, when present, bounds how long Token returns it.
func (s *Session) SetAuth(token string, user *domain.User) {
	exp, _ := TokenExpiry(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = exp
	s.user = user
}

// ClearAuth forgets the token and user.
func (s *Session) ClearAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.user = nil
}

// Token returns the backend token, or "" when there is none or it expired.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt) {
		s.token = ""
		s.expiresAt = time.Time{}
		s.user = nil
	}
	return s.token
}

// User returns the signed-in user, or nil.
func (s *Session) User() *domain.User {
	if s.Token() == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetPage mounts p under name, closing any page previously mounted there.
func (s *Session) SetPage(name string, p Page) {
	s.mu.Lock()
	old := s.pages[name]
	s.pages[name] = p
	s.mu.Unlock()
	if old != nil && old != p {
		old.Close()
	}
}

// Page returns the page mounted under name.
func (s *Session) Page(name string) (Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[name]
	return p, ok
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.now()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// close releases everything the session owns.
func (s *Session) close() {
	s.mu.Lock()
	pages := s.pages
	s.pages = make(map[string]Page)
	s.mu.Unlock()
	for _, p := range pages {
		p.Close()
	}
	s.Loading.Release()
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The backend verifies tokens; the web tier only uses exp to stop sending a
// token that is known to be stale.
func TokenExpiry(token string) (time.Time, error) {
	if token == "" {
		return time.Time{}, errors.New("session: empty token")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}
