package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/campuscircle/internal/auth"
	"github.com/DukeRupert/campuscircle/internal/domain"
	"github.com/DukeRupert/campuscircle/internal/handler"
	"github.com/DukeRupert/campuscircle/internal/session"
	"github.com/DukeRupert/campuscircle/internal/validation"
	"github.com/DukeRupert/campuscircle/web"
)

type stubBackend struct {
	LoginFunc func(ctx context.Context, email, password string) (*domain.LoginResult, error)
}

func (b *stubBackend) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	if b.LoginFunc != nil {
		return b.LoginFunc(ctx, email, password)
	}
	return nil, errors.New("LoginFunc not set")
}

func (b *stubBackend) Register(ctx context.Context, params domain.RegisterParams) error {
	return errors.New("not implemented")
}

func (b *stubBackend) GetUser(ctx context.Context, id int64, token string) (*domain.User, error) {
	return nil, domain.NotFound("api.getUser", "user", "")
}

func TestWithSession_CreatesAndReuses(t *testing.T) {
	store := session.NewStore(session.StoreConfig{})
	mw := NewSessionMiddleware(store, nil)

	var seen *session.Session
	h := mw.WithSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.GetSession(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/login", nil))
	require.NotNil(t, seen)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	first := seen

	req := httptest.NewRequest("GET", "/login", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Same(t, first, seen)
	assert.Empty(t, rec.Result().Cookies(), "a live session keeps its cookie")
}

func TestRequireUser(t *testing.T) {
	store := session.NewStore(session.StoreConfig{})
	mw := NewSessionMiddleware(store, nil)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Stack(mw.WithSession, mw.RequireUser)(ok)

	t.Run("anonymous page request redirects", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/admin", nil))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("anonymous htmx request gets HX-Redirect", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("HX-Request", "true")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("HX-Redirect"))
	})

	t.Run("anonymous api request gets 401", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("signed-in user passes", func(t *testing.T) {
		s := store.Create()
		s.SetAuth("opaque-token", &domain.User{ID: 7, Email: "ana@campus.edu"})
		req := httptest.NewRequest("GET", "/admin", nil)
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: s.ID})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireUser_GuardsAdminRoute(t *testing.T) {
	renderer, err := handler.NewRenderer(handler.RendererConfig{FS: web.Templates()})
	require.NoError(t, err)
	engine, err := validation.New("vinuni.edu.vn")
	require.NoError(t, err)
	backend := &stubBackend{}
	pages, err := handler.NewPageHandler(handler.PageHandlerConfig{
		Renderer:      renderer,
		Auth:          backend,
		Users:         backend,
		Validator:     engine,
		AllowedDomain: "vinuni.edu.vn",
	})
	require.NoError(t, err)

	store := session.NewStore(session.StoreConfig{})
	mw := NewSessionMiddleware(store, nil)
	mux := http.NewServeMux()
	pages.RegisterRoutes(mux, handler.RouteWrappers{Admin: mw.RequireUser})
	h := mw.WithSession(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/admin", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	student := store.Create()
	student.SetAuth("opaque-token", &domain.User{ID: 7, Email: "mai@vinuni.edu.vn", Role: domain.RoleStudent})
	req := httptest.NewRequest("GET", "/admin", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: student.ID})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStack_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Stack(mark("outer"), mark("inner"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestIsAPIRequest(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   bool
	}{
		{"html page", "/login", nil, false},
		{"api path", "/api/users", nil, true},
		{"json accept", "/login", map[string]string{"Accept": "application/json"}, true},
		{"htmx wins", "/api/users", map[string]string{"HX-Request": "true"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, isAPIRequest(req))
		})
	}
}
