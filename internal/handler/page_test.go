package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/campuscircle/internal/auth"
	"github.com/DukeRupert/campuscircle/internal/csrf"
	"github.com/DukeRupert/campuscircle/internal/domain"
	"github.com/DukeRupert/campuscircle/internal/page"
	"github.com/DukeRupert/campuscircle/internal/session"
	"github.com/DukeRupert/campuscircle/internal/validation"
	"github.com/DukeRupert/campuscircle/web"
)

const campusDomain = "vinuni.edu.vn"

// =============================================================================
// Test doubles
// =============================================================================

type mockAuthService struct {
	LoginFunc    func(ctx context.Context, email, password string) (*domain.LoginResult, error)
	RegisterFunc func(ctx context.Context, params domain.RegisterParams) error
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return nil, errors.New("LoginFunc not set")
}

func (m *mockAuthService) Register(ctx context.Context, params domain.RegisterParams) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, params)
	}
	return errors.New("RegisterFunc not set")
}

type mockUserService struct {
	GetUserFunc func(ctx context.Context, id int64, token string) (*domain.User, error)
}

func (m *mockUserService) GetUser(ctx context.Context, id int64, token string) (*domain.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id, token)
	}
	return nil, domain.NotFound("api.getUser", "user", "")
}

// =============================================================================
// Harness
// =============================================================================

type testServer struct {
	t       *testing.T
	store   *session.Store
	handler http.Handler
	cookies map[string]*http.Cookie
}

func newTestServer(t *testing.T, authSvc *mockAuthService, users *mockUserService) *testServer {
	t.Helper()
	return newWrappedTestServer(t, authSvc, users, RouteWrappers{})
}

func newWrappedTestServer(t *testing.T, authSvc *mockAuthService, users *mockUserService, wrappers RouteWrappers) *testServer {
	t.Helper()
	renderer, err := NewRenderer(RendererConfig{FS: web.Templates()})
	require.NoError(t, err)
	engine, err := validation.New(campusDomain)
	require.NoError(t, err)
	if authSvc == nil {
		authSvc = &mockAuthService{}
	}
	if users == nil {
		users = &mockUserService{}
	}

	store := session.NewStore(session.StoreConfig{})
	h, err := NewPageHandler(PageHandlerConfig{
		Renderer:      renderer,
		Auth:          authSvc,
		Users:         users,
		Validator:     engine,
		AllowedDomain: campusDomain,
		Sessions:      store,
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux, wrappers)

	return &testServer{
		t:     t,
		store: store,
		handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := store.Load(w, r)
			mux.ServeHTTP(w, r.WithContext(auth.SetSession(r.Context(), s)))
		}),
		cookies: make(map[string]*http.Cookie),
	}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range ts.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		ts.cookies[c.Name] = c
	}
	return rec
}

func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	return ts.do(httptest.NewRequest(http.MethodGet, path, nil))
}

// newPost builds a form POST carrying the CSRF token, as htmx sends it when htmx is true.
func (ts *testServer) newPost(path string, values map[string]string, htmx bool, trigger string) *http.Request {
	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	if c, ok := ts.cookies[csrf.CookieName]; ok {
		form.Set(csrf.FormFieldName, c.Value)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
		req.Header.Set("HX-Trigger", trigger)
	}
	return req
}

func (ts *testServer) post(path string, values map[string]string, htmx bool, trigger string) *httptest.ResponseRecorder {
	return ts.do(ts.newPost(path, values, htmx, trigger))
}

func (ts *testServer) session() *session.Session {
	ts.t.Helper()
	c, ok := ts.cookies[session.CookieName]
	require.True(ts.t, ok, "no session cookie")
	s, ok := ts.store.Get(c.Value)
	require.True(ts.t, ok, "session not live")
	return s
}

func loginAs(role domain.Role) *mockAuthService {
	return &mockAuthService{LoginFunc: func(ctx context.Context, email, password string) (*domain.LoginResult, error) {
		return &domain.LoginResult{
			Token: "jwt-token",
			User:  &domain.User{ID: 7, Email: email, FullName: "Mai Tran", Role: role},
		}, nil
	}}
}

var validLogin = map[string]string{"email": "mai@vinuni.edu.vn", "password": "Secret1"}

// =============================================================================
// GET /login, GET /register
// =============================================================================

func TestShowLogin(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantFlash string
	}{
		{"plain", "/login", ""},
		{"after registration", "/login?registered=1", RegisteredFlash},
		{"after logout", "/login?logout=1", LogoutFlash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil, nil)
			rec := ts.get(tt.path)

			require.Equal(t, http.StatusOK, rec.Code)
			body := rec.Body.String()
			assert.Contains(t, body, `id="login-form"`)
			assert.Contains(t, body, "Only @vinuni.edu.vn emails are accepted")
			assert.Contains(t, body, ts.cookies[csrf.CookieName].Value, "token is embedded in the page")
			if tt.wantFlash != "" {
				assert.Contains(t, body, tt.wantFlash)
			} else {
				assert.NotContains(t, body, RegisteredFlash)
				assert.NotContains(t, body, LogoutFlash)
			}

			_, ok := ts.session().Page(page.NameLogin)
			assert.True(t, ok, "GET mounts a login page into the session")
		})
	}
}

func TestShowRegister(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	rec := ts.get("/register")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="`+page.RegisterFormID+`"`)
	_, ok := ts.session().Page(page.NameRegister)
	assert.True(t, ok)
}

func TestShowLogin_RemountReplacesPage(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	ts.get("/login")
	first, _ := ts.session().Page(page.NameLogin)

	ts.get("/login")
	second, _ := ts.session().Page(page.NameLogin)

	assert.NotSame(t, first, second)
}

// =============================================================================
// POST /login
// =============================================================================

func TestSubmitLogin_ValidationErrorsFragment(t *testing.T) {
	called := false
	ts := newTestServer(t, &mockAuthService{LoginFunc: func(ctx context.Context, email, password string) (*domain.LoginResult, error) {
		called = true
		return nil, nil
	}}, nil)
	ts.get("/login")

	rec := ts.post("/login", map[string]string{"email": "mai@gmail.com"}, true, page.LoginFormID)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, `<form id="login-form"`), "htmx gets only the form fragment")
	assert.Contains(t, body, "Password is required")
	assert.Contains(t, body, `value="mai@gmail.com"`)
	assert.Empty(t, rec.Header().Get("HX-Redirect"))
	assert.False(t, called)
}

func TestSubmitLogin_SuccessHTMXRedirects(t *testing.T) {
	tests := []struct {
		name string
		role domain.Role
		want string
	}{
		{"student", domain.RoleStudent, "/"},
		{"admin", domain.RoleAdmin, "/admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, loginAs(tt.role), nil)
			ts.get("/login")

			rec := ts.post("/login", validLogin, true, page.LoginFormID)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("HX-Redirect"))
			s := ts.session()
			assert.Equal(t, "jwt-token", s.Token())
			require.NotNil(t, s.User())
			assert.Equal(t, int64(7), s.User().ID)
		})
	}
}

func TestSubmitLogin_WelcomeToastOnNextPage(t *testing.T) {
	ts := newTestServer(t, loginAs(domain.RoleStudent), nil)
	ts.get("/login")
	ts.post("/login", validLogin, true, page.LoginFormID)

	rec := ts.get("/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Login Successful")
	assert.Contains(t, rec.Body.String(), "Welcome back, Mai Tran!")

	rec = ts.get("/")
	assert.NotContains(t, rec.Body.String(), "Login Successful", "toasts are shown once")
}

func TestSubmitLogin_PlainPostRedirects(t *testing.T) {
	ts := newTestServer(t, loginAs(domain.RoleAdmin), nil)
	ts.get("/login")

	rec := ts.post("/login", validLogin, false, "")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))
}

func TestSubmitLogin_FailureShowsBanner(t *testing.T) {
	ts := newTestServer(t, &mockAuthService{LoginFunc: func(ctx context.Context, email, password string) (*domain.LoginResult, error) {
		return nil, domain.Unauthorized("api.login", "Invalid email or password")
	}}, nil)
	ts.get("/login")

	t.Run("htmx", func(t *testing.T) {
		rec := ts.post("/login", validLogin, true, page.LoginFormID)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid email or password")
		assert.NotContains(t, rec.Body.String(), "Secret1")
		assert.Nil(t, ts.session().User())
	})

	t.Run("plain post gets full page", func(t *testing.T) {
		rec := ts.post("/login", validLogin, false, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "<!DOCTYPE html>")
		assert.Contains(t, rec.Body.String(), "Invalid email or password")
	})
}

func TestSubmitLogin_MountsWhenSessionHasNoPage(t *testing.T) {
	ts := newTestServer(t, loginAs(domain.RoleStudent), nil)
	ts.cookies[csrf.CookieName] = &http.Cookie{Name: csrf.CookieName, Value: "tok"}

	rec := ts.post("/login", validLogin, true, page.LoginFormID)

	assert.Equal(t, "/", rec.Header().Get("HX-Redirect"))
}

func TestSubmitLogin_CSRF(t *testing.T) {
	ts := newTestServer(t, loginAs(domain.RoleStudent), nil)
	ts.get("/login")

	t.Run("missing token", func(t *testing.T) {
		delete(ts.cookies, csrf.CookieName)
		rec := ts.post("/login", validLogin, true, page.LoginFormID)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Nil(t, ts.session().User())
	})

	t.Run("header token", func(t *testing.T) {
		ts.cookies[csrf.CookieName] = &http.Cookie{Name: csrf.CookieName, Value: "tok"}
		form := url.Values{"email": {validLogin["email"]}, "password": {validLogin["password"]}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("HX-Request", "true")
		req.Header.Set(csrf.HeaderName, "tok")

		rec := ts.do(req)
		assert.Equal(t, "/", rec.Header().Get("HX-Redirect"))
	})
}

func TestSubmitLogin_DropsSubmitWhileLoading(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	ts := newTestServer(t, &mockAuthService{LoginFunc: func(ctx context.Context, email, password string) (*domain.LoginResult, error) {
		calls++
		close(started)
		<-release
		return &domain.LoginResult{Token: "t", User: &domain.User{ID: 1, Email: email}}, nil
	}}, nil)
	ts.get("/login")

	first := ts.newPost("/login", validLogin, true, page.LoginFormID)
	second := ts.newPost("/login", validLogin, true, page.LoginFormID)
	for _, c := range ts.cookies {
		first.AddCookie(c)
		second.AddCookie(c)
	}

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, first)
		done <- rec
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first submit never reached the backend")
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	close(release)
	select {
	case rec = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first submit did not finish")
	}
	assert.Equal(t, "/", rec.Header().Get("HX-Redirect"))
	assert.Equal(t, 1, calls)
}

func TestSubmitLogin_ConcurrentRequestsKeepTheirNavigation(t *testing.T) {
	ts := newTestServer(t, loginAs(domain.RoleStudent), nil)
	ts.get("/login")
	withCookies := func(req *http.Request) *http.Request {
		for _, c := range ts.cookies {
			req.AddCookie(c)
		}
		return req
	}

	const rounds = 50
	var wg sync.WaitGroup
	wg.Add(2)
	logins := make([]string, rounds)
	profiles := make([]string, rounds)
	go func() {
		defer wg.Done()
		for i := range rounds {
			rec := httptest.NewRecorder()
			ts.handler.ServeHTTP(rec, withCookies(ts.newPost("/login", validLogin, true, page.LoginFormID)))
			logins[i] = rec.Header().Get("HX-Redirect")
		}
	}()
	go func() {
		defer wg.Done()
		for i := range rounds {
			rec := httptest.NewRecorder()
			ts.handler.ServeHTTP(rec, withCookies(httptest.NewRequest(http.MethodGet, "/users/abc", nil)))
			profiles[i] = rec.Header().Get("Location")
		}
	}()
	wg.Wait()

	for i := range rounds {
		assert.Equal(t, "/", logins[i], "login %d", i)
		assert.Equal(t, "/404", profiles[i], "profile %d", i)
	}
}

// =============================================================================
// POST /register
// =============================================================================

func TestSubmitRegister(t *testing.T) {
	var got domain.RegisterParams
	ts := newTestServer(t, &mockAuthService{RegisterFunc: func(ctx context.Context, params domain.RegisterParams) error {
		got = params
		return nil
	}}, nil)
	ts.get("/register")

	rec := ts.post("/register", map[string]string{
		"fullName":        "Mai Tran",
		"email":           "mai@vinuni.edu.vn",
		"password":        "Secret1",
		"confirmPassword": "Secret1",
	}, true, page.RegisterFormID)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, page.RegisteredPath, rec.Header().Get("HX-Redirect"))
	assert.Equal(t, "Mai Tran", got.FullName)
	assert.Nil(t, ts.session().User(), "registration does not sign in")
}

func TestSubmitRegister_ConflictShowsBanner(t *testing.T) {
	ts := newTestServer(t, &mockAuthService{RegisterFunc: func(ctx context.Context, params domain.RegisterParams) error {
		return domain.Conflict("api.register", "An account with this email already exists")
	}}, nil)
	ts.get("/register")

	rec := ts.post("/register", map[string]string{
		"fullName":        "Mai Tran",
		"email":           "mai@vinuni.edu.vn",
		"password":        "Secret1",
		"confirmPassword": "Secret1",
	}, true, page.RegisterFormID)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "An account with this email already exists")
	assert.Empty(t, rec.Header().Get("HX-Redirect"))
}

// =============================================================================
// GET /users/{id}
// =============================================================================

func TestShowProfile(t *testing.T) {
	var gotID int64
	var gotToken string
	users := &mockUserService{GetUserFunc: func(ctx context.Context, id int64, token string) (*domain.User, error) {
		gotID, gotToken = id, token
		if id != 7 {
			return nil, domain.NotFound("api.getUser", "user", "")
		}
		return &domain.User{ID: 7, FullName: "Mai <b>Tran</b>", Email: "mai@vinuni.edu.vn"}, nil
	}}
	ts := newTestServer(t, loginAs(domain.RoleStudent), users)

	t.Run("found", func(t *testing.T) {
		rec := ts.get("/users/7")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Mai Tran")
		assert.NotContains(t, rec.Body.String(), "<b>Tran</b>")
		assert.Equal(t, int64(7), gotID)
		assert.Empty(t, gotToken, "anonymous viewers send no token")
	})

	t.Run("signed in viewer sends token", func(t *testing.T) {
		ts.get("/login")
		ts.post("/login", validLogin, true, page.LoginFormID)

		rec := ts.get("/users/7")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "jwt-token", gotToken)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := ts.get("/users/99")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "User Not Found")
	})

	t.Run("malformed id", func(t *testing.T) {
		for _, raw := range []string{"abc", "undefined", "0", "-4"} {
			rec := ts.get("/users/" + raw)
			assert.Equal(t, http.StatusSeeOther, rec.Code, raw)
			assert.Equal(t, "/404", rec.Header().Get("Location"), raw)
		}
	})
}

// =============================================================================
// POST /logout, landing pages
// =============================================================================

func TestLogout(t *testing.T) {
	ts := newTestServer(t, loginAs(domain.RoleStudent), nil)
	ts.get("/login")
	ts.post("/login", validLogin, true, page.LoginFormID)
	require.NotNil(t, ts.session().User())

	s := ts.session()

	rec := ts.post("/logout", nil, false, "")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?logout=1", rec.Header().Get("Location"))
	assert.Nil(t, s.User())
	assert.Empty(t, s.Token())

	_, live := ts.store.Get(s.ID)
	assert.False(t, live, "logout ends the session")
	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			cleared = c
		}
	}
	require.NotNil(t, cleared, "logout clears the session cookie")
	assert.Negative(t, cleared.MaxAge)

	ts.get("/login")
	assert.NotEqual(t, s.ID, ts.session().ID, "the next request starts a new session")
}

func TestLogout_RequiresCSRF(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	ts.get("/")

	rec := ts.post("/logout", nil, false, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestShowAdmin(t *testing.T) {
	t.Run("anonymous without wrapper", func(t *testing.T) {
		ts := newTestServer(t, nil, nil)
		assert.Equal(t, http.StatusForbidden, ts.get("/admin").Code)
	})

	t.Run("admin wrapper runs first", func(t *testing.T) {
		var wrapped bool
		ts := newWrappedTestServer(t, nil, nil, RouteWrappers{
			Admin: func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					wrapped = true
					http.Redirect(w, r, "/login", http.StatusSeeOther)
				})
			},
		})
		rec := ts.get("/admin")
		assert.True(t, wrapped)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("student", func(t *testing.T) {
		ts := newTestServer(t, loginAs(domain.RoleStudent), nil)
		ts.get("/login")
		ts.post("/login", validLogin, true, page.LoginFormID)
		assert.Equal(t, http.StatusForbidden, ts.get("/admin").Code)
	})

	t.Run("admin", func(t *testing.T) {
		ts := newTestServer(t, loginAs(domain.RoleAdmin), nil)
		ts.get("/login")
		ts.post("/login", validLogin, true, page.LoginFormID)
		assert.Equal(t, http.StatusOK, ts.get("/admin").Code)
	})
}

func TestShowNotFound(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	assert.Equal(t, http.StatusNotFound, ts.get("/404").Code)
	assert.Equal(t, http.StatusNotFound, ts.get("/no/such/page").Code)
	assert.Equal(t, http.StatusOK, ts.get("/listings").Code)
}

func TestNewPageHandler_RequiresDeps(t *testing.T) {
	_, err := NewPageHandler(PageHandlerConfig{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
