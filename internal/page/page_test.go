package page

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/campuscircle/internal/domain"
	"github.com/DukeRupert/campuscircle/internal/form"
	"github.com/DukeRupert/campuscircle/internal/loading"
	"github.com/DukeRupert/campuscircle/internal/notify"
	"github.com/DukeRupert/campuscircle/internal/router"
	"github.com/DukeRupert/campuscircle/internal/validation"
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

type fakeSink struct {
	mu    sync.Mutex
	token string
	user  *domain.User
}

func (f *fakeSink) SetAuth(token string, user *domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token, f.user = token, user
}

type harness struct {
	deps    Deps
	queue   *notify.Queue
	nav     *router.Navigator
	loading *loading.Indicator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	engine, err := validation.New(campusDomain)
	require.NoError(t, err)
	h := &harness{
		queue:   notify.NewQueue(0),
		nav:     &router.Navigator{},
		loading: loading.New(nil),
	}
	h.deps = Deps{Validator: engine, Notifier: h.queue, Router: h.nav, Loading: h.loading}
	return h
}

func mounted(t *testing.T, p *FormPage, err error) *FormPage {
	t.Helper()
	require.NoError(t, err)
	require.NoError(t, p.Mount())
	return p
}

// =============================================================================
// Login
// =============================================================================

func TestLoginDefinition(t *testing.T) {
	def := LoginDefinition(campusDomain)
	require.NoError(t, def.Validate())
	assert.Equal(t, "Login", def.SubmitLabel)

	email, ok := def.Field("email")
	require.True(t, ok)
	assert.Equal(t, "VinUni Email", email.Label)
	assert.Equal(t, "your.email@vinuni.edu.vn", email.Placeholder)
	assert.Equal(t, "Only @vinuni.edu.vn emails are accepted", email.HelpText)
	assert.True(t, email.Rule.RequireDomain)

	_, ok = def.Field("password")
	assert.True(t, ok)
}

func TestLoginPage_Success(t *testing.T) {
	tests := []struct {
		name     string
		role     domain.Role
		fullName string
		wantPath string
		wantMsg  string
	}{
		{name: "student", role: domain.RoleStudent, fullName: "Mai Tran", wantPath: router.PathHome, wantMsg: "Welcome back, Mai Tran!"},
		{name: "admin", role: domain.RoleAdmin, fullName: "An Binh", wantPath: router.PathAdmin, wantMsg: "Welcome back, An Binh!"},
		{name: "no name falls back to email", role: domain.RoleStudent, wantPath: router.PathHome, wantMsg: "Welcome back, mai@vinuni.edu.vn!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			sink := &fakeSink{}
			var gotEmail, gotPassword string
			auth := &mockAuthService{LoginFunc: func(ctx context.Context, email, password string) (*domain.LoginResult, error) {
				gotEmail, gotPassword = email, password
				return &domain.LoginResult{
					Token: "jwt-token",
					User:  &domain.User{ID: 7, Email: email, FullName: tt.fullName, Role: tt.role},
				}, nil
			}}
			p, err := NewLoginPage(h.deps, campusDomain, auth, sink)
			p = mounted(t, p, err)

			attempt, err := p.Dispatch(context.Background(), LoginFormID, map[string]string{
				"email":    "  mai@vinuni.edu.vn ",
				"password": "Secret1",
			})
			require.NoError(t, err)
			assert.Equal(t, form.AttemptSucceeded, attempt)

			assert.Equal(t, "mai@vinuni.edu.vn", gotEmail)
			assert.Equal(t, "Secret1", gotPassword)
			assert.Equal(t, "jwt-token", sink.token)

			got, ok := h.nav.Take()
			require.True(t, ok)
			assert.Equal(t, tt.wantPath, got)

			toasts := h.queue.Drain()
			require.Len(t, toasts, 1)
			assert.Equal(t, notify.TypeSuccess, toasts[0].Type)
			assert.Equal(t, "Login Successful", toasts[0].Title)
			assert.Equal(t, tt.wantMsg, toasts[0].Message)

			assert.False(t, p.Controller().State().Loading)
			assert.False(t, h.loading.Active())
		})
	}
}

func TestLoginPage_NavigatesOnDispatchNavigator(t *testing.T) {
	h := newHarness(t)
	auth := &mockAuthService{LoginFunc: func(ctx context.Context, email, password string) (*domain.LoginResult, error) {
		return &domain.LoginResult{Token: "t", User: &domain.User{Email: email, Role: domain.RoleAdmin}}, nil
	}}
	p, err := NewLoginPage(h.deps, campusDomain, auth, &fakeSink{})
	p = mounted(t, p, err)

	ctx, nav := router.WithNavigator(context.Background())
	attempt, err := p.Dispatch(ctx, LoginFormID, map[string]string{
		"email":    "mai@vinuni.edu.vn",
		"password": "Secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, form.AttemptSucceeded, attempt)

	got, ok := nav.Take()
	require.True(t, ok)
	assert.Equal(t, router.PathAdmin, got)
	_, ok = h.nav.Take()
	assert.False(t, ok, "the fallback router should not see a dispatch-scoped navigation")
}

func TestLoginPage_InvalidInputNeverCallsBackend(t *testing.T) {
	h := newHarness(t)
	called := false
	auth := &mockAuthService{LoginFunc: func(ctx context.Context, email, password string) (*domain.LoginResult, error) {
		called = true
		return nil, nil
	}}
	p, err := NewLoginPage(h.deps, campusDomain, auth, &fakeSink{})
	p = mounted(t, p, err)

	attempt, err := p.Dispatch(context.Background(), LoginFormID, map[string]string{"email": "mai@gmail.com"})
	assert.Equal(t, form.AttemptInvalid, attempt)
	assert.Equal(t, map[string]string{
		"email":    "Only @vinuni.edu.vn emails are accepted",
		"password": "Password is required",
	}, domain.FieldErrors(err))
	assert.False(t, called)
	assert.Empty(t, h.nav.Pending())
	assert.Zero(t, h.queue.Len())

	markup, err := p.HTML()
	require.NoError(t, err)
	assert.Contains(t, markup, "Only @vinuni.edu.vn emails are accepted")
	assert.Contains(t, markup, `value="mai@gmail.com"`)
}

func TestLoginPage_FailureShowsBanner(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "backend message", err: domain.Unauthorized("api.login", "Invalid email or password"), want: "Invalid email or password"},
		{name: "internal error hides details", err: errors.New("dial tcp: connection refused"), want: LoginFailureMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			auth := &mockAuthService{LoginFunc: func(ctx context.Context, email, password string) (*domain.LoginResult, error) {
				return nil, tt.err
			}}
			p, err := NewLoginPage(h.deps, campusDomain, auth, &fakeSink{})
			p = mounted(t, p, err)

			attempt, err := p.Dispatch(context.Background(), LoginFormID, map[string]string{
				"email":    "mai@vinuni.edu.vn",
				"password": "wrong",
			})
			assert.Equal(t, form.AttemptFailed, attempt)
			require.Error(t, err)
			assert.Equal(t, tt.want, p.Controller().State().GeneralError)

			markup, err := p.HTML()
			require.NoError(t, err)
			assert.Contains(t, markup, tt.want)
			assert.NotContains(t, markup, "wrong", "passwords are never rendered back")
			assert.Empty(t, h.nav.Pending())
			assert.False(t, h.loading.Active())
		})
	}
}

func TestLoginPage_ClickOnSubmitControl(t *testing.T) {
	h := newHarness(t)
	calls := 0
	auth := &mockAuthService{LoginFunc: func(ctx context.Context, email, password string) (*domain.LoginResult, error) {
		calls++
		return &domain.LoginResult{Token: "t", User: &domain.User{Email: email}}, nil
	}}
	p, err := NewLoginPage(h.deps, campusDomain, auth, &fakeSink{})
	p = mounted(t, p, err)

	attempt, err := p.Dispatch(context.Background(), "", map[string]string{
		"email":                "mai@vinuni.edu.vn",
		"password":             "Secret1",
		form.SubmitControlName: "submit",
	})
	require.NoError(t, err)
	assert.Equal(t, form.AttemptSucceeded, attempt)
	assert.Equal(t, 1, calls)
	assert.Zero(t, p.Container().NativeSubmits())
}

func TestLoginPage_UnknownTriggerFallsBackToMountedForm(t *testing.T) {
	h := newHarness(t)
	auth := &mockAuthService{LoginFunc: func(ctx context.Context, email, password string) (*domain.LoginResult, error) {
		return &domain.LoginResult{Token: "t", User: &domain.User{Email: email}}, nil
	}}
	p, err := NewLoginPage(h.deps, campusDomain, auth, &fakeSink{})
	p = mounted(t, p, err)

	attempt, err := p.Dispatch(context.Background(), "stale-form-id", map[string]string{
		"email":    "mai@vinuni.edu.vn",
		"password": "Secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, form.AttemptSucceeded, attempt)
}

func TestLoginPage_DroppedDispatchLeavesMarkupUnchanged(t *testing.T) {
	h := newHarness(t)
	auth := &mockAuthService{LoginFunc: func(ctx context.Context, email, password string) (*domain.LoginResult, error) {
		t.Fatal("a dropped submit must not reach the backend")
		return nil, nil
	}}
	p, err := NewLoginPage(h.deps, campusDomain, auth, &fakeSink{})
	p = mounted(t, p, err)
	p.Controller().SetLoading(true)

	before, err := p.HTML()
	require.NoError(t, err)

	attempt, err := p.Dispatch(context.Background(), LoginFormID, map[string]string{
		"email":    "zz@vinuni.edu.vn",
		"password": "Leak123",
	})
	require.NoError(t, err)
	assert.Equal(t, form.AttemptDropped, attempt)

	after, err := p.HTML()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NotContains(t, after, "Leak123")
	assert.NotContains(t, after, "zz@vinuni.edu.vn")
}

func TestLoginPage_DispatchBeforeMount(t *testing.T) {
	h := newHarness(t)
	p, err := NewLoginPage(h.deps, campusDomain, &mockAuthService{}, &fakeSink{})
	require.NoError(t, err)

	attempt, err := p.Dispatch(context.Background(), LoginFormID, map[string]string{"email": "mai@vinuni.edu.vn"})
	assert.Equal(t, form.AttemptFormMissing, attempt)
	assert.Error(t, err)
	assert.Equal(t, form.FormNotFoundMessage, p.Controller().State().GeneralError)
}

func TestNewLoginPage_RequiresDeps(t *testing.T) {
	h := newHarness(t)

	_, err := NewLoginPage(Deps{}, campusDomain, &mockAuthService{}, &fakeSink{})
	assert.Error(t, err)

	_, err = NewLoginPage(h.deps, campusDomain, nil, &fakeSink{})
	assert.Error(t, err)

	_, err = NewLoginPage(h.deps, campusDomain, &mockAuthService{}, nil)
	assert.Error(t, err)
}

func TestFormPage_Close(t *testing.T) {
	h := newHarness(t)
	p, err := NewLoginPage(h.deps, campusDomain, &mockAuthService{}, &fakeSink{})
	p = mounted(t, p, err)
	assert.Equal(t, 2, p.Container().TotalListeners())

	p.Close()
	assert.Zero(t, p.Container().TotalListeners())
	assert.Nil(t, p.Container().Form())
}

// =============================================================================
// Register
// =============================================================================

var validRegistration = map[string]string{
	"fullName":        "  Mai Tran ",
	"email":           "mai@vinuni.edu.vn",
	"password":        "Secret1",
	"confirmPassword": "Secret1",
	"phone":           "",
	"address":         "Dorm A1",
}

func TestRegisterPage_Success(t *testing.T) {
	h := newHarness(t)
	var got domain.RegisterParams
	auth := &mockAuthService{RegisterFunc: func(ctx context.Context, params domain.RegisterParams) error {
		got = params
		return nil
	}}
	p, err := NewRegisterPage(h.deps, campusDomain, auth)
	p = mounted(t, p, err)

	attempt, err := p.Dispatch(context.Background(), RegisterFormID, validRegistration)
	require.NoError(t, err)
	assert.Equal(t, form.AttemptSucceeded, attempt)

	assert.Equal(t, "Mai Tran", got.FullName)
	assert.Equal(t, "Secret1", got.ConfirmPassword)
	assert.Nil(t, got.Phone)
	require.NotNil(t, got.Address)
	assert.Equal(t, "Dorm A1", *got.Address)

	path, ok := h.nav.Take()
	require.True(t, ok)
	assert.Equal(t, RegisteredPath, path)

	toasts := h.queue.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Registration Successful", toasts[0].Title)
	assert.Equal(t, "Your account has been created! Please sign in to get started.", toasts[0].Message)
}

func TestRegisterPage_ValidationErrors(t *testing.T) {
	h := newHarness(t)
	auth := &mockAuthService{RegisterFunc: func(ctx context.Context, params domain.RegisterParams) error {
		t.Fatal("register must not be called with invalid input")
		return nil
	}}
	p, err := NewRegisterPage(h.deps, campusDomain, auth)
	p = mounted(t, p, err)

	attempt, err := p.Dispatch(context.Background(), RegisterFormID, map[string]string{
		"fullName":        "M",
		"email":           "mai@vinuni.edu.vn",
		"password":        "secret",
		"confirmPassword": "other",
		"phone":           "12-34",
		"address":         "",
	})
	assert.Equal(t, form.AttemptInvalid, attempt)
	assert.Equal(t, map[string]string{
		"fullName":        "Full name must be at least 2 characters long",
		"password":        "Password must contain at least one uppercase letter, one lowercase letter, and one number",
		"confirmPassword": "Passwords do not match",
		"phone":           "Please enter a valid phone number (7-15 digits)",
	}, domain.FieldErrors(err))
}

func TestRegisterPage_Conflict(t *testing.T) {
	h := newHarness(t)
	auth := &mockAuthService{RegisterFunc: func(ctx context.Context, params domain.RegisterParams) error {
		return domain.Conflict("api.register", "Email already registered")
	}}
	p, err := NewRegisterPage(h.deps, campusDomain, auth)
	p = mounted(t, p, err)

	attempt, _ := p.Dispatch(context.Background(), RegisterFormID, validRegistration)
	assert.Equal(t, form.AttemptFailed, attempt)
	assert.Equal(t, "Email already registered", p.Controller().State().GeneralError)
	assert.Empty(t, h.nav.Pending())
	assert.Zero(t, h.queue.Len())
}

func TestRegisterParams(t *testing.T) {
	params := RegisterParams(map[string]string{
		"fullName": " An ",
		"email":    " an@vinuni.edu.vn",
		"phone":    " 0901 234 567 ",
		"address":  "   ",
	})
	assert.Equal(t, "An", params.FullName)
	assert.Equal(t, "an@vinuni.edu.vn", params.Email)
	require.NotNil(t, params.Phone)
	assert.Equal(t, "0901 234 567", *params.Phone)
	assert.Nil(t, params.Address)
}
