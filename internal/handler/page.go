// Package handler contains the HTTP handlers of the CampusCircle web tier.
//
// The login and registration pages are live page instances held by the
// browser session. GET mounts a fresh instance; POST dispatches the
// browser's submit into the mounted instance and answers with the updated
// form fragment, a redirect, or nothing when the submit was dropped.
package handler

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/campuscircle/internal/auth"
	"github.com/DukeRupert/campuscircle/internal/csrf"
	"github.com/DukeRupert/campuscircle/internal/domain"
	"github.com/DukeRupert/campuscircle/internal/form"
	"github.com/DukeRupert/campuscircle/internal/metrics"
	"github.com/DukeRupert/campuscircle/internal/page"
	"github.com/DukeRupert/campuscircle/internal/router"
	"github.com/DukeRupert/campuscircle/internal/session"
)

// TemplateRenderer is the interface for rendering HTML templates.
// This interface allows for mocking in tests.
type TemplateRenderer interface {
	RenderHTTP(w http.ResponseWriter, name string, data any)
	RenderHTTPStatus(w http.ResponseWriter, status int, name string, data any)
	RenderPartial(w io.Writer, name string, data any) error
}

// Flash is a one-off message shown above the page content.
type Flash struct {
	Type    string // success, error, info
	Message string
}

// PageData is the data every page template receives.
type PageData struct {
	CurrentPath string
	CSRFToken   string
	User        *domain.User
	Flash       *Flash
	Toasts      []ToastData

	// Content is the mounted form or rendered view.
	Content template.HTML
}

// Flash messages selected by query parameter on the login page.
const (
	RegisteredFlash = "Account created successfully! Please sign in."
	LogoutFlash     = "You have been signed out."
)

// PageHandler serves the form pages, the profile view and logout.
//
// Routes handled:
//   - GET  /login      -> ShowLogin
//   - POST /login      -> SubmitLogin
//   - GET  /register   -> ShowRegister
//   - POST /register   -> SubmitRegister
//   - GET  /users/{id} -> ShowProfile
//   - POST /logout     -> Logout
type PageHandler struct {
	renderer      TemplateRenderer
	auth          page.AuthService
	users         page.UserService
	validator     form.Validator
	allowedDomain string
	sessions      SessionEnder
	logger        *slog.Logger
	isSecure      bool
}

// SessionEnder drops a session. *session.Store implements it.
type SessionEnder interface {
	Delete(id string)
}

// PageHandlerConfig holds the dependencies of a PageHandler.
type PageHandlerConfig struct {
	Renderer      TemplateRenderer
	Auth          page.AuthService
	Users         page.UserService
	Validator     form.Validator
	AllowedDomain string
	Logger        *slog.Logger

	// Sessions, when set, ends the session on logout and clears its cookie.
	// Without it logout only signs the session out.
	Sessions SessionEnder

	// IsSecure sets the Secure flag on cookies (true in production).
	IsSecure bool
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(cfg PageHandlerConfig) (*PageHandler, error) {
	switch {
	case cfg.Renderer == nil:
		return nil, errors.New("handler: renderer is required")
	case cfg.Auth == nil:
		return nil, errors.New("handler: auth service is required")
	case cfg.Users == nil:
		return nil, errors.New("handler: user service is required")
	case cfg.Validator == nil:
		return nil, errors.New("handler: validator is required")
	case cfg.AllowedDomain == "":
		return nil, errors.New("handler: allowed email domain is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &PageHandler{
		renderer:      cfg.Renderer,
		auth:          cfg.Auth,
		users:         cfg.Users,
		validator:     cfg.Validator,
		allowedDomain: cfg.AllowedDomain,
		sessions:      cfg.Sessions,
		logger:        cfg.Logger,
		isSecure:      cfg.IsSecure,
	}, nil
}

// formRoute ties a form page to its template.
type formRoute struct {
	name     string
	template string
}

var (
	loginRoute    = formRoute{name: page.NameLogin, template: "auth/login"}
	registerRoute = formRoute{name: page.NameRegister, template: "auth/register"}
)

// =============================================================================
// GET /login, GET /register
// =============================================================================

// ShowLogin mounts a fresh login page. The registered and logout query
// parameters select a flash message.
func (h *PageHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	var flash *Flash
	switch {
	case r.URL.Query().Get("registered") == "1":
		flash = &Flash{Type: "success", Message: RegisteredFlash}
	case r.URL.Query().Get("logout") == "1":
		flash = &Flash{Type: "success", Message: LogoutFlash}
	}
	h.showForm(w, r, loginRoute, flash)
}

// ShowRegister mounts a fresh registration page.
func (h *PageHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	h.showForm(w, r, registerRoute, nil)
}

func (h *PageHandler) showForm(w http.ResponseWriter, r *http.Request, route formRoute, flash *Flash) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	token, err := csrf.EnsureToken(w, r, h.isSecure)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	p, err := h.mount(s, route.name, token)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	h.renderFormPage(w, r, s, p, route, token, flash)
}

// mount builds a page instance for s, renders it into its container and
// stores it in the session, replacing any earlier instance.
func (h *PageHandler) mount(s *session.Session, name, csrfToken string) (*page.FormPage, error) {
	deps := page.Deps{
		Validator: h.validator,
		Notifier:  s.Notifications,
		Loading:   s.Loading,
		Recorder:  metrics.FormRecorder{},
		Logger:    h.logger,
	}

	var (
		p   *page.FormPage
		err error
	)
	switch name {
	case page.NameLogin:
		p, err = page.NewLoginPage(deps, h.allowedDomain, h.auth, s)
	case page.NameRegister:
		p, err = page.NewRegisterPage(deps, h.allowedDomain, h.auth)
	default:
		err = fmt.Errorf("unknown page %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("build %s page: %w", name, err)
	}

	p.Controller().SetHidden(csrf.FormFieldName, csrfToken)
	if err := p.Mount(); err != nil {
		// The form shows the binding error; serve it anyway.
		h.logger.Error("page mount failed", "page", name, "error", err)
	}
	s.SetPage(name, p)
	return p, nil
}

func (h *PageHandler) renderFormPage(w http.ResponseWriter, r *http.Request, s *session.Session, p *page.FormPage, route formRoute, token string, flash *Flash) {
	markup, err := p.HTML()
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	h.renderer.RenderHTTP(w, route.template, PageData{
		CurrentPath: r.URL.Path,
		CSRFToken:   token,
		User:        s.User(),
		Flash:       flash,
		Toasts:      toastsFrom(s.Notifications.Drain(), false),
		Content:     template.HTML(markup),
	})
}

// =============================================================================
// POST /login, POST /register
// =============================================================================

// SubmitLogin dispatches a login form submission into the session's login page.
func (h *PageHandler) SubmitLogin(w http.ResponseWriter, r *http.Request) {
	h.submitForm(w, r, loginRoute)
}

// SubmitRegister dispatches a registration form submission.
func (h *PageHandler) SubmitRegister(w http.ResponseWriter, r *http.Request) {
	h.submitForm(w, r, registerRoute)
}

// submitForm handles a browser submit:
//  1. Verify the CSRF token
//  2. Find the mounted page, mounting one if the session has none
//  3. Dispatch the submit event with the posted values
//  4. Answer with 204 (dropped), a redirect (navigation), or the updated form
func (h *PageHandler) submitForm(w http.ResponseWriter, r *http.Request, route formRoute) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.submit", "Invalid form submission. Please try again."))
		return
	}
	if !csrf.ValidateRequest(r) {
		h.logger.Warn("csrf validation failed", "path", r.URL.Path)
		ForbiddenResponse(w, r, h.logger)
		return
	}
	token := csrf.TokenFromRequest(r)

	p, ok := mountedPage(s, route.name)
	if !ok {
		var err error
		if p, err = h.mount(s, route.name, token); err != nil {
			InternalErrorResponse(w, r, h.logger, err)
			return
		}
	}

	ctx, nav := router.WithNavigator(r.Context())
	attempt, err := p.Dispatch(ctx, r.Header.Get("HX-Trigger"), postedValues(r))
	switch attempt {
	case form.AttemptDropped:
		w.WriteHeader(http.StatusNoContent)
		return
	case form.AttemptFormMissing, form.AttemptBindingFailed:
		h.logger.Warn("submit could not reach the form", "page", route.name, "error", err)
	default:
		h.logger.Debug("submit handled", "page", route.name, "attempt", attempt, "code", domain.ErrorCode(err))
	}

	if target, ok := nav.Take(); ok {
		h.redirect(w, r, target)
		return
	}

	if !isHTMX(r) {
		h.renderFormPage(w, r, s, p, route, token, nil)
		return
	}
	h.writeFragment(w, r, s, p)
}

// writeFragment sends the form markup followed by pending toasts as
// out-of-band swaps.
func (h *PageHandler) writeFragment(w http.ResponseWriter, r *http.Request, s *session.Session, p *page.FormPage) {
	var buf bytes.Buffer
	if err := p.Controller().Component().Render(r.Context(), &buf); err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	if err := writeToasts(&buf, h.renderer, toastsFrom(s.Notifications.Drain(), true)); err != nil {
		h.logger.Error("toast render failed", "error", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func mountedPage(s *session.Session, name string) (*page.FormPage, bool) {
	mounted, ok := s.Page(name)
	if !ok {
		return nil, false
	}
	p, ok := mounted.(*page.FormPage)
	return p, ok
}

// postedValues takes the first value of every posted field.
func postedValues(r *http.Request) map[string]string {
	values := make(map[string]string, len(r.PostForm))
	for name, vs := range r.PostForm {
		if len(vs) > 0 {
			values[name] = vs[0]
		}
	}
	return values
}

// =============================================================================
// GET /users/{id}
// =============================================================================

// ShowProfile renders the public profile of a user. The session's token is
// sent with the lookup when the viewer is signed in.
func (h *PageHandler) ShowProfile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	nav := &router.Navigator{}
	view := page.NewProfileView(h.users, nav, h.logger)
	markup, err := view.Render(r.Context(), r.PathValue("id"), s.Token())
	if target, ok := nav.Take(); ok {
		h.redirect(w, r, target)
		return
	}
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	h.renderer.RenderHTTP(w, "profile", PageData{
		CurrentPath: r.URL.Path,
		CSRFToken:   csrf.TokenFromRequest(r),
		User:        s.User(),
		Toasts:      toastsFrom(s.Notifications.Drain(), false),
		Content:     template.HTML(markup),
	})
}

// =============================================================================
// POST /logout
// =============================================================================

// Logout forgets the session's token and returns to the login page.
func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil || !csrf.ValidateRequest(r) {
		ForbiddenResponse(w, r, h.logger)
		return
	}

	s.ClearAuth()
	if h.sessions != nil {
		h.sessions.Delete(s.ID)
		session.ClearCookie(w, h.isSecure)
	}
	h.logger.Debug("user logged out")
	h.redirect(w, r, router.PathLogin+"?logout=1")
}

// =============================================================================
// Helpers
// =============================================================================

func (h *PageHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s := auth.GetSession(r.Context())
	if s == nil {
		InternalErrorResponse(w, r, h.logger, errors.New("request has no session"))
		return nil, false
	}
	return s, true
}

// redirect sends the browser to target. htmx requests get an HX-Redirect
// header so the whole page navigates instead of swapping the response.
func (h *PageHandler) redirect(w http.ResponseWriter, r *http.Request, target string) {
	if !router.IsLocalPath(target) {
		target = router.PathHome
	}
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// RouteWrappers wraps individual routes with middleware. Login and Register
// typically rate limit the form submissions; Admin requires a signed-in
// user. A nil field leaves the route unwrapped.
type RouteWrappers struct {
	Login    func(http.Handler) http.Handler
	Register func(http.Handler) http.Handler
	Admin    func(http.Handler) http.Handler
}

// RegisterRoutes registers the page routes on mux.
func (h *PageHandler) RegisterRoutes(mux *http.ServeMux, wrappers RouteWrappers) {
	wrap := func(mw func(http.Handler) http.Handler, fn http.HandlerFunc) http.Handler {
		if mw == nil {
			return fn
		}
		return mw(fn)
	}

	mux.HandleFunc("GET /login", h.ShowLogin)
	mux.Handle("POST /login", wrap(wrappers.Login, h.SubmitLogin))
	mux.HandleFunc("GET /register", h.ShowRegister)
	mux.Handle("POST /register", wrap(wrappers.Register, h.SubmitRegister))
	mux.HandleFunc("GET /users/{id}", h.ShowProfile)
	mux.HandleFunc("POST /logout", h.Logout)

	mux.HandleFunc("GET /{$}", h.ShowHome)
	mux.Handle("GET /admin", wrap(wrappers.Admin, h.ShowAdmin))
	mux.HandleFunc("GET /listings", h.ShowListings)
	mux.HandleFunc("GET /404", h.ShowNotFound)
	mux.HandleFunc("/", h.ShowNotFound)
}
