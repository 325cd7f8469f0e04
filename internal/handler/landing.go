package handler

import (
	"net/http"

	"github.com/DukeRupert/campuscircle/internal/csrf"
)

// Landing pages for the navigation targets of the form pages. They show
// whatever toasts are pending, such as the welcome after a login.

// ShowHome renders the home page.
func (h *PageHandler) ShowHome(w http.ResponseWriter, r *http.Request) {
	h.renderLanding(w, r, http.StatusOK, "home")
}

// ShowListings renders the listings page.
func (h *PageHandler) ShowListings(w http.ResponseWriter, r *http.Request) {
	h.renderLanding(w, r, http.StatusOK, "listings")
}

// ShowAdmin renders the admin dashboard to admins and answers 403 to anyone
// else. Sending anonymous visitors to the login page is left to the Admin
// route wrapper.
func (h *PageHandler) ShowAdmin(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if user := s.User(); user == nil || !user.IsAdmin() {
		ForbiddenResponse(w, r, h.logger)
		return
	}
	h.renderLanding(w, r, http.StatusOK, "admin")
}

// ShowNotFound renders the not-found page with status 404.
func (h *PageHandler) ShowNotFound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		NotFoundResponse(w, r, h.logger)
		return
	}
	h.renderLanding(w, r, http.StatusNotFound, "not_found")
}

func (h *PageHandler) renderLanding(w http.ResponseWriter, r *http.Request, status int, name string) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.renderer.RenderHTTPStatus(w, status, name, PageData{
		CurrentPath: r.URL.Path,
		CSRFToken:   csrf.TokenFromRequest(r),
		User:        s.User(),
		Toasts:      toastsFrom(s.Notifications.Drain(), false),
	})
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
