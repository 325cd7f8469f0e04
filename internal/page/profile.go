package page

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"html/template"
	"log/slog"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DukeRupert/campuscircle/internal/domain"
	"github.com/DukeRupert/campuscircle/internal/metrics"
	"github.com/DukeRupert/campuscircle/internal/router"
)

// Profile display fallbacks.
const (
	NotProvided   = "Not provided"
	UnknownDate   = "Unknown"
	NoRatings     = "No ratings yet"
	DefaultRole   = "Student"
	DefaultStatus = "Active"

	memberSinceLayout = "January 2, 2006"
)

// strict is safe for concurrent use once built.
var strict = bluemonday.StrictPolicy()

// Profile is the display form of a user profile. Every string is plain
// text; markup from the backend has been stripped.
type Profile struct {
	Initials     string
	FullName     string
	Email        string
	Role         string
	Phone        string
	Address      string
	MemberSince  string
	Status       string
	StatusActive bool
	Rating       string
	RatingSuffix string
	RatingCount  int
}

// NewProfile converts a user into its display form.
func NewProfile(u *domain.User) Profile {
	p := Profile{
		FullName:    plain(u.FullName),
		Email:       plain(u.Email),
		Role:        badge(string(u.Role), DefaultRole),
		Phone:       orNotProvided(u.Phone),
		Address:     orNotProvided(u.Address),
		MemberSince: UnknownDate,
		Status:      badge(string(u.Status), DefaultStatus),
		Rating:      NoRatings,
		RatingCount: u.RatingCount,
	}
	p.Initials = (&domain.User{FullName: p.FullName}).Initials()
	p.StatusActive = u.Status == "" || strings.EqualFold(string(u.Status), string(domain.UserStatusActive))

	if u.CreatedAt != nil && !u.CreatedAt.IsZero() {
		p.MemberSince = u.CreatedAt.Format(memberSinceLayout)
	}
	if u.AvgRating != nil && *u.AvgRating != 0 {
		p.Rating = strconv.FormatFloat(*u.AvgRating, 'f', -1, 64) + "/5.0"
	}
	if u.RatingCount > 0 {
		p.RatingSuffix = fmt.Sprintf("(%d reviews)", u.RatingCount)
	}
	return p
}

// plain strips markup from remote text and decodes entities, leaving text
// for html/template to escape exactly once.
func plain(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

func orNotProvided(s string) string {
	if s = plain(s); s == "" {
		return NotProvided
	}
	return s
}

func badge(s, fallback string) string {
	if s = plain(s); s == "" {
		return fallback
	}
	return cases.Title(language.English).String(s)
}

// ParseUserID accepts positive decimal user IDs.
func ParseUserID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "", "undefined", "null":
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ProfileView renders the public profile of another user.
type ProfileView struct {
	users  UserService
	router Navigator
	logger *slog.Logger
}

// NewProfileView creates a profile view that reports navigation to nav.
func NewProfileView(users UserService, nav Navigator, logger *slog.Logger) *ProfileView {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ProfileView{users: users, router: nav, logger: logger}
}

// Render returns the markup for the profile of rawID. A malformed ID
// navigates to the not-found page and returns an EINVALID error. A failed
// lookup renders the user-not-found view.
func (v *ProfileView) Render(ctx context.Context, rawID, token string) (string, error) {
	const op = "page.profile"

	id, ok := ParseUserID(rawID)
	if !ok {
		v.logger.Warn("invalid user id", "raw_id", rawID)
		metrics.ProfileLookup("invalid_id")
		v.router.Navigate(router.PathNotFound)
		return "", domain.Invalid(op, "invalid user id")
	}

	u, err := v.users.GetUser(ctx, id, token)
	if err != nil || u == nil {
		v.logger.Info("profile lookup failed", "user_id", id, "code", domain.ErrorCode(err), "error", err)
		metrics.ProfileLookup("not_found")
		return execute(notFoundTemplate, struct{ ListingsPath string }{router.PathListings})
	}

	metrics.ProfileLookup("found")
	return execute(profileTemplate, NewProfile(u))
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render profile: %w", err)
	}
	return buf.String(), nil
}

var profileTemplate = template.Must(template.New("profile").Parse(`<div class="card shadow-custom" id="user-profile">
<div class="card-header bg-white"><h3 class="mb-0">User Profile</h3></div>
<div class="card-body"><div class="row">
<div class="col-md-4 text-center mb-4 mb-md-0">
<div class="mb-3"><div class="avatar bg-primary text-white rounded-circle d-inline-flex align-items-center justify-content-center">{{.Initials}}</div></div>
<h5 class="mb-1">{{.FullName}}</h5>
<p class="text-muted mb-0">{{.Email}}</p>
<span class="badge bg-secondary mt-2">{{.Role}}</span>
</div>
<div class="col-md-8"><dl class="row g-3">
<div class="col-sm-6"><dt class="form-label fw-bold">Full Name</dt><dd class="mb-0">{{.FullName}}</dd></div>
<div class="col-sm-6"><dt class="form-label fw-bold">Email</dt><dd class="mb-0">{{.Email}}</dd></div>
<div class="col-sm-6"><dt class="form-label fw-bold">Phone Number</dt><dd class="mb-0">{{.Phone}}</dd></div>
<div class="col-sm-6"><dt class="form-label fw-bold">Address</dt><dd class="mb-0">{{.Address}}</dd></div>
<div class="col-sm-6"><dt class="form-label fw-bold">Member Since</dt><dd class="mb-0">{{.MemberSince}}</dd></div>
<div class="col-sm-6"><dt class="form-label fw-bold">Account Status</dt><dd class="mb-0"><span class="badge {{if .StatusActive}}bg-success{{else}}bg-warning{{end}}">{{.Status}}</span></dd></div>
<div class="col-sm-6"><dt class="form-label fw-bold">Average Rating</dt><dd class="mb-0">{{.Rating}}{{if .RatingSuffix}} {{.RatingSuffix}}{{end}}</dd></div>
<div class="col-sm-6"><dt class="form-label fw-bold">Rating Count</dt><dd class="mb-0">{{.RatingCount}} reviews</dd></div>
</dl></div>
</div></div>
</div>`))

var notFoundTemplate = template.Must(template.New("profile-not-found").Parse(`<div class="text-center" id="user-not-found">
<h2 class="mb-3">User Not Found</h2>
<p class="text-muted mb-4">The user profile you're looking for doesn't exist or has been removed.</p>
<a class="btn btn-primary" href="{{.ListingsPath}}">Browse Listings</a>
</div>`))
