// Package domain contains core business types shared by the web tier.
//
// The CampusCircle backend owns users and credentials. The types here are the
// web tier's view of that data: what the login, registration and profile pages
// read and send. They carry no persistence concerns.
package domain

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Role is the account role assigned by the backend.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// UserStatus is the account status reported by the backend.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// User is a CampusCircle account as returned by login and user lookup.
//
// Optional backend fields use pointers or zero values: a nil CreatedAt means
// the backend did not report it, a nil AvgRating means the user has no ratings.
type User struct {
	ID          int64
	Email       string
	FullName    string
	Phone       string
	Address     string
	Role        Role
	Status      UserStatus
	CreatedAt   *time.Time
	AvgRating   *float64
	RatingCount int
}

// IsAdmin reports whether the user holds the admin role. The backend
// serialises roles in either case, so the comparison ignores case.
func (u *User) IsAdmin() bool {
	return strings.EqualFold(string(u.Role), string(RoleAdmin))
}

// DisplayName returns the user's full name or email if name is empty.
func (u *User) DisplayName() string {
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}
	return u.Email
}

// Initials returns the upper-cased first letters of at most two words of the
// user's full name, or "??" when there is no name.
func (u *User) Initials() string {
	words := strings.Fields(u.FullName)
	if len(words) == 0 {
		return "??"
	}
	if len(words) > 2 {
		words = words[:2]
	}
	var b strings.Builder
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// RegisterParams contains the values sent to the backend to create an account.
// Phone and Address are nil when the user left them empty.
type RegisterParams struct {
	FullName        string
	Email           string
	Password        string
	ConfirmPassword string
	Phone           *string
	Address         *string
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	User         *User
	Token        string // Bearer token for subsequent API calls
	RefreshToken string
}

// OptionalString returns nil for a blank string and a pointer to the trimmed value otherwise.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
