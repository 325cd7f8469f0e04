package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/campuscircle/internal/domain"
)

// UserNotFoundMessage is the fallback for a failed user lookup.
const UserNotFoundMessage = "User not found"

type userResponse struct {
	UserID      int64    `json:"userId"`
	FullName    string   `json:"fullName"`
	Email       string   `json:"email"`
	Phone       *string  `json:"phone"`
	Address     *string  `json:"address"`
	Role        string   `json:"role"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"createdAt"`
	AvgRating   *float64 `json:"avgRating"`
	RatingCount *int     `json:"ratingCount"`
}

// timestamp layouts the backend has been seen to emit for createdAt.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// GetUser fetches a public user profile. token may be empty.
func (c *Client) GetUser(ctx context.Context, id int64, token string) (*domain.User, error) {
	const op = "api.get_user"

	var resp userResponse
	path := "/users/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, op, http.MethodGet, path, token, nil, &resp, UserNotFoundMessage); err != nil {
		return nil, err
	}

	u := &domain.User{
		ID:        resp.UserID,
		Email:     resp.Email,
		FullName:  resp.FullName,
		Role:      domain.Role(strings.ToLower(resp.Role)),
		Status:    domain.UserStatus(strings.ToLower(resp.Status)),
		CreatedAt: parseCreatedAt(resp.CreatedAt),
		AvgRating: resp.AvgRating,
	}
	if u.ID == 0 {
		u.ID = id
	}
	if resp.Phone != nil {
		u.Phone = *resp.Phone
	}
	if resp.Address != nil {
		u.Address = *resp.Address
	}
	if resp.RatingCount != nil {
		u.RatingCount = *resp.RatingCount
	}
	return u, nil
}

// parseCreatedAt returns nil for missing or unparseable timestamps.
func parseCreatedAt(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
