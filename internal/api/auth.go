package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/DukeRupert/campuscircle/internal/domain"
)

// Fallback messages used when a failed response carries no message.
const (
	LoginFailedMessage    = "Login failed"
	RegisterFailedMessage = "Registration failed"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	FullName        string  `json:"fullName"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirmPassword"`
	Phone           *string `json:"phone"`
	Address         *string `json:"address"`
}

type authResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	Type         string `json:"type"`
	User         struct {
		UserID   int64  `json:"userId"`
		Email    string `json:"email"`
		FullName string `json:"fullName"`
		Role     string `json:"role"`
	} `json:"user"`
}

// Login exchanges credentials for a bearer token and the account summary.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	const op = "api.login"

	var resp authResponse
	err := c.do(ctx, op, http.MethodPost, "/auth/login", "",
		loginRequest{Email: email, Password: password}, &resp, LoginFailedMessage)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, domain.Internal(nil, op, "login response carried no token")
	}

	return &domain.LoginResult{
		Token:        resp.Token,
		RefreshToken: resp.RefreshToken,
		User: &domain.User{
			ID:       resp.User.UserID,
			Email:    resp.User.Email,
			FullName: resp.User.FullName,
			Role:     domain.Role(strings.ToLower(resp.User.Role)),
		},
	}, nil
}

// Register creates an account. It does not log the user in.
func (c *Client) Register(ctx context.Context, params domain.RegisterParams) error {
	const op = "api.register"

	req := registerRequest{
		FullName:        params.FullName,
		Email:           params.Email,
		Password:        params.Password,
		ConfirmPassword: params.ConfirmPassword,
		Phone:           params.Phone,
		Address:         params.Address,
	}
	return c.do(ctx, op, http.MethodPost, "/auth/register", "", req, nil, RegisterFailedMessage)
}
