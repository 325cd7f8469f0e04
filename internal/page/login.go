package page

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DukeRupert/campuscircle/internal/domain"
	"github.com/DukeRupert/campuscircle/internal/form"
	"github.com/DukeRupert/campuscircle/internal/metrics"
	"github.com/DukeRupert/campuscircle/internal/notify"
	"github.com/DukeRupert/campuscircle/internal/router"
	"github.com/DukeRupert/campuscircle/internal/validation"
)

// LoginFailureMessage is shown when a failed login carries no message of its own.
const LoginFailureMessage = "Login failed. Please check your credentials and try again."

// LoginFormID is the id of the login form element.
const LoginFormID = "login-form"

// LoginDefinition describes the login form for accounts on allowedDomain.
func LoginDefinition(allowedDomain string) form.Definition {
	return form.Definition{
		ID:          LoginFormID,
		Action:      router.PathLogin,
		SubmitLabel: "Login",
		Fields: []form.FieldSpec{
			emailField(allowedDomain),
			{
				Name:      "password",
				Label:     "Password",
				InputType: "password",
				Required:  true,
				Rule:      validation.Required("Password"),
			},
		},
	}
}

func emailField(allowedDomain string) form.FieldSpec {
	return form.FieldSpec{
		Name:        "email",
		Label:       "VinUni Email",
		InputType:   "email",
		Placeholder: "your.email@" + allowedDomain,
		HelpText:    fmt.Sprintf("Only @%s emails are accepted", allowedDomain),
		Required:    true,
		Rule:        validation.CampusEmail(),
	}
}

// NewLoginPage builds the login page. On success the token is stored in
// sink, a welcome notification is queued and the user is sent to the admin
// dashboard or the home page depending on role.
func NewLoginPage(deps Deps, allowedDomain string, auth AuthService, sink AuthSink) (*FormPage, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if auth == nil || sink == nil {
		return nil, errors.New("page: login needs an auth service and a credential sink")
	}

	return newFormPage(NameLogin, form.Config{
		Definition: LoginDefinition(allowedDomain),
		Validator:  deps.Validator,
		Submit: func(ctx context.Context, values map[string]string) (any, error) {
			res, err := auth.Login(ctx, strings.TrimSpace(values["email"]), values["password"])
			if err != nil {
				return nil, err
			}
			if res == nil || res.User == nil {
				return nil, domain.Internal(nil, "page.login", "login response without a user")
			}
			return res, nil
		},
		OnSuccess: func(ctx context.Context, payload any) {
			res := payload.(*domain.LoginResult)
			sink.SetAuth(res.Token, res.User)
			metrics.LoginSucceeded(string(res.User.Role))

			deps.Notifier.AddNotification(notify.Notification{
				Type:    notify.TypeSuccess,
				Title:   "Login Successful",
				Message: fmt.Sprintf("Welcome back, %s!", res.User.DisplayName()),
			})
			if res.User.IsAdmin() {
				deps.navigate(ctx, router.PathAdmin)
			} else {
				deps.navigate(ctx, router.PathHome)
			}
		},
		FailureMessage: LoginFailureMessage,
		Loading:        deps.Loading,
		Recorder:       deps.Recorder,
		Logger:         deps.logger(),
	})
}
