package page

import (
	"context"
	"errors"
	"strings"

	"github.com/DukeRupert/campuscircle/internal/domain"
	"github.com/DukeRupert/campuscircle/internal/form"
	"github.com/DukeRupert/campuscircle/internal/notify"
	"github.com/DukeRupert/campuscircle/internal/router"
	"github.com/DukeRupert/campuscircle/internal/validation"
)

// RegisterFailureMessage is shown when a failed registration carries no message of its own.
const RegisterFailureMessage = "Registration failed. Please try again."

// RegisterFormID is the id of the registration form element.
const RegisterFormID = "register-form"

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// RegisteredPath is where a new account is sent to sign in.
const RegisteredPath = router.PathLogin + "?registered=1"

// RegisterDefinition describes the registration form for accounts on allowedDomain.
func RegisterDefinition(allowedDomain string) form.Definition {
	return form.Definition{
		ID:          RegisterFormID,
		Action:      router.PathRegister,
		SubmitLabel: "Create Account",
		Fields: []form.FieldSpec{
			{Name: "fullName", Label: "Full Name", InputType: "text", Required: true, Rule: validation.FullName()},
			emailField(allowedDomain),
			{
				Name:      "password",
				Label:     "Password",
				InputType: "password",
				HelpText:  "Minimum 6 characters",
				Required:  true,
				Rule:      validation.Password(MinPasswordLength),
			},
			{
				Name:      "confirmPassword",
				Label:     "Confirm Password",
				InputType: "password",
				Required:  true,
				Rule:      validation.ConfirmPassword("password"),
			},
			{Name: "phone", Label: "Phone Number", InputType: "tel", Rule: validation.Phone()},
			{Name: "address", Label: "Address", InputType: "text", Placeholder: "Dorm room, building, etc.", Rule: validation.Address()},
		},
	}
}

// RegisterParams builds the backend request from validated form values.
// Empty phone and address are sent as null.
func RegisterParams(values map[string]string) domain.RegisterParams {
	return domain.RegisterParams{
		FullName:        strings.TrimSpace(values["fullName"]),
		Email:           strings.TrimSpace(values["email"]),
		Password:        values["password"],
		ConfirmPassword: values["confirmPassword"],
		Phone:           domain.OptionalString(values["phone"]),
		Address:         domain.OptionalString(values["address"]),
	}
}

// NewRegisterPage builds the registration page. A new account is not signed
// in; the user is sent to the login page.
func NewRegisterPage(deps Deps, allowedDomain string, auth AuthService) (*FormPage, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, errors.New("page: register needs an auth service")
	}

	return newFormPage(NameRegister, form.Config{
		Definition: RegisterDefinition(allowedDomain),
		Validator:  deps.Validator,
		Submit: func(ctx context.Context, values map[string]string) (any, error) {
			return nil, auth.Register(ctx, RegisterParams(values))
		},
		OnSuccess: func(ctx context.Context, _ any) {
			deps.Notifier.AddNotification(notify.Notification{
				Type:    notify.TypeSuccess,
				Title:   "Registration Successful",
				Message: "Your account has been created! Please sign in to get started.",
			})
			deps.navigate(ctx, RegisteredPath)
		},
		FailureMessage: RegisterFailureMessage,
		Loading:        deps.Loading,
		Recorder:       deps.Recorder,
		Logger:         deps.logger(),
	})
}
