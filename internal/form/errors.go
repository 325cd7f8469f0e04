package form

import (
	"fmt"

	"github.com/DukeRupert/campuscircle/internal/domain"
)

// User-facing messages for failures the controller reports itself.
const (
	FormNotFoundMessage   = "Form not found. Please refresh the page and try again."
	BindingFailureMessage = "This form could not be loaded. Please refresh the page and try again."
	DefaultFailureMessage = "Something went wrong. Please try again."
)

// BindingError reports that the container, form element or submit control
// needed for event binding could not be found. It is non-fatal: the
// controller logs it and shows a general error.
type BindingError struct {
	Op     string
	Form   string
	Reason string
	Err    error
}

func (e *BindingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: form %s: %s: %v", e.Op, e.Form, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: form %s: %s", e.Op, e.Form, e.Reason)
}

func (e *BindingError) Unwrap() error { return e.Err }

// SubmitError reports that the submit action failed. Message is what the
// user sees in the general error banner.
type SubmitError struct {
	Op      string
	Form    string
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("%s: form %s: %v", e.Op, e.Form, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Code returns the domain error code of the underlying failure.
func (e *SubmitError) Code() string {
	return domain.ErrorCode(e.Err)
}

// validationFailure wraps field errors the way the rest of the application reports them.
func validationFailure(op string, fields map[string]string) *domain.ValidationError {
	return domain.NewValidationError(op, fields)
}
