// Package form drives a single HTML form through its interaction lifecycle:
// render, bind listeners, validate on submit, run the submit action
// asynchronously with respect to other events, and show the outcome.
package form

import (
	"errors"
	"fmt"

	"github.com/DukeRupert/campuscircle/internal/validation"
)

// DefaultBusyLabel is shown on the submit control while a submission is in flight.
const DefaultBusyLabel = "Loading..."

// FieldSpec describes one input of a form.
type FieldSpec struct {
	Name        string
	Label       string
	InputType   string // HTML input type: text, email, password, tel, textarea
	Placeholder string
	HelpText    string
	Required    bool
	Rule        validation.Rule
}

// Secret reports whether the field's value must never be rendered back.
func (f FieldSpec) Secret() bool {
	return f.InputType == "password"
}

// DOMID returns the id attribute of the field's input element.
func (f FieldSpec) DOMID() string {
	return "field-" + f.Name
}

// Definition is the immutable description of a form.
type Definition struct {
	ID          string
	Action      string // URL the form posts to
	Fields      []FieldSpec
	SubmitLabel string
	BusyLabel   string
}

// SubmitID returns the id attribute of the submit control.
func (d Definition) SubmitID() string {
	return d.ID + "-submit"
}

// Rules builds the rule set from the fields that declare a rule.
func (d Definition) Rules() validation.RuleSet {
	rules := make(validation.RuleSet, len(d.Fields))
	for _, f := range d.Fields {
		if f.Rule.Kind != "" {
			rules[f.Name] = f.Rule
		}
	}
	return rules
}

// Field returns the spec for name and whether it exists.
func (d Definition) Field(name string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Validate reports structural problems with the definition.
func (d Definition) Validate() error {
	if d.ID == "" {
		return errors.New("form: definition ID is required")
	}
	if d.SubmitLabel == "" {
		return fmt.Errorf("form %s: submit label is required", d.ID)
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("form %s: field name is required", d.ID)
		}
		if seen[f.Name] {
			return fmt.Errorf("form %s: duplicate field %q", d.ID, f.Name)
		}
		seen[f.Name] = true
	}
	for _, f := range d.Fields {
		if f.Rule.Kind == validation.KindConfirmPassword && !seen[f.Rule.CompareField] {
			return fmt.Errorf("form %s: field %q compares against unknown field %q", d.ID, f.Name, f.Rule.CompareField)
		}
	}
	return nil
}

// State is the mutable interaction state of a form.
type State struct {
	Loading      bool
	FieldErrors  map[string]string
	GeneralError string

	// Values holds the last submitted non-secret values, rendered back into the inputs.
	Values map[string]string
}

func (s State) clone() State {
	out := State{Loading: s.Loading, GeneralError: s.GeneralError}
	out.FieldErrors = make(map[string]string, len(s.FieldErrors))
	for k, v := range s.FieldErrors {
		out.FieldErrors[k] = v
	}
	out.Values = make(map[string]string, len(s.Values))
	for k, v := range s.Values {
		out.Values[k] = v
	}
	return out
}

// Attempt classifies how a submit event was handled.
type Attempt string

const (
	AttemptDropped     Attempt = "dropped"       // a submission was already in flight
	AttemptFormMissing Attempt = "form_missing"  // no form element could be resolved
	AttemptInvalid     Attempt = "invalid"       // validation failed, nothing submitted
	AttemptFailed      Attempt = "submit_failed" // the submit action returned an error
	AttemptSucceeded   Attempt = "succeeded"

	// AttemptBindingFailed is recorded when listeners could not be attached.
	AttemptBindingFailed Attempt = "binding_failed"
)

// Outcome is the resolved result of a submit action.
type Outcome struct {
	OK      bool
	Payload any    // set when OK
	Message string // user-facing failure message when !OK
}

// Success returns a successful outcome carrying payload.
func Success(payload any) Outcome { return Outcome{OK: true, Payload: payload} }

// Failure returns a failed outcome with a user-facing message.
func Failure(message string) Outcome { return Outcome{Message: message} }
