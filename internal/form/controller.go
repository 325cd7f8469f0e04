package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/net/html"

	"github.com/DukeRupert/campuscircle/internal/dom"
	"github.com/DukeRupert/campuscircle/internal/domain"
	"github.com/DukeRupert/campuscircle/internal/validation"
)

// Validator checks submitted values against a rule set.
type Validator interface {
	ValidateForm(values map[string]string, rules validation.RuleSet) validation.Result
}

// LoadingIndicator is the application-wide busy flag.
type LoadingIndicator interface {
	SetLoading(loading bool)
}

// Recorder observes how submit attempts end.
type Recorder interface {
	RecordAttempt(form string, attempt Attempt)
}

// SubmitFunc performs the remote operation for a validated form.
// The payload is handed to the success callback.
type SubmitFunc func(ctx context.Context, values map[string]string) (any, error)

// SuccessFunc runs after a successful submission, before loading is cleared.
type SuccessFunc func(ctx context.Context, payload any)

// Config holds the collaborators of a Controller.
type Config struct {
	Definition Definition
	Validator  Validator
	Submit     SubmitFunc
	OnSuccess  SuccessFunc

	// FailureMessage is shown when the submit error carries no user-facing message.
	FailureMessage string

	// Optional.
	Loading  LoadingIndicator
	Recorder Recorder
	Logger   *slog.Logger
}

type binding struct {
	form *html.Node
	regs []dom.Registration
}

// Controller owns one form instance. It renders the form, keeps exactly one
// set of listeners bound to the mounted form, and runs submissions.
//
// The loading flag is the only re-entrancy guard: a submit that arrives
// while another is in flight is dropped, never queued. The controller lock
// is released while the submit action runs.
type Controller struct {
	def       Definition
	rules     validation.RuleSet
	validator Validator
	submit    SubmitFunc
	onSuccess SuccessFunc
	fallback  string
	global    LoadingIndicator
	recorder  Recorder
	logger    *slog.Logger

	mu      sync.Mutex
	state   State
	hidden  map[string]string
	scope   *dom.Container
	binding *binding
}

// New creates a Controller in the idle state.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Definition.Validate(); err != nil {
		return nil, err
	}
	if cfg.Validator == nil {
		return nil, errors.New("form: validator is required")
	}
	if cfg.Submit == nil {
		return nil, errors.New("form: submit action is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fallback := cfg.FailureMessage
	if fallback == "" {
		fallback = DefaultFailureMessage
	}

	return &Controller{
		def:       cfg.Definition,
		rules:     cfg.Definition.Rules(),
		validator: cfg.Validator,
		submit:    cfg.Submit,
		onSuccess: cfg.OnSuccess,
		fallback:  fallback,
		global:    cfg.Loading,
		recorder:  cfg.Recorder,
		logger:    logger.With("form", cfg.Definition.ID),
		state: State{
			FieldErrors: make(map[string]string),
			Values:      make(map[string]string),
		},
		hidden: make(map[string]string),
	}, nil
}

// Definition returns the form's definition.
func (c *Controller) Definition() Definition {
	return c.def
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Values returns the non-secret values extracted by the last submit attempt.
func (c *Controller) Values() map[string]string {
	return c.State().Values
}

// Reset clears errors and remembered values and refreshes the mounted form.
// It has no effect while a submission is in flight.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Loading {
		return
	}
	c.state.FieldErrors = make(map[string]string)
	c.state.GeneralError = ""
	c.state.Values = make(map[string]string)
	c.refreshLocked()
}

// SetHidden adds a hidden input rendered with the form, such as a CSRF token.
// It takes effect on the next render.
func (c *Controller) SetHidden(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hidden[name] = value
}

// Render returns the form markup for the current state.
func (c *Controller) Render() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	markup, err := c.renderLocked()
	if err != nil {
		c.logger.Error("failed to render form", "error", err)
		return ""
	}
	return markup
}

func (c *Controller) renderLocked() (string, error) {
	return renderMarkup(c.def, c.hidden, c.state)
}

// Bind mounts the rendered form into scope and attaches one submit listener
// on the form and one click listener on its submit control. Listeners from a
// previous Bind are removed first, so repeated calls never accumulate them.
//
// A BindingError is logged and returned; it is not fatal.
func (c *Controller) Bind(scope *dom.Container) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bindLocked(scope)
}

func (c *Controller) bindLocked(scope *dom.Container) error {
	const op = "form.bind"

	old := c.unbindLocked()
	if scope == nil {
		return c.bindingFailed(&BindingError{Op: op, Form: c.def.ID, Reason: "container not found"})
	}
	if c.scope != nil && c.scope != scope {
		c.scope.Remove(old)
		old = nil
	}
	c.scope = scope
	if c.state.GeneralError == BindingFailureMessage {
		c.state.GeneralError = ""
	}

	markup, err := c.renderLocked()
	if err != nil {
		return c.bindingFailed(&BindingError{Op: op, Form: c.def.ID, Reason: "render failed", Err: err})
	}
	formNode, err := scope.Mount(markup, old)
	if err != nil {
		return c.bindingFailed(&BindingError{Op: op, Form: c.def.ID, Reason: "mount failed", Err: err})
	}
	if !dom.IsElement(formNode, "form") {
		scope.Remove(formNode)
		return c.bindingFailed(&BindingError{Op: op, Form: c.def.ID, Reason: "form element not found"})
	}

	b := &binding{form: formNode}
	b.regs = append(b.regs, scope.AddEventListener(formNode, dom.EventSubmit, func(ctx context.Context, ev *dom.Event) {
		_, _ = c.HandleSubmit(ctx, ev)
	}))
	c.binding = b

	button := scope.SubmitControl(formNode)
	if button == nil {
		return c.bindingFailed(&BindingError{Op: op, Form: c.def.ID, Reason: "submit control not found"})
	}
	b.regs = append(b.regs, scope.AddEventListener(button, dom.EventClick, func(ctx context.Context, ev *dom.Event) {
		// The native submit this click would cause is suppressed; the click
		// itself is the one submit attempt.
		ev.PreventDefault()
		_, _ = c.HandleSubmit(ctx, ev)
	}))

	return nil
}

// unbindLocked removes the current listeners and returns the form node they
// were attached to, which may be nil.
func (c *Controller) unbindLocked() *html.Node {
	if c.binding == nil {
		return nil
	}
	for _, reg := range c.binding.regs {
		reg.Remove()
	}
	old := c.binding.form
	c.binding = nil
	return old
}

func (c *Controller) bindingFailed(err *BindingError) error {
	c.logger.Error("form binding failed", "reason", err.Reason, "error", err)
	c.state.GeneralError = BindingFailureMessage
	c.record(AttemptBindingFailed)
	return err
}

// Unbind removes the listeners and the mounted form from the container.
func (c *Controller) Unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.unbindLocked()
	if c.scope != nil && old != nil {
		c.scope.Remove(old)
	}
	c.scope = nil
}

// Bound reports whether listeners are currently attached, and to which form node.
func (c *Controller) Bound() (*html.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.binding == nil {
		return nil, false
	}
	return c.binding.form, true
}

// SetLoading toggles the loading flag and refreshes the mounted form.
func (c *Controller) SetLoading(loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Loading = loading
	c.refreshLocked()
}

// refreshLocked re-renders and re-binds into the current container, if any.
func (c *Controller) refreshLocked() {
	if c.scope == nil {
		return
	}
	if err := c.bindLocked(c.scope); err != nil {
		c.logger.Warn("form refresh failed", "error", err)
	}
}

// HandleSubmit is the single entry point for every submit trigger.
//
// It cancels the event's default action, drops the attempt if a submission is
// already in flight, resolves the form from the event, types in any values
// carried by WithInput, clears previous
// errors, validates, and only then invokes the submit action. Loading is
// cleared when the action resolves, whether it succeeded, failed or panicked.
func (c *Controller) HandleSubmit(ctx context.Context, ev *dom.Event) (attempt Attempt, err error) {
	const op = "form.submit"

	if r := reportFrom(ctx); r != nil {
		defer func() { r.store(attempt, err) }()
	}

	if ev != nil {
		ev.PreventDefault()
	}

	c.mu.Lock()
	if c.state.Loading {
		c.mu.Unlock()
		c.logger.Debug("submit dropped while loading")
		c.record(AttemptDropped)
		return AttemptDropped, nil
	}

	formNode := c.resolveFormLocked(ev)
	if formNode == nil {
		c.state.GeneralError = FormNotFoundMessage
		c.refreshLocked()
		c.mu.Unlock()
		err := &BindingError{Op: op, Form: c.def.ID, Reason: "form not found for submit"}
		c.logger.Warn("submit without a form", "error", err)
		c.record(AttemptFormMissing)
		return AttemptFormMissing, err
	}
	if posted := inputFrom(ctx); posted != nil {
		c.scope.Input(formNode, posted)
	}
	values := c.scope.Values(formNode)

	c.state.FieldErrors = make(map[string]string)
	c.state.GeneralError = ""
	c.state.Values = c.publicValues(values)

	result := c.validator.ValidateForm(values, c.rules)
	if !result.IsValid {
		for field, msg := range result.Errors {
			c.state.FieldErrors[field] = msg
		}
		c.refreshLocked()
		c.mu.Unlock()
		c.logger.Debug("submit rejected by validation", "fields", len(result.Errors))
		c.record(AttemptInvalid)
		return AttemptInvalid, validationFailure(op, result.Errors)
	}

	c.state.Loading = true
	c.refreshLocked()
	c.mu.Unlock()
	if c.global != nil {
		c.global.SetLoading(true)
	}
	defer c.finishSubmit()

	outcome, err := c.invoke(ctx, values)
	if !outcome.OK {
		c.mu.Lock()
		c.state.GeneralError = outcome.Message
		c.mu.Unlock()
		c.logger.Warn("submit failed", "code", domain.ErrorCode(err), "error", err)
		c.record(AttemptFailed)
		return AttemptFailed, &SubmitError{Op: op, Form: c.def.ID, Message: outcome.Message, Err: err}
	}

	if c.onSuccess != nil {
		c.onSuccess(ctx, outcome.Payload)
	}
	c.logger.Info("submit succeeded")
	c.record(AttemptSucceeded)
	return AttemptSucceeded, nil
}

// resolveFormLocked finds the form to read values from: the event target when
// it is a form, the form enclosing the target, or the form in the container.
func (c *Controller) resolveFormLocked(ev *dom.Event) *html.Node {
	if c.scope == nil {
		return nil
	}
	if ev != nil {
		for _, n := range []*html.Node{ev.Target, ev.CurrentTarget()} {
			if n == nil {
				continue
			}
			if f := c.scope.EnclosingForm(n); f != nil {
				return f
			}
		}
	}
	return c.scope.Form()
}

// invoke calls the submit action and resolves it to an Outcome. A panic in
// the action becomes an internal error so that loading is still cleared.
func (c *Controller) invoke(ctx context.Context, values map[string]string) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.Internal(fmt.Errorf("panic: %v", r), "form.invoke", "submit action panicked")
			outcome = Failure(c.fallback)
		}
	}()

	payload, err := c.submit(ctx, values)
	if err != nil {
		return Failure(domain.UserMessage(err, c.fallback)), err
	}
	return Success(payload), nil
}

func (c *Controller) finishSubmit() {
	c.mu.Lock()
	c.state.Loading = false
	c.refreshLocked()
	c.mu.Unlock()
	if c.global != nil {
		c.global.SetLoading(false)
	}
}

func (c *Controller) publicValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(c.def.Fields))
	for _, f := range c.def.Fields {
		if !f.Secret() {
			out[f.Name] = values[f.Name]
		}
	}
	return out
}

func (c *Controller) record(attempt Attempt) {
	if c.recorder != nil {
		c.recorder.RecordAttempt(c.def.ID, attempt)
	}
}
