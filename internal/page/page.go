// Package page assembles the CampusCircle pages: the login and registration
// forms driven by form controllers, and the public profile view.
package page

import (
	"context"
	"errors"
	"log/slog"

	"github.com/DukeRupert/campuscircle/internal/dom"
	"github.com/DukeRupert/campuscircle/internal/domain"
	"github.com/DukeRupert/campuscircle/internal/form"
	"github.com/DukeRupert/campuscircle/internal/notify"
	"github.com/DukeRupert/campuscircle/internal/router"
)

// ContainerID is the id of the element every form page is mounted into.
const ContainerID = "main-content"

// Page names, used as session keys.
const (
	NameLogin    = "login"
	NameRegister = "register"
)

// AuthService signs users in and creates accounts.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)
	Register(ctx context.Context, params domain.RegisterParams) error
}

// UserService looks up public profiles.
type UserService interface {
	GetUser(ctx context.Context, id int64, token string) (*domain.User, error)
}

// Notifier receives user-facing notifications.
type Notifier interface {
	AddNotification(n notify.Notification)
}

// Navigator receives navigation requests.
type Navigator interface {
	Navigate(path string)
}

// AuthSink stores the credentials of a signed-in user.
type AuthSink interface {
	SetAuth(token string, user *domain.User)
}

// Deps holds the collaborators shared by the form pages of one session.
type Deps struct {
	Validator form.Validator
	Notifier  Notifier
	Loading   form.LoadingIndicator

	// Optional. Router receives navigation when the dispatch context carries
	// no navigator from router.WithNavigator.
	Router   Navigator
	Recorder form.Recorder
	Logger   *slog.Logger
}

func (d Deps) validate() error {
	switch {
	case d.Validator == nil:
		return errors.New("page: validator is required")
	case d.Notifier == nil:
		return errors.New("page: notifier is required")
	case d.Loading == nil:
		return errors.New("page: loading indicator is required")
	}
	return nil
}

// navigate records path on the navigator of the current dispatch, or on
// Router when the dispatch carries none.
func (d Deps) navigate(ctx context.Context, path string) {
	if n, ok := router.FromContext(ctx); ok {
		n.Navigate(path)
		return
	}
	if d.Router != nil {
		d.Router.Navigate(path)
		return
	}
	d.logger().Warn("navigation dropped", "path", path)
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

// FormPage is a mounted page instance holding one form.
type FormPage struct {
	name      string
	container *dom.Container
	ctrl      *form.Controller
}

func newFormPage(name string, cfg form.Config) (*FormPage, error) {
	ctrl, err := form.New(cfg)
	if err != nil {
		return nil, err
	}
	return &FormPage{
		name:      name,
		container: dom.NewContainer(ContainerID),
		ctrl:      ctrl,
	}, nil
}

// Name returns the page name.
func (p *FormPage) Name() string { return p.name }

// Controller returns the page's form controller.
func (p *FormPage) Controller() *form.Controller { return p.ctrl }

// Container returns the element the form is mounted into.
func (p *FormPage) Container() *dom.Container { return p.container }

// Mount renders the form into the page container and binds its listeners.
// A binding failure is shown on the form and also returned.
func (p *FormPage) Mount() error {
	return p.ctrl.Bind(p.container)
}

// Close detaches the form and its listeners.
func (p *FormPage) Close() {
	p.ctrl.Unbind()
}

// HTML renders the container with the mounted form.
func (p *FormPage) HTML() (string, error) {
	return p.container.HTML()
}

// Dispatch delivers a browser submission to the page. values are the posted
// form values; the controller types them into the form unless the attempt is
// dropped. When the posted
// values name the submit control, the submission arrives as a click on that
// control, otherwise as a submit event on the element with id trigger, or
// on the mounted form.
func (p *FormPage) Dispatch(ctx context.Context, trigger string, values map[string]string) (form.Attempt, error) {
	ev := p.event(trigger, values)
	ctx, report := form.WithReport(form.WithInput(ctx, values))
	if ev != nil {
		if err := p.container.Dispatch(ctx, ev); err != nil && !errors.Is(err, dom.ErrNotAttached) {
			return form.AttemptFormMissing, err
		}
	}
	if attempt, ok, err := report.Result(); ok {
		return attempt, err
	}
	// Nothing in the tree handled the event; call the entry point directly
	// so that the controller can fall back to the mounted form.
	return p.ctrl.HandleSubmit(ctx, ev)
}

func (p *FormPage) event(trigger string, values map[string]string) *dom.Event {
	if _, clicked := values[form.SubmitControlName]; clicked {
		if button := p.container.Lookup(p.ctrl.Definition().SubmitID()); button != nil {
			return dom.NewEvent(dom.EventClick, button)
		}
	}
	if target := p.container.Lookup(trigger); target != nil {
		if dom.IsSubmitControl(target) {
			return dom.NewEvent(dom.EventClick, target)
		}
		return dom.NewEvent(dom.EventSubmit, target)
	}
	if f, ok := p.ctrl.Bound(); ok {
		return dom.NewEvent(dom.EventSubmit, f)
	}
	return nil
}
