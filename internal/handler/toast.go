package handler

import (
	"io"

	"github.com/DukeRupert/campuscircle/internal/notify"
)

// toastDismissSeconds is how long an auto-dismissing toast stays visible.
const toastDismissSeconds = 5

// ToastData holds data for rendering a toast notification.
type ToastData struct {
	Type        notify.Type
	Title       string
	Message     string
	AutoDismiss int // seconds, 0 keeps the toast until closed

	// OOB wraps the toast for an htmx out-of-band swap into #toast-container.
	OOB bool
}

func toastsFrom(ns []notify.Notification, oob bool) []ToastData {
	if len(ns) == 0 {
		return nil
	}
	toasts := make([]ToastData, 0, len(ns))
	for _, n := range ns {
		t := ToastData{Type: n.Type, Title: n.Title, Message: n.Message, OOB: oob}
		if n.AutoDismiss {
			t.AutoDismiss = toastDismissSeconds
		}
		toasts = append(toasts, t)
	}
	return toasts
}

// writeToasts renders toasts with the toast partial.
func writeToasts(w io.Writer, r TemplateRenderer, toasts []ToastData) error {
	for _, t := range toasts {
		if err := r.RenderPartial(w, "toast", t); err != nil {
			return err
		}
	}
	return nil
}
