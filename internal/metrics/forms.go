package metrics

import "github.com/DukeRupert/campuscircle/internal/form"

// FormRecorder counts form submit attempts. The zero value is ready to use.
type FormRecorder struct{}

// RecordAttempt implements form.Recorder.
func (FormRecorder) RecordAttempt(formID string, attempt form.Attempt) {
	FormAttemptsTotal.WithLabelValues(formID, string(attempt)).Inc()
}

// ProfileLookup records the result of a profile view.
func ProfileLookup(result string) {
	ProfileLookupsTotal.WithLabelValues(result).Inc()
}

// LoginSucceeded records a successful login for role.
func LoginSucceeded(role string) {
	if role == "" {
		role = "unknown"
	}
	LoginsTotal.WithLabelValues(role).Inc()
}
