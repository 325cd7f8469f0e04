package form

import (
	"context"
	"sync"
)

type reportKey struct{}

// Report receives the result of a submit attempt that was triggered through
// event dispatch, where listeners have no return value.
type Report struct {
	mu      sync.Mutex
	set     bool
	attempt Attempt
	err     error
}

// WithReport returns a context that collects the result of the first submit
// attempt handled with it.
func WithReport(ctx context.Context) (context.Context, *Report) {
	r := &Report{}
	return context.WithValue(ctx, reportKey{}, r), r
}

// Result returns the recorded attempt and its error. ok is false when no
// controller handled a submit with the report's context.
func (r *Report) Result() (attempt Attempt, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt, r.set, r.err
}

func (r *Report) store(attempt Attempt, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.set {
		return
	}
	r.attempt, r.err, r.set = attempt, err, true
}

func reportFrom(ctx context.Context) *Report {
	if ctx == nil {
		return nil
	}
	r, _ := ctx.Value(reportKey{}).(*Report)
	return r
}
