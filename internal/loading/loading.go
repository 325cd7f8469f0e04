// Package loading tracks whether a browser session is waiting on the backend.
package loading

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Indicator is a session-wide busy flag shared by every form of a session.
// Each SetLoading(true) must be paired with a SetLoading(false); the
// indicator stays active while any submission is outstanding.
type Indicator struct {
	mu     sync.Mutex
	active int
	gauge  prometheus.Gauge
}

// New returns an idle indicator. gauge, when non-nil, tracks outstanding
// submissions across all indicators that share it.
func New(gauge prometheus.Gauge) *Indicator {
	return &Indicator{gauge: gauge}
}

// SetLoading marks the start (true) or end (false) of a submission.
func (i *Indicator) SetLoading(loading bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if loading {
		i.active++
		if i.gauge != nil {
			i.gauge.Inc()
		}
		return
	}
	if i.active == 0 {
		return
	}
	i.active--
	if i.gauge != nil {
		i.gauge.Dec()
	}
}

// Active reports whether any submission is outstanding.
func (i *Indicator) Active() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.active > 0
}

// Release ends every outstanding submission, for sessions being discarded.
func (i *Indicator) Release() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.gauge != nil {
		i.gauge.Sub(float64(i.active))
	}
	i.active = 0
}
