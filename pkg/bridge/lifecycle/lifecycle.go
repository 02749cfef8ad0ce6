package lifecycle

import "sync/atomic"

// Lifecycle holds the shared process state the readiness probe consults
// while graceful shutdown drains live calls.
type Lifecycle struct {
	draining atomic.Bool
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}
