// Package sessions tracks the live call sessions of the process: lookup by
// call id, exactly-once removal at finalization, and the cancel/wait hooks
// graceful shutdown needs.
package sessions

import (
	"context"
	"sync"

	"github.com/hearthline/callbridge/pkg/bridge/relay"
)

type Registry struct {
	mu      sync.Mutex
	entries map[string]*trackedCall
	wg      sync.WaitGroup
}

type trackedCall struct {
	sess   *relay.Session
	cancel func()
	once   sync.Once
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*trackedCall)}
}

// GetOrCreate returns the session for callID, creating it when absent. The
// caller fields only apply on creation; an existing session keeps its own.
func (r *Registry) GetOrCreate(callID, callerName, callerNumber string) (sess *relay.Session, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[string]*trackedCall)
	}
	if entry, ok := r.entries[callID]; ok {
		return entry.sess, false
	}
	entry := &trackedCall{sess: relay.NewSession(callID, callerName, callerNumber)}
	r.entries[callID] = entry
	r.wg.Add(1)
	return entry.sess, true
}

// Get returns the session for callID if one is live.
func (r *Registry) Get(callID string) (*relay.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[callID]
	if !ok {
		return nil, false
	}
	return entry.sess, true
}

// SetCancel attaches the cancel hook that CancelAll fires for this call.
func (r *Registry) SetCancel(callID string, cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[callID]; ok {
		entry.cancel = cancel
	}
}

// Remove drops the session. The wait-group release fires exactly once even
// when Remove races with itself during double finalization.
func (r *Registry) Remove(callID string) bool {
	r.mu.Lock()
	entry, ok := r.entries[callID]
	if ok {
		delete(r.entries, callID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	entry.once.Do(r.wg.Done)
	return true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CancelAll fires every registered cancel hook. Used after the drain grace
// period expires.
func (r *Registry) CancelAll() (canceled int) {
	var cancels []func()
	r.mu.Lock()
	for _, entry := range r.entries {
		if entry.cancel != nil {
			cancels = append(cancels, entry.cancel)
		}
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every session has been removed, or ctx expires. Returns
// false on timeout.
func (r *Registry) Wait(ctx context.Context) bool {
	if ctx == nil {
		r.wg.Wait()
		return true
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
