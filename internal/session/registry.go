// Package session provides the in-process registry of live sessions.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry describes one live session. Entries exist from admission until an
// explicit End, the forced-close timer, or a reaper eviction.
type Entry struct {
	Key       string
	UserID    string
	StartedAt time.Time

	closeTimer *time.Timer
}

// Registry tracks sessions that have started but not yet been durably
// finalized. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry

	// closeAfter is the forced-close delay applied to every session
	// (maximum duration plus grace period).
	closeAfter time.Duration
}

// NewRegistry creates an empty registry. closeAfter is how long after
// admission the onExpire callback fires for a session that is never ended.
func NewRegistry(closeAfter time.Duration) *Registry {
	return &Registry{
		entries:    make(map[string]*Entry),
		closeAfter: closeAfter,
	}
}

// Start registers a new session for the user and returns its key. Keys are
// unique for the lifetime of the process and never reused. If onExpire is
// non-nil it is scheduled to run once the forced-close delay elapses, unless
// the session is ended first.
func (r *Registry) Start(userID string, onExpire func(key string)) string {
	now := time.Now()
	key := fmt.Sprintf("%s:%d:%s", userID, now.UnixNano(), uuid.New().String()[:8])

	entry := &Entry{
		Key:       key,
		UserID:    userID,
		StartedAt: now,
	}
	if onExpire != nil {
		entry.closeTimer = time.AfterFunc(r.closeAfter, func() {
			onExpire(key)
		})
	}

	r.mu.Lock()
	r.entries[key] = entry
	r.mu.Unlock()
	return key
}

// End removes a session and cancels its forced-close timer. Ending a key
// that is already gone is a no-op, so double-close races are harmless.
func (r *Registry) End(key string) {
	r.mu.Lock()
	entry, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	r.mu.Unlock()

	if ok && entry.closeTimer != nil {
		entry.closeTimer.Stop()
	}
}

// ActiveCount returns the number of live sessions for the user.
func (r *Registry) ActiveCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, entry := range r.entries {
		if entry.UserID == userID {
			count++
		}
	}
	return count
}

// Len returns the total number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
