package session

import (
	"context"
	"log"
	"time"
)

// RunReaper periodically evicts sessions whose owner never called End.
// The threshold must comfortably exceed the forced-close delay so a session
// that is merely long-running within policy is never reaped; this is a
// backstop against connection handlers that crash between Start and End.
func (r *Registry) RunReaper(ctx context.Context, interval, threshold time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepStale(time.Now(), threshold)
		}
	}
}

// sweepStale removes every entry older than the threshold, cancelling its
// forced-close timer. It returns the evicted keys.
func (r *Registry) sweepStale(now time.Time, threshold time.Duration) []string {
	r.mu.Lock()
	var evicted []*Entry
	for key, entry := range r.entries {
		if now.Sub(entry.StartedAt) > threshold {
			delete(r.entries, key)
			evicted = append(evicted, entry)
		}
	}
	r.mu.Unlock()

	keys := make([]string, 0, len(evicted))
	for _, entry := range evicted {
		if entry.closeTimer != nil {
			entry.closeTimer.Stop()
		}
		keys = append(keys, entry.Key)
		log.Printf("WARN: reaped stale session %s (user=%s, age=%s)", entry.Key, entry.UserID, now.Sub(entry.StartedAt))
	}
	return keys
}
