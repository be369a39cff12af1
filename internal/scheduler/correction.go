package scheduler

import (
	"sync"
	"time"
)

// correctionCache is the process-local, mutex-guarded, TTL'd map of
// recently-corrected events — the one deliberately bounded piece of
// shared mutable state in the system, kept local rather than in Redis.
type correctionCache struct {
	mu      sync.Mutex
	entries map[int64]time.Time
	ttl     time.Duration
}

func newCorrectionCache(ttl time.Duration) *correctionCache {
	return &correctionCache{entries: make(map[int64]time.Time), ttl: ttl}
}

// recentlyCorrected reports whether eventID was corrected within the
// cooldown window, preventing re-entrant corrections.
func (c *correctionCache) recentlyCorrected(eventID int64, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.entries[eventID]
	if !ok {
		return false
	}
	if now.After(expiry) {
		delete(c.entries, eventID)
		return false
	}
	return true
}

// markCorrected records eventID as corrected until now+ttl.
func (c *correctionCache) markCorrected(eventID int64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[eventID] = now.Add(c.ttl)
}
