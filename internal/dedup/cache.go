package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultWindow is how long a processed (sender, body) pair suppresses
// re-processing. The transport delivers at least once; five minutes covers
// its observed redelivery horizon.
const DefaultWindow = 5 * time.Minute

// Cache is a time-windowed at-most-once filter over (sender, body) pairs.
// Entries expire lazily: an expired fingerprint is evicted on the lookup
// that observes it, and Sweep exists for the periodic sweeper. Safe for
// concurrent use.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	window  time.Duration
	nowFunc func() time.Time
}

func NewCache(window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Cache{
		seen:    make(map[string]time.Time),
		window:  window,
		nowFunc: time.Now,
	}
}

// ShouldProcess reports whether this (sender, body) pair has not been marked
// processed within the window. It does not mark: marking happens after the
// side-effecting work has begun, so a crash in between can at worst cause
// one duplicate retry.
func (c *Cache) ShouldProcess(sender, body string) bool {
	key := fingerprint(sender, body)

	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.seen[key]
	if !ok {
		return true
	}
	if c.nowFunc().Sub(at) >= c.window {
		delete(c.seen, key)
		return true
	}
	return false
}

// MarkProcessed records the fingerprint with the current time.
func (c *Cache) MarkProcessed(sender, body string) {
	key := fingerprint(sender, body)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[key] = c.nowFunc()
}

// Sweep evicts every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.nowFunc()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, at := range c.seen {
		if now.Sub(at) >= c.window {
			delete(c.seen, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func fingerprint(sender, body string) string {
	h := sha256.New()
	h.Write([]byte(sender))
	h.Write([]byte{0})
	h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}
