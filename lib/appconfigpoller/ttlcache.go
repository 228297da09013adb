package appconfigpoller

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// ttlCache is a map with a fixed expiry per entry. Expired entries are kept
// so that stale can still return them; set replaces the value and re-arms
// the expiry.
type ttlCache[K comparable, V any] struct {
	ttl   time.Duration
	clock quartz.Clock

	mu    sync.Mutex
	items map[K]ttlItem[V]
}

type ttlItem[V any] struct {
	value     V
	expiresAt time.Time
}

func newTTLCache[K comparable, V any](ttl time.Duration) *ttlCache[K, V] {
	return &ttlCache[K, V]{
		ttl:   ttl,
		clock: quartz.NewReal(),
		items: make(map[K]ttlItem[V]),
	}
}

// get returns the value for k if it has not expired.
func (c *ttlCache[K, V]) get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[k]
	if !ok || !c.clock.Now().Before(item.expiresAt) {
		var zero V
		return zero, false
	}
	return item.value, true
}

// stale returns the last value set for k, expired or not.
func (c *ttlCache[K, V]) stale(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[k]
	return item.value, ok
}

func (c *ttlCache[K, V]) set(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[k] = ttlItem[V]{
		value:     v,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

func (c *ttlCache[K, V]) delete(k K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, k)
}
