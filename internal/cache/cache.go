package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/code-rabi/toolception-sub000/pkg/logging"
)

// minPruneInterval is the minimum interval between prune runs.
// This prevents excessive prune frequency when the TTL is very short.
const minPruneInterval = time.Second

// EvictFunc is the cleanup hook invoked exactly once for every entry removed
// from the cache, regardless of why it was removed (LRU overflow, TTL expiry,
// explicit clear on Stop).
type EvictFunc[K comparable, V any] func(key K, value V)

// Config holds the configuration for a Cache.
type Config[K comparable, V any] struct {
	// MaxSize is the maximum number of entries held at once. Zero disables
	// LRU eviction and leaves the cache unbounded.
	MaxSize int

	// TTL is the duration after insertion at which an entry expires.
	// Zero disables expiry.
	TTL time.Duration

	// PruneInterval is how often the background sweep removes expired
	// entries. Defaults to TTL/2 (with a one second floor) when unset.
	PruneInterval time.Duration

	// OnEvict is called for every removed entry. Panics raised inside the
	// hook are caught and logged, never propagated.
	OnEvict EvictFunc[K, V]
}

type entry[K comparable, V any] struct {
	key          K
	value        V
	insertedAt   time.Time
	lastAccessAt time.Time
	expiresAt    time.Time // zero when TTL is disabled
	elem         *list.Element
}

// Cache is a bounded, time-expiring key/value store that owns the lifecycle
// of its values. It combines max-size LRU eviction, TTL expiry with a
// periodic background sweep, and an eviction hook that fires exactly once
// per removed entry.
//
// All operations are safe for concurrent use. The eviction decision and the
// hook invocation happen inside one critical section so that an entry can
// never be evicted twice.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[K, V]
	order   *list.List // front = most recently used

	cfg Config[K, V]

	stopPrune chan struct{}
	stopped   bool
}

// New creates a cache with the given configuration and, when a TTL is set,
// starts the background prune goroutine. Callers MUST call Stop when done to
// prevent goroutine leaks.
func New[K comparable, V any](cfg Config[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		entries:   make(map[K]*entry[K, V]),
		order:     list.New(),
		cfg:       cfg,
		stopPrune: make(chan struct{}),
	}

	if cfg.TTL > 0 {
		go c.pruneLoop()
	}

	return c
}

// Get returns the value for key if present and not expired, updating the
// entry's recency for LRU ordering. An expired entry is never resurrected:
// it is removed (hook invoked) and reported as absent even if the background
// sweep has not run yet.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	if c.isExpired(e, time.Now()) {
		c.remove(e)
		return zero, false
	}

	e.lastAccessAt = time.Now()
	c.order.MoveToFront(e.elem)
	return e.value, true
}

// Set inserts or overwrites the value for key. When the cache is at capacity
// and key is new, the single least-recently-used entry is evicted (never the
// one just inserted) and the eviction hook runs before Set returns.
// Overwriting an existing key refreshes its insertion time, expiry, and
// recency without invoking the hook.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.insertedAt = now
		e.lastAccessAt = now
		e.expiresAt = c.expiryFor(now)
		c.order.MoveToFront(e.elem)
		return
	}

	if c.cfg.MaxSize > 0 && len(c.entries) >= c.cfg.MaxSize {
		c.evictOldest()
	}

	e := &entry[K, V]{
		key:          key,
		value:        value,
		insertedAt:   now,
		lastAccessAt: now,
		expiresAt:    c.expiryFor(now),
	}
	e.elem = c.order.PushFront(e)
	c.entries[key] = e
}

// Delete removes the entry for key, invoking the eviction hook.
// It is a no-op when the key is absent.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.remove(e)
	}
}

// Len returns the number of entries currently held, including entries that
// have expired but not yet been swept.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop cancels the background sweep. When clearAll is set, every remaining
// entry is evicted and the hook invoked for each, guaranteeing deterministic
// release at shutdown. Calling Stop twice is a no-op.
func (c *Cache[K, V]) Stop(clearAll bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stopped {
		c.stopped = true
		close(c.stopPrune)
	}

	if clearAll {
		for _, e := range c.entries {
			c.remove(e)
		}
	}
}

// expiryFor computes the expiry timestamp for an entry inserted at now.
func (c *Cache[K, V]) expiryFor(now time.Time) time.Time {
	if c.cfg.TTL <= 0 {
		return time.Time{}
	}
	return now.Add(c.cfg.TTL)
}

func (c *Cache[K, V]) isExpired(e *entry[K, V], now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// evictOldest removes the least-recently-used entry. Caller must hold c.mu.
func (c *Cache[K, V]) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.remove(oldest.Value.(*entry[K, V]))
}

// remove deletes an entry from the table and invokes the eviction hook.
// Caller must hold c.mu; the hook runs inside the critical section so the
// eviction decision and cleanup form one atomic step.
func (c *Cache[K, V]) remove(e *entry[K, V]) {
	delete(c.entries, e.key)
	c.order.Remove(e.elem)
	c.invokeOnEvict(e.key, e.value)
}

// invokeOnEvict calls the eviction hook, catching panics so a failing hook
// never blocks eviction of subsequent entries.
func (c *Cache[K, V]) invokeOnEvict(key K, value V) {
	if c.cfg.OnEvict == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("Cache", "Eviction hook panicked for key %v: %v", key, r)
		}
	}()
	c.cfg.OnEvict(key, value)
}

// pruneLoop periodically removes expired entries until Stop is called.
func (c *Cache[K, V]) pruneLoop() {
	interval := c.cfg.PruneInterval
	if interval <= 0 {
		interval = c.cfg.TTL / 2
	}
	if interval < minPruneInterval {
		interval = minPruneInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.prune()
		case <-c.stopPrune:
			return
		}
	}
}

// prune removes all expired entries, independent of access pattern.
func (c *Cache[K, V]) prune() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	count := 0

	for _, e := range c.entries {
		if c.isExpired(e, now) {
			c.remove(e)
			count++
		}
	}

	if count > 0 {
		logging.Debug("Cache", "Pruned %d expired entries", count)
	}
}
