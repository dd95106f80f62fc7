// Package cache provides a generic bounded, time-expiring store that owns
// per-key resource bundles and guarantees release-on-eviction.
//
// The cache combines three removal mechanisms behind a single cleanup hook:
//
//   - Max-size LRU eviction when an insert would exceed capacity
//   - TTL expiry, enforced lazily on Get and actively by a periodic sweep
//   - Explicit clearing via Stop(true) at shutdown
//
// Whatever the removal path, the configured eviction hook fires exactly once
// per removed entry, never zero or twice. This makes the cache suitable as
// the sole owner of values that hold live resources (client connections,
// session handles): attach the release logic to the hook and the cache
// guarantees it runs.
package cache
