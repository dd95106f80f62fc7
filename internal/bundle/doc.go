// Package bundle composes the cache, activation, and permission layers into
// per-caller resource bundles.
//
// A caller identity (plus optional context attributes) derives a cache key;
// the pool looks up or lazily constructs the bundle for that key: one
// toolset manager with its own capability registry, plus any live transport
// session handles opened by module loaders. Permission resolution decides
// which toolsets a fresh bundle activates. When the pool's cache evicts a
// bundle, its session handles are released exactly once.
package bundle
