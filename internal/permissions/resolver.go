package permissions

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/code-rabi/toolception-sub000/pkg/logging"
)

// Source selects where a caller's toolset permissions come from.
type Source string

const (
	// SourceHeaders reads permissions from a request header as a
	// comma-separated list.
	SourceHeaders Source = "headers"

	// SourceConfig resolves permissions through a resolver function with
	// static-map and default fallbacks.
	SourceConfig Source = "config"
)

// ResolverFunc resolves the toolset keys a client may activate. It may be
// backed by anything (database, policy engine); failures are contained by
// the Resolver.
type ResolverFunc func(clientID string) ([]string, error)

// Config configures a Resolver. It is immutable after construction.
type Config struct {
	Source Source

	// HeaderName is the header consulted in SourceHeaders mode. Lookup is
	// case-insensitive.
	HeaderName string

	// StaticMap maps client IDs to permission lists, consulted in
	// SourceConfig mode when Resolver is absent or fails.
	StaticMap map[string][]string

	// Resolver is the primary lookup in SourceConfig mode.
	Resolver ResolverFunc

	// DefaultPermissions is the final fallback. Defaults to none.
	DefaultPermissions []string
}

// Resolver resolves, per caller identity, the list of toolsets that identity
// may activate, through a prioritized, memoized, fail-secure chain:
// resolver function, then static map, then defaults. Resolve never panics
// out and never returns nil; any internal failure degrades to an empty list.
//
// Resolved lists are memoized per client ID with no automatic expiry.
// Callers must invalidate explicitly when permissions change.
type Resolver struct {
	cfg Config

	mu    sync.Mutex
	cache map[string][]string
}

// Source returns the configured permission source.
func (r *Resolver) Source() Source {
	return r.cfg.Source
}

// NewResolver creates a resolver for the given configuration.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{
		cfg:   cfg,
		cache: make(map[string][]string),
	}
}

// Resolve returns the toolset keys the client may activate. The headers
// argument is only consulted in SourceHeaders mode and may be nil.
func (r *Resolver) Resolve(clientID string, headers http.Header) (perms []string) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("PermissionResolver", fmt.Errorf("%v", rec),
				"Unexpected failure resolving permissions for client %s; denying all",
				logging.TruncateID(clientID))
			perms = []string{}
		}
	}()

	r.mu.Lock()
	if cached, ok := r.cache[clientID]; ok {
		r.mu.Unlock()
		return append([]string{}, cached...)
	}
	r.mu.Unlock()

	var resolved []string
	switch r.cfg.Source {
	case SourceHeaders:
		resolved = r.resolveFromHeaders(headers)
	case SourceConfig:
		resolved = r.resolveFromConfig(clientID)
	default:
		logging.Warn("PermissionResolver", "Unknown permission source %q; denying all", r.cfg.Source)
		resolved = []string{}
	}

	if resolved == nil {
		resolved = []string{}
	}

	r.mu.Lock()
	r.cache[clientID] = resolved
	r.mu.Unlock()

	return append([]string{}, resolved...)
}

// InvalidateCache drops the memoized list for one client.
func (r *Resolver) InvalidateCache(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, clientID)
}

// ClearCache drops all memoized lists.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string][]string)
}

// resolveFromHeaders reads the configured header as a comma-separated list,
// trimming tokens and dropping empty ones. A missing header yields an empty
// list.
func (r *Resolver) resolveFromHeaders(headers http.Header) []string {
	if headers == nil || r.cfg.HeaderName == "" {
		return []string{}
	}

	// Case-insensitive lookup that also works for header maps built with
	// non-canonical keys.
	var raw string
	for key, values := range headers {
		if strings.EqualFold(key, r.cfg.HeaderName) && len(values) > 0 {
			raw = values[0]
			break
		}
	}
	if raw == "" {
		return []string{}
	}

	tokens := strings.Split(raw, ",")
	perms := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token != "" {
			perms = append(perms, token)
		}
	}
	return perms
}

// resolveFromConfig runs the resolver-function / static-map / defaults
// chain. Each step falls through to the next on failure; the chain never
// widens permissions on error.
func (r *Resolver) resolveFromConfig(clientID string) []string {
	if r.cfg.Resolver != nil {
		resolved, err := invokeResolver(r.cfg.Resolver, clientID)
		if err == nil {
			return sanitize(resolved)
		}
		logging.Warn("PermissionResolver", "Resolver function failed for client %s: %v; falling back",
			logging.TruncateID(clientID), err)
	}

	if perms, ok := r.cfg.StaticMap[clientID]; ok {
		return sanitize(perms)
	}

	return sanitize(r.cfg.DefaultPermissions)
}

// invokeResolver runs the user-supplied resolver function, converting panics
// into errors so a misbehaving resolver degrades to the fallback chain.
func invokeResolver(fn ResolverFunc, clientID string) (perms []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("resolver panicked: %v", rec)
		}
	}()
	return fn(clientID)
}

// sanitize copies a permission list, dropping empty entries.
func sanitize(perms []string) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
