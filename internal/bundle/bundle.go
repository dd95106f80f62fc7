package bundle

import (
	"io"
	"sync"

	"github.com/code-rabi/toolception-sub000/internal/toolsets"
	"github.com/code-rabi/toolception-sub000/pkg/logging"
	"github.com/google/uuid"
)

// Bundle is the per-key cached aggregate of activation state: one toolset
// manager (which owns its capability registry) plus any live transport
// session handles opened on the caller's behalf. A bundle is exclusively
// owned by the cache key under which it is stored; its lifetime equals the
// cache entry's lifetime.
type Bundle struct {
	// ID uniquely identifies this bundle instance in logs.
	ID string

	// Key is the cache key the bundle is stored under.
	Key string

	// ClientID is the caller identity the bundle was built for.
	ClientID string

	// Manager is the bundle's activation state machine.
	Manager *toolsets.Manager

	mu      sync.Mutex
	handles map[string]io.Closer
	closed  bool
}

// New creates an empty bundle for the given cache key and client identity.
// The caller attaches the manager after construction so module loaders can
// capture the bundle.
func New(key, clientID string) *Bundle {
	return &Bundle{
		ID:       uuid.New().String(),
		Key:      key,
		ClientID: clientID,
		handles:  make(map[string]io.Closer),
	}
}

// Registry returns the bundle's capability registry.
func (b *Bundle) Registry() *toolsets.Registry {
	return b.Manager.Registry()
}

// AddSessionHandle attaches a live transport handle to the bundle. The
// handle is closed when the bundle is released. Attaching under a name that
// is already taken closes and replaces the previous handle.
func (b *Bundle) AddSessionHandle(name string, handle io.Closer) {
	b.mu.Lock()
	previous := b.handles[name]
	b.handles[name] = handle
	b.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			logging.Warn("Bundle", "Error closing replaced session handle %s for bundle %s: %v",
				name, b.ID, err)
		}
	}
}

// SessionHandleCount returns the number of live session handles.
func (b *Bundle) SessionHandleCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}

// Close releases every live session handle. Individual close failures are
// logged and do not stop the remaining handles from being released. Close is
// idempotent.
func (b *Bundle) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for name, handle := range b.handles {
		if err := handle.Close(); err != nil {
			logging.Warn("Bundle", "Error closing session handle %s for bundle %s: %v",
				name, b.ID, err)
		}
	}
	b.handles = make(map[string]io.Closer)

	logging.Debug("Bundle", "Released bundle %s for client %s", b.ID, logging.TruncateID(b.ClientID))
}
