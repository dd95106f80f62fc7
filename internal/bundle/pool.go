package bundle

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/code-rabi/toolception-sub000/internal/cache"
	"github.com/code-rabi/toolception-sub000/internal/permissions"
	"github.com/code-rabi/toolception-sub000/internal/toolsets"
	"github.com/code-rabi/toolception-sub000/pkg/logging"
	"golang.org/x/sync/singleflight"
)

// LoaderTableFunc builds the module loader table for a newly constructed
// bundle. Loaders that open live transports should attach them to the bundle
// via AddSessionHandle so eviction releases them.
type LoaderTableFunc func(b *Bundle) map[string]toolsets.ModuleLoader

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Catalog is the shared read-only toolset catalog.
	Catalog toolsets.Catalog

	// Policy is the exposure policy applied to every bundle's manager.
	Policy toolsets.ExposurePolicy

	// Sink receives capability registrations for all bundles. Required.
	Sink toolsets.RegistrationSink

	// Notifier delivers capabilities-changed notifications. Optional.
	Notifier toolsets.Notifier

	// Loaders builds the per-bundle module loader table. Optional.
	Loaders LoaderTableFunc

	// Permissions resolves which toolsets a caller may activate. A newly
	// constructed bundle auto-enables its caller's permitted toolsets.
	// Optional; without it, bundles start with nothing enabled.
	Permissions *permissions.Resolver

	// MaxBundles bounds how many bundles are held at once. Zero means
	// unbounded.
	MaxBundles int

	// BundleTTL is how long an untouched bundle lives. Zero disables
	// expiry.
	BundleTTL time.Duration

	// PruneInterval is how often expired bundles are swept.
	PruneInterval time.Duration
}

// Pool owns the key-to-bundle map. It lazily constructs bundles, deduplicates
// concurrent construction of the same key, and releases a bundle's live
// session handles whenever the cache evicts it (LRU overflow, TTL expiry, or
// shutdown). The pool's cache is the only component permitted to delete an
// entry from the map.
type Pool struct {
	cfg   PoolConfig
	cache *cache.Cache[string, *Bundle]
	group singleflight.Group

	// catalogMu guards the catalog, which can be swapped at runtime.
	catalogMu sync.RWMutex
	catalog   toolsets.Catalog
}

// NewPool creates a pool. Callers MUST call Shutdown when done so the prune
// goroutine stops and remaining bundles are released deterministically.
func NewPool(cfg PoolConfig) *Pool {
	p := &Pool{cfg: cfg, catalog: cfg.Catalog}
	p.cache = cache.New(cache.Config[string, *Bundle]{
		MaxSize:       cfg.MaxBundles,
		TTL:           cfg.BundleTTL,
		PruneInterval: cfg.PruneInterval,
		OnEvict: func(key string, b *Bundle) {
			logging.Debug("BundlePool", "Evicting bundle %s (key %s)", b.ID, logging.TruncateID(key))
			b.Close()
		},
	})
	return p
}

// GetOrCreate returns the bundle for the caller identity and optional
// context attributes, constructing it on first use. Concurrent calls for the
// same key share one construction. Auto-enable failures during construction
// are reported in logs only; the bundle is still returned so the caller can
// enable toolsets explicitly.
func (p *Pool) GetOrCreate(ctx context.Context, clientID string, headers http.Header, attrs map[string]string) (*Bundle, error) {
	key := DeriveKey(clientID, attrs)

	if b, ok := p.cache.Get(key); ok {
		return b, nil
	}

	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		// Double-check after winning the singleflight slot; a concurrent
		// caller may have finished construction already.
		if b, ok := p.cache.Get(key); ok {
			return b, nil
		}

		b := p.construct(ctx, key, clientID, headers)
		p.cache.Set(key, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Bundle), nil
}

// UpdateCatalog replaces the catalog used for newly constructed bundles.
// Existing bundles keep the catalog they were built with until they are
// invalidated or expire.
func (p *Pool) UpdateCatalog(catalog toolsets.Catalog) {
	p.catalogMu.Lock()
	p.catalog = catalog
	p.catalogMu.Unlock()
	logging.Info("BundlePool", "Catalog updated: %d toolsets available for new bundles", len(catalog))
}

// Get returns the bundle for a derived key without constructing one.
func (p *Pool) Get(key string) (*Bundle, bool) {
	return p.cache.Get(key)
}

// Invalidate releases the bundle stored under the derived key, if any.
func (p *Pool) Invalidate(key string) {
	p.cache.Delete(key)
}

// Len returns the number of live bundles.
func (p *Pool) Len() int {
	return p.cache.Len()
}

// Shutdown stops the background sweep and releases every remaining bundle,
// invoking each bundle's cleanup exactly once.
func (p *Pool) Shutdown() {
	p.cache.Stop(true)
}

// construct builds a fresh bundle: its own manager and registry over the
// shared catalog, a per-bundle loader table, and the caller's permitted
// toolsets activated best-effort.
func (p *Pool) construct(ctx context.Context, key, clientID string, headers http.Header) *Bundle {
	b := New(key, clientID)

	var loaders map[string]toolsets.ModuleLoader
	if p.cfg.Loaders != nil {
		loaders = p.cfg.Loaders(b)
	}

	p.catalogMu.RLock()
	catalog := p.catalog
	p.catalogMu.RUnlock()

	b.Manager = toolsets.NewManager(toolsets.ManagerConfig{
		Catalog:  catalog,
		Sink:     p.cfg.Sink,
		Notifier: p.cfg.Notifier,
		Policy:   p.cfg.Policy,
		Loaders:  loaders,
	})

	logging.Debug("BundlePool", "Constructed bundle %s for client %s",
		b.ID, logging.TruncateID(clientID))

	if p.cfg.Permissions != nil {
		permitted := p.cfg.Permissions.Resolve(clientID, headers)
		if len(permitted) > 0 {
			batch := b.Manager.EnableToolsets(ctx, permitted)
			for _, r := range batch.Results {
				if !r.Success {
					logging.Warn("BundlePool", "Auto-enable of toolset %s failed for bundle %s: %s",
						r.Name, b.ID, r.Message)
				}
			}
		}
	}

	return b
}
