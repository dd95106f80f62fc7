package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/code-rabi/toolception-sub000/internal/builtins"
	"github.com/code-rabi/toolception-sub000/internal/bundle"
	"github.com/code-rabi/toolception-sub000/internal/config"
	"github.com/code-rabi/toolception-sub000/internal/mcpproxy"
	"github.com/code-rabi/toolception-sub000/internal/permissions"
	"github.com/code-rabi/toolception-sub000/internal/server"
	"github.com/code-rabi/toolception-sub000/internal/toolsets"
	"github.com/code-rabi/toolception-sub000/pkg/logging"
)

const userConfigDir = ".config/toolception"

// proxyRefPrefix namespaces loader table keys for remote-backed toolsets.
const proxyRefPrefix = "proxy:"

// Config carries the command-line level settings for the application.
type Config struct {
	// Debug enables verbose logging.
	Debug bool

	// ConfigPath overrides the configuration directory. Empty means the
	// user config directory.
	ConfigPath string

	// Version is injected at build time and reported to MCP clients.
	Version string
}

// Application wires the configuration, catalog, bundle pool and MCP server
// together and manages their lifecycle.
type Application struct {
	cfg     config.Config
	version string

	srv     *server.DynamicServer
	pool    *bundle.Pool
	watcher *config.CatalogWatcher

	// proxyMu guards proxies, which the catalog watcher replaces at runtime.
	proxyMu sync.RWMutex
	proxies []config.ToolsetFile
}

// DefaultConfigPathOrPanic returns the per-user configuration directory.
func DefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}
	return filepath.Join(homeDir, userConfigDir)
}

// NewApplication loads configuration and constructs the full component
// graph. The server is not listening yet; call Run.
func NewApplication(appCfg Config) (*Application, error) {
	level := logging.LevelInfo
	if appCfg.Debug {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stderr)

	configPath := appCfg.ConfigPath
	if configPath == "" {
		configPath = DefaultConfigPathOrPanic()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a := &Application{cfg: cfg, version: appCfg.Version}

	var resolver *permissions.Resolver
	if cfg.Permissions.Source != "" {
		resolver = permissions.NewResolver(permissions.Config{
			Source:             permissions.Source(cfg.Permissions.Source),
			HeaderName:         cfg.Permissions.HeaderName,
			StaticMap:          cfg.Permissions.StaticMap,
			DefaultPermissions: cfg.Permissions.DefaultPermissions,
		})
	}

	a.srv = server.NewDynamicServer(server.Config{
		Name:        "toolception",
		Version:     appCfg.Version,
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		Transport:   cfg.Server.Transport,
		Permissions: resolver,
	})

	catalog, proxies := a.buildCatalog()
	a.proxies = proxies

	a.pool = bundle.NewPool(bundle.PoolConfig{
		Catalog:       catalog,
		Policy:        a.policy(),
		Sink:          a.srv.Sink(),
		Notifier:      a.srv.Notifier(),
		Loaders:       a.loaderTable,
		Permissions:   resolver,
		MaxBundles:    cfg.Cache.MaxBundles,
		BundleTTL:     cfg.Cache.TTL.Std(),
		PruneInterval: cfg.Cache.PruneInterval.Std(),
	})
	a.srv.AttachPool(a.pool)

	if cfg.CatalogDir != "" {
		a.watcher = config.NewCatalogWatcher(cfg.CatalogDir, 0)
	}

	return a, nil
}

// Run starts the server and blocks until the context is cancelled or a
// termination signal arrives, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.watcher != nil {
		if err := a.watcher.Start(ctx, a.reloadCatalog); err != nil {
			logging.Warn("App", "Catalog watcher failed to start: %v", err)
		}
	}

	if err := a.srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	if endpoint := a.srv.Endpoint(); endpoint != "" {
		logging.Info("App", "MCP endpoint: %s", endpoint)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logging.Info("App", "Received signal %s, shutting down", sig)
	case <-ctx.Done():
		logging.Info("App", "Context cancelled, shutting down")
	}

	if a.watcher != nil {
		a.watcher.Stop()
	}

	shutdownCtx := context.Background()
	if err := a.srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	return nil
}

func (a *Application) policy() toolsets.ExposurePolicy {
	return toolsets.ExposurePolicy{
		MaxActiveToolsets:     a.cfg.Policy.MaxActiveToolsets,
		Allowlist:             a.cfg.Policy.Allowlist,
		Denylist:              a.cfg.Policy.Denylist,
		NamespaceCapabilities: a.cfg.Policy.NamespaceCapabilities,
	}
}

// buildCatalog assembles the toolset catalog: the built-in diagnostics
// toolset plus one lazily-loaded toolset per catalog file.
func (a *Application) buildCatalog() (toolsets.Catalog, []config.ToolsetFile) {
	catalog := toolsets.Catalog{}

	diagnostics := builtins.DiagnosticsToolset(a.statusSnapshot)
	catalog[diagnostics.Key] = diagnostics

	var proxies []config.ToolsetFile
	if a.cfg.CatalogDir != "" {
		files, errs := config.LoadCatalogDir(a.cfg.CatalogDir)
		for _, e := range errs {
			logging.Warn("App", "Catalog problem: %s", e.Error())
		}
		for _, tf := range files {
			catalog[tf.Key] = toolsets.ToolsetDefinition{
				Key:            tf.Key,
				Name:           tf.Name,
				Description:    tf.Description,
				LazyModuleRefs: []string{proxyRefPrefix + tf.Key},
			}
		}
		proxies = files
	}
	return catalog, proxies
}

// reloadCatalog rebuilds the catalog after a filesystem change. Only newly
// constructed bundles see the new catalog; live bundles keep theirs.
func (a *Application) reloadCatalog() {
	logging.Info("App", "Catalog directory changed, reloading")
	catalog, proxies := a.buildCatalog()
	a.proxyMu.Lock()
	a.proxies = proxies
	a.proxyMu.Unlock()
	a.pool.UpdateCatalog(catalog)
}

// statusSnapshot feeds the diagnostics status tool.
func (a *Application) statusSnapshot() interface{} {
	return map[string]interface{}{
		"version":   a.version,
		"transport": a.cfg.Server.Transport,
		"bundles":   a.pool.Len(),
	}
}

// loaderTable builds the per-bundle module loader table. Each remote-backed
// toolset gets its own MCP client per bundle, attached as a session handle
// so bundle eviction closes the connection. It reads the current proxy
// list, so bundles constructed after a catalog reload pick up new remotes.
func (a *Application) loaderTable(b *bundle.Bundle) map[string]toolsets.ModuleLoader {
	a.proxyMu.RLock()
	proxies := a.proxies
	a.proxyMu.RUnlock()

	if len(proxies) == 0 {
		return nil
	}
	loaders := make(map[string]toolsets.ModuleLoader, len(proxies))
	for _, tf := range proxies {
		client := mcpproxy.NewClient(tf.Key, tf.Server.URL, tf.Server.Headers)
		b.AddSessionHandle(proxyRefPrefix+tf.Key, client)
		loaders[proxyRefPrefix+tf.Key] = mcpproxy.Loader(client)
	}
	return loaders
}
