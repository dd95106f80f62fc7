package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Default server settings.
const (
	DefaultHost      = "localhost"
	DefaultPort      = 8090
	DefaultTransport = "streamable-http"
)

// Supported transports.
const (
	TransportStreamableHTTP = "streamable-http"
	TransportSSE            = "sse"
	TransportStdio          = "stdio"
)

// Duration wraps time.Duration with YAML support for strings like "30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ServerConfig configures the MCP server endpoint.
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Transport string `yaml:"transport"`
}

// CacheConfig configures the bundle pool's cache.
type CacheConfig struct {
	// MaxBundles bounds concurrent bundles. Zero means unbounded.
	MaxBundles int `yaml:"maxBundles"`

	// TTL is how long an untouched bundle lives. Zero disables expiry.
	TTL Duration `yaml:"ttl"`

	// PruneInterval is how often expired bundles are swept.
	PruneInterval Duration `yaml:"pruneInterval"`
}

// PolicyConfig configures the exposure policy applied to all callers.
type PolicyConfig struct {
	MaxActiveToolsets     int      `yaml:"maxActiveToolsets"`
	Allowlist             []string `yaml:"allowlist"`
	Denylist              []string `yaml:"denylist"`
	NamespaceCapabilities bool     `yaml:"namespaceCapabilities"`
}

// PermissionsConfig configures per-caller permission resolution.
type PermissionsConfig struct {
	// Source is "headers" or "config".
	Source string `yaml:"source"`

	// HeaderName is consulted in headers mode.
	HeaderName string `yaml:"headerName"`

	// StaticMap maps client IDs to permitted toolset keys (config mode).
	StaticMap map[string][]string `yaml:"staticMap"`

	// DefaultPermissions is the fallback for unknown clients (config mode).
	DefaultPermissions []string `yaml:"defaultPermissions"`
}

// Config is the top-level configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Cache       CacheConfig       `yaml:"cache"`
	Policy      PolicyConfig      `yaml:"policy"`
	Permissions PermissionsConfig `yaml:"permissions"`

	// CatalogDir is a directory of toolset definition files, watched for
	// changes at runtime. Empty disables file-based catalogs.
	CatalogDir string `yaml:"catalogDir"`
}

// GetDefaultConfig returns the configuration used when no config file
// exists: a local streamable-http server, unbounded cache with a 30 minute
// bundle TTL, everything allowed, headers-based permissions.
func GetDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:      DefaultHost,
			Port:      DefaultPort,
			Transport: DefaultTransport,
		},
		Cache: CacheConfig{
			TTL: Duration(30 * time.Minute),
		},
		Permissions: PermissionsConfig{
			Source:     "headers",
			HeaderName: "X-Toolception-Toolsets",
		},
	}
}
