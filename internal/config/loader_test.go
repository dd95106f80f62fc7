package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0644))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, TransportStreamableHTTP, cfg.Server.Transport)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL.Std())
	assert.Equal(t, "headers", cfg.Permissions.Source)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
server:
  host: 0.0.0.0
  port: 9000
  transport: sse
cache:
  maxBundles: 50
  ttl: 10m
  pruneInterval: 1m
policy:
  maxActiveToolsets: 3
  denylist: [internal]
  namespaceCapabilities: true
permissions:
  source: config
  staticMap:
    alice: [core, search]
  defaultPermissions: [core]
catalogDir: /etc/toolception/toolsets
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, TransportSSE, cfg.Server.Transport)
	assert.Equal(t, 50, cfg.Cache.MaxBundles)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL.Std())
	assert.Equal(t, time.Minute, cfg.Cache.PruneInterval.Std())
	assert.Equal(t, 3, cfg.Policy.MaxActiveToolsets)
	assert.Equal(t, []string{"internal"}, cfg.Policy.Denylist)
	assert.True(t, cfg.Policy.NamespaceCapabilities)
	assert.Equal(t, "config", cfg.Permissions.Source)
	assert.Equal(t, []string{"core", "search"}, cfg.Permissions.StaticMap["alice"])
	assert.Equal(t, []string{"core"}, cfg.Permissions.DefaultPermissions)
	assert.Equal(t, "/etc/toolception/toolsets", cfg.CatalogDir)
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
server:
  port: 7070
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, TransportStreamableHTTP, cfg.Server.Transport)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "server: [not a mapping")

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestLoadConfigInvalidDuration(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
cache:
  ttl: soon
`)

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown transport",
			mutate:  func(c *Config) { c.Server.Transport = "grpc" },
			wantErr: "unknown transport",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid port",
		},
		{
			name: "stdio ignores port",
			mutate: func(c *Config) {
				c.Server.Transport = TransportStdio
				c.Server.Port = 0
			},
		},
		{
			name:    "unknown permissions source",
			mutate:  func(c *Config) { c.Permissions.Source = "ldap" },
			wantErr: "unknown permissions source",
		},
		{
			name:    "negative max bundles",
			mutate:  func(c *Config) { c.Cache.MaxBundles = -1 },
			wantErr: "maxBundles",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
