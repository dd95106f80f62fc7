package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/code-rabi/toolception-sub000/pkg/logging"

	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// LoadConfig loads configuration from the given directory. The directory
// should contain config.yaml; a missing file yields the defaults.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// Validate checks the configuration for values that cannot be served.
func (c Config) Validate() error {
	switch c.Server.Transport {
	case TransportStreamableHTTP, TransportSSE, TransportStdio:
	default:
		return fmt.Errorf("unknown transport %q (expected %s, %s or %s)",
			c.Server.Transport, TransportStreamableHTTP, TransportSSE, TransportStdio)
	}
	if c.Server.Transport != TransportStdio && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	switch c.Permissions.Source {
	case "", "headers", "config":
	default:
		return fmt.Errorf("unknown permissions source %q (expected headers or config)", c.Permissions.Source)
	}
	if c.Cache.MaxBundles < 0 {
		return fmt.Errorf("cache.maxBundles must not be negative")
	}
	return nil
}
