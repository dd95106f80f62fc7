// Package config loads the server configuration and the file-based
// toolset catalog.
//
// Configuration lives in a single directory: config.yaml for server,
// cache, policy and permission settings, plus an optional catalog
// directory holding one YAML file per remote-backed toolset. The catalog
// directory can be watched at runtime with CatalogWatcher so new toolset
// definitions become available without a restart.
package config
