package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/code-rabi/toolception-sub000/pkg/logging"

	"gopkg.in/yaml.v3"
)

// ToolsetFile is a toolset definition loaded from a catalog directory.
// Each file describes one toolset whose capabilities are fetched lazily
// from a remote MCP server when the toolset is first enabled.
type ToolsetFile struct {
	Key         string            `yaml:"key"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Server      ProxyServerConfig `yaml:"server"`
}

// ProxyServerConfig points at the remote MCP server backing a toolset.
type ProxyServerConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// CatalogError represents a problem with a single catalog file.
type CatalogError struct {
	FilePath  string // full path to the file that caused the error
	ErrorType string // parse, validation, io
	Message   string
}

// Error implements the error interface.
func (ce CatalogError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ce.ErrorType, filepath.Base(ce.FilePath), ce.Message)
}

// LoadCatalogDir loads every toolset definition file (*.yaml, *.yml) in
// dir, sorted by file name. Files that fail to parse or validate are
// skipped with a warning so one bad file does not take down the catalog;
// the errors are returned alongside the good definitions.
func LoadCatalogDir(dir string) ([]ToolsetFile, []CatalogError) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []CatalogError{{FilePath: dir, ErrorType: "io", Message: err.Error()}}
	}

	var files []ToolsetFile
	var errs []CatalogError
	seen := make(map[string]string)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		tf, err := loadToolsetFile(path)
		if err != nil {
			var ce CatalogError
			if c, ok := err.(CatalogError); ok {
				ce = c
			} else {
				ce = CatalogError{FilePath: path, ErrorType: "io", Message: err.Error()}
			}
			logging.Warn("Catalog", "Skipping toolset file %s: %s", name, ce.Message)
			errs = append(errs, ce)
			continue
		}
		if prev, dup := seen[tf.Key]; dup {
			ce := CatalogError{
				FilePath:  path,
				ErrorType: "validation",
				Message:   fmt.Sprintf("toolset key %q already defined in %s", tf.Key, prev),
			}
			logging.Warn("Catalog", "Skipping toolset file %s: %s", name, ce.Message)
			errs = append(errs, ce)
			continue
		}
		seen[tf.Key] = name
		files = append(files, tf)
	}
	return files, errs
}

func loadToolsetFile(path string) (ToolsetFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ToolsetFile{}, CatalogError{FilePath: path, ErrorType: "io", Message: err.Error()}
	}
	var tf ToolsetFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return ToolsetFile{}, CatalogError{FilePath: path, ErrorType: "parse", Message: err.Error()}
	}
	if err := tf.validate(); err != nil {
		return ToolsetFile{}, CatalogError{FilePath: path, ErrorType: "validation", Message: err.Error()}
	}
	return tf, nil
}

func (tf ToolsetFile) validate() error {
	if strings.TrimSpace(tf.Key) == "" {
		return fmt.Errorf("key is required")
	}
	if strings.TrimSpace(tf.Server.URL) == "" {
		return fmt.Errorf("server.url is required")
	}
	return nil
}
