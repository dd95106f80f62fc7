// Package logging provides a structured logging system with unified log
// handling and level filtering, built on Go's standard slog package.
//
// Every log entry carries a subsystem identifier so that output from the
// cache, activation, and permission layers can be filtered independently.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//	logging.Info("ToolsetManager", "Enabled toolset %s", name)
//	logging.Error("BundlePool", err, "Failed to construct bundle")
//
// Identifiers that may be sensitive (client IDs, session IDs) should be
// passed through TruncateID before logging.
package logging
