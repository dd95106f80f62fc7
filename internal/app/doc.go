// Package app is the composition root. It loads configuration, assembles
// the catalog, bundle pool and MCP server, and drives their lifecycle for
// the serve command.
package app
