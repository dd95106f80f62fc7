// Package server exposes the toolset system over MCP.
//
// DynamicServer wraps a single shared mcp-go server. Its fixed surface is
// the toolset meta-tools (list_toolsets, describe_toolset, enable_toolset,
// enable_toolsets, disable_toolset, get_status); everything else appears
// dynamically as callers enable toolsets. Each caller is mapped to a
// bundle from the attached pool, so activation state is isolated per
// caller even though tool registration lands on the shared server.
package server
