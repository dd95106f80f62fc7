package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registrationSink adapts the shared MCP server to the registration
// interface bundles register capabilities through. Registration is
// one-way: the underlying server offers no per-session unregistration,
// which is why disabling a toolset only flips bookkeeping.
type registrationSink struct {
	server *server.MCPServer
}

func (s *registrationSink) Register(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.server.AddTool(tool, handler)
}

// changeNotifier broadcasts tools/list_changed to every connected client.
type changeNotifier struct {
	server *server.MCPServer
}

func (n *changeNotifier) NotifyCapabilitiesChanged(ctx context.Context) error {
	n.server.SendNotificationToAllClients("notifications/tools/list_changed", nil)
	return nil
}
