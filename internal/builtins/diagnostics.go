package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/code-rabi/toolception-sub000/internal/toolsets"
	"github.com/mark3labs/mcp-go/mcp"
)

// DiagnosticsToolsetKey is the catalog key of the builtin diagnostics
// toolset.
const DiagnosticsToolsetKey = "diagnostics"

// StatusFunc supplies the payload for the diagnostics status tool.
type StatusFunc func() interface{}

// DiagnosticsToolset returns the builtin diagnostics toolset: small tools
// for verifying connectivity and inspecting server state. The status
// function may be nil, in which case the status tool reports only the
// server time.
func DiagnosticsToolset(status StatusFunc) toolsets.ToolsetDefinition {
	h := &diagnosticsHandlers{status: status}
	return toolsets.ToolsetDefinition{
		Key:         DiagnosticsToolsetKey,
		Name:        "Diagnostics",
		Description: "Connectivity and server state diagnostics",
		Capabilities: []toolsets.CapabilityDefinition{
			{
				Name:        "echo",
				Description: "Echo the given message back to the caller",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]any{
						"message": map[string]any{
							"type":        "string",
							"description": "Message to echo back",
						},
					},
					Required: []string{"message"},
				},
				Handler: h.echo,
			},
			{
				Name:        "server_time",
				Description: "Report the server's current time in RFC 3339 format",
				Handler:     h.serverTime,
			},
			{
				Name:        "status",
				Description: "Report server status as JSON",
				Handler:     h.serverStatus,
			},
		},
	}
}

type diagnosticsHandlers struct {
	status StatusFunc
}

func (h *diagnosticsHandlers) echo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message argument is required"), nil
	}
	return mcp.NewToolResultText(message), nil
}

func (h *diagnosticsHandlers) serverTime(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(time.Now().Format(time.RFC3339)), nil
}

func (h *diagnosticsHandlers) serverStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload := map[string]interface{}{
		"time": time.Now().Format(time.RFC3339),
	}
	if h.status != nil {
		payload["status"] = h.status()
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to format status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
