package mcpproxy

import (
	"context"
	"fmt"

	"github.com/code-rabi/toolception-sub000/internal/toolsets"
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolSource is the narrow client surface the loader needs. *Client
// implements it; tests substitute fakes.
type ToolSource interface {
	Initialize(ctx context.Context) error
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// Loader builds a module loader that connects the source on first use, lists
// the remote server's tools, and yields one capability definition per remote
// tool whose handler forwards the call.
//
// The loader does not own the source's lifetime: the bundle the loader is
// built for must hold the source as a session handle so it is closed on
// eviction.
func Loader(source ToolSource) toolsets.ModuleLoader {
	return func(ctx context.Context) ([]toolsets.CapabilityDefinition, error) {
		if err := source.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to remote server: %w", err)
		}

		tools, err := source.ListTools(ctx)
		if err != nil {
			return nil, err
		}

		capabilities := make([]toolsets.CapabilityDefinition, 0, len(tools))
		for _, tool := range tools {
			remoteName := tool.Name
			capabilities = append(capabilities, toolsets.CapabilityDefinition{
				Name:        remoteName,
				Description: tool.Description,
				InputSchema: tool.InputSchema,
				Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
					return source.CallTool(ctx, remoteName, request.GetArguments())
				},
			})
		}
		return capabilities, nil
	}
}
