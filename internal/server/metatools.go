package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/code-rabi/toolception-sub000/internal/bundle"
	"github.com/code-rabi/toolception-sub000/internal/permissions"
	"github.com/code-rabi/toolception-sub000/internal/toolsets"
	"github.com/code-rabi/toolception-sub000/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerMetaTools adds the toolset management tools to the shared MCP
// server. These are the always-present surface through which clients
// discover and activate toolsets; every other tool appears dynamically.
func (s *DynamicServer) registerMetaTools() {
	listTool := mcp.NewTool("list_toolsets",
		mcp.WithDescription("List all available toolsets and whether they are active for this client"),
	)
	s.server.AddTool(listTool, s.handleListToolsets)

	describeTool := mcp.NewTool("describe_toolset",
		mcp.WithDescription("Get detailed information about a specific toolset"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Key of the toolset to describe"),
		),
	)
	s.server.AddTool(describeTool, s.handleDescribeToolset)

	enableTool := mcp.NewTool("enable_toolset",
		mcp.WithDescription("Enable a toolset, registering its tools for this client"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Key of the toolset to enable"),
		),
	)
	s.server.AddTool(enableTool, s.handleEnableToolset)

	enableManyTool := mcp.Tool{
		Name:        "enable_toolsets",
		Description: "Enable several toolsets in one call; failures do not stop the rest",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"names": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Keys of the toolsets to enable",
				},
			},
			Required: []string{"names"},
		},
	}
	s.server.AddTool(enableManyTool, s.handleEnableToolsets)

	disableTool := mcp.NewTool("disable_toolset",
		mcp.WithDescription("Disable a toolset for this client (already-registered tools remain until the session ends)"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Key of the toolset to disable"),
		),
	)
	s.server.AddTool(disableTool, s.handleDisableToolset)

	statusTool := mcp.NewTool("get_status",
		mcp.WithDescription("Report active toolsets, available toolsets and registered tools for this client"),
	)
	s.server.AddTool(statusTool, s.handleGetStatus)
}

// callerBundle resolves the caller identity from the request context and
// returns (creating if necessary) that caller's bundle.
func (s *DynamicServer) callerBundle(ctx context.Context) (*bundle.Bundle, error) {
	pool := s.getPool()
	if pool == nil {
		return nil, fmt.Errorf("server not ready: no bundle pool attached")
	}
	clientID, headers := resolveCallerID(ctx)
	return pool.GetOrCreate(ctx, clientID, headers, nil)
}

// permitted reports whether the caller may enable the named toolset.
// Only config-sourced permissions act as an ACL here: an absent grant
// denies. Header-sourced permissions express the caller's requested
// initial toolsets and never restrict explicit enables.
func (s *DynamicServer) permitted(ctx context.Context, name string) bool {
	if s.permissions == nil || s.permissions.Source() != permissions.SourceConfig {
		return true
	}
	clientID, headers := resolveCallerID(ctx)
	for _, key := range s.permissions.Resolve(clientID, headers) {
		if key == name {
			return true
		}
	}
	return false
}

func (s *DynamicServer) handleListToolsets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := s.callerBundle(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	type toolsetEntry struct {
		Key         string `json:"key"`
		Name        string `json:"name,omitempty"`
		Description string `json:"description,omitempty"`
		Active      bool   `json:"active"`
	}

	var entries []toolsetEntry
	for _, key := range b.Manager.GetAvailableToolsets() {
		def, _ := b.Manager.GetToolsetDefinition(key)
		entries = append(entries, toolsetEntry{
			Key:         key,
			Name:        def.Name,
			Description: def.Description,
			Active:      b.Manager.IsActive(key),
		})
	}
	return jsonResult(map[string]any{
		"toolsets": entries,
		"total":    len(entries),
	})
}

func (s *DynamicServer) handleDescribeToolset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name argument is required"), nil
	}

	b, err := s.callerBundle(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	def, ok := b.Manager.GetToolsetDefinition(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Toolset not found: %s", name)), nil
	}

	capabilities := make([]string, 0, len(def.Capabilities))
	for _, capability := range def.Capabilities {
		capabilities = append(capabilities, capability.Name)
	}
	return jsonResult(map[string]any{
		"key":          def.Key,
		"name":         def.Name,
		"description":  def.Description,
		"capabilities": capabilities,
		"moduleRefs":   def.LazyModuleRefs,
		"active":       b.Manager.IsActive(name),
	})
}

func (s *DynamicServer) handleEnableToolset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name argument is required"), nil
	}

	if !s.permitted(ctx, name) {
		logging.Debug("DynamicServer", "Denied enable of toolset %s", name)
		return jsonResult(toolsets.Result{
			Success: false,
			Message: fmt.Sprintf("toolset %q is not permitted for this client", name),
			Code:    toolsets.CodePolicyDenied,
		})
	}

	b, err := s.callerBundle(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(b.Manager.EnableToolset(ctx, name))
}

func (s *DynamicServer) handleEnableToolsets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	raw, ok := args["names"].([]any)
	if !ok {
		return mcp.NewToolResultError("names argument must be an array of strings"), nil
	}
	names := make([]string, 0, len(raw))
	for _, v := range raw {
		name, ok := v.(string)
		if !ok {
			return mcp.NewToolResultError("names argument must be an array of strings"), nil
		}
		names = append(names, name)
	}

	b, err := s.callerBundle(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Permission checks keep their per-name results in the batch shape.
	allowed := make([]string, 0, len(names))
	denied := make([]toolsets.NamedResult, 0)
	for _, name := range names {
		if s.permitted(ctx, name) {
			allowed = append(allowed, name)
			continue
		}
		denied = append(denied, toolsets.NamedResult{
			Name: name,
			Result: toolsets.Result{
				Success: false,
				Message: fmt.Sprintf("toolset %q is not permitted for this client", name),
				Code:    toolsets.CodePolicyDenied,
			},
		})
	}

	batch := b.Manager.EnableToolsets(ctx, allowed)
	batch.Results = append(batch.Results, denied...)
	if len(denied) > 0 {
		batch.Success = false
		succeeded := 0
		for _, r := range batch.Results {
			if r.Success {
				succeeded++
			}
		}
		// Denials count against the caller's full request.
		batch.Message = fmt.Sprintf("enabled %d of %d toolsets", succeeded, len(names))
	}
	return jsonResult(batch)
}

func (s *DynamicServer) handleDisableToolset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name argument is required"), nil
	}

	b, err := s.callerBundle(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(b.Manager.DisableToolset(ctx, name))
}

func (s *DynamicServer) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := s.callerBundle(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status := b.Manager.GetStatus()
	return jsonResult(map[string]any{
		"client":            b.ClientID,
		"bundle":            b.ID,
		"activeToolsets":    status.ActiveToolsets,
		"availableToolsets": status.AvailableToolsets,
		"registeredTools":   status.RegisteredTools,
		"toolsByToolset":    status.ToolsByToolset,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
