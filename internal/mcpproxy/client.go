package mcpproxy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/code-rabi/toolception-sub000/pkg/logging"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// initializeTimeout bounds the protocol handshake when the caller's context
// carries no deadline.
const initializeTimeout = 10 * time.Second

// Client is a live connection to a remote MCP server over streamable HTTP.
// One client is opened per bundle that enables a proxy toolset; the bundle
// owns the client as a session handle and closes it on eviction.
type Client struct {
	name    string
	url     string
	headers map[string]string

	mu        sync.RWMutex
	client    *client.Client
	connected bool
}

// NewClient creates an unconnected client for a remote MCP server. The
// connection is established lazily by Initialize.
func NewClient(name, url string, headers map[string]string) *Client {
	if headers == nil {
		headers = make(map[string]string)
	}
	return &Client{
		name:    name,
		url:     url,
		headers: headers,
	}
}

// Initialize establishes the connection and performs the protocol handshake.
// Calling Initialize on a connected client is a no-op.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	logging.Debug("MCPProxy", "Creating streamable HTTP client for %s at %s", c.name, c.url)

	var opts []transport.StreamableHTTPCOption
	if len(c.headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(c.headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(c.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to create streamable HTTP client: %w", err)
	}

	initCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, initializeTimeout)
		defer cancel()
	}

	initResult, err := mcpClient.Initialize(initCtx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: "2024-11-05",
			ClientInfo: mcp.Implementation{
				Name:    "toolception-proxy",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to initialize MCP protocol: %w", err)
	}

	logging.Debug("MCPProxy", "Connected to %s (%s %s)",
		c.name, initResult.ServerInfo.Name, initResult.ServerInfo.Version)

	c.client = mcpClient
	c.connected = true
	return nil
}

// ListTools returns all tools offered by the remote server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected || c.client == nil {
		return nil, fmt.Errorf("client not connected")
	}

	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return result.Tools, nil
}

// CallTool executes a tool on the remote server and returns its result.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected || c.client == nil {
		return nil, fmt.Errorf("client not connected")
	}

	result, err := c.client.CallTool(ctx, mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call tool: %w", err)
	}
	return result, nil
}

// Close shuts down the connection. Closing an unconnected client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.client == nil {
		return nil
	}

	err := c.client.Close()
	c.client = nil
	c.connected = false

	if err != nil {
		return fmt.Errorf("failed to close client for %s: %w", c.name, err)
	}
	logging.Debug("MCPProxy", "Closed connection to %s", c.name)
	return nil
}
