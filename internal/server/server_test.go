package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/code-rabi/toolception-sub000/internal/bundle"
	"github.com/code-rabi/toolception-sub000/internal/permissions"
	"github.com/code-rabi/toolception-sub000/internal/toolsets"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("ok"), nil
}

func testCatalog() toolsets.Catalog {
	return toolsets.Catalog{
		"core": {
			Key:         "core",
			Name:        "Core",
			Description: "Core tools",
			Capabilities: []toolsets.CapabilityDefinition{
				{Name: "ping", Description: "Ping", Handler: okHandler},
			},
		},
		"search": {
			Key: "search",
			Capabilities: []toolsets.CapabilityDefinition{
				{Name: "find", Handler: okHandler},
			},
		},
	}
}

// newTestServer wires a DynamicServer to a pool over the test catalog.
// Transports are never started; handlers are invoked directly.
func newTestServer(t *testing.T, cfg Config) *DynamicServer {
	t.Helper()
	s := NewDynamicServer(cfg)
	pool := bundle.NewPool(bundle.PoolConfig{
		Catalog:     testCatalog(),
		Sink:        s.Sink(),
		Notifier:    s.Notifier(),
		Permissions: cfg.Permissions,
	})
	s.AttachPool(pool)
	t.Cleanup(pool.Shutdown)
	return s
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args
	return request
}

func callerCtx(clientID string) context.Context {
	return WithCaller(context.Background(), Caller{ID: clientID, Headers: http.Header{}})
}

func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	return decoded
}

func TestListToolsets(t *testing.T) {
	s := newTestServer(t, Config{})

	result, err := s.handleListToolsets(callerCtx("alice"), callRequest("list_toolsets", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	decoded := decodeResult(t, result)
	assert.Equal(t, float64(2), decoded["total"])

	entries := decoded["toolsets"].([]interface{})
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "core", first["key"])
	assert.Equal(t, false, first["active"])
}

func TestEnableToolsetAndStatus(t *testing.T) {
	s := newTestServer(t, Config{})
	ctx := callerCtx("alice")

	result, err := s.handleEnableToolset(ctx, callRequest("enable_toolset", map[string]interface{}{"name": "core"}))
	require.NoError(t, err)
	decoded := decodeResult(t, result)
	assert.Equal(t, true, decoded["success"])

	result, err = s.handleGetStatus(ctx, callRequest("get_status", nil))
	require.NoError(t, err)
	status := decodeResult(t, result)
	assert.Equal(t, "alice", status["client"])
	assert.Equal(t, []interface{}{"core"}, status["activeToolsets"])

	bundleID, ok := status["bundle"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, bundleID)
}

func TestEnableToolsetUnknownName(t *testing.T) {
	s := newTestServer(t, Config{})

	result, err := s.handleEnableToolset(callerCtx("alice"), callRequest("enable_toolset", map[string]interface{}{"name": "nope"}))
	require.NoError(t, err)
	decoded := decodeResult(t, result)
	assert.Equal(t, false, decoded["success"])
	assert.Equal(t, string(toolsets.CodeValidation), decoded["code"])
}

func TestEnableToolsetMissingArgument(t *testing.T) {
	s := newTestServer(t, Config{})

	result, err := s.handleEnableToolset(callerCtx("alice"), callRequest("enable_toolset", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestEnableToolsetPermissionDenied(t *testing.T) {
	resolver := permissions.NewResolver(permissions.Config{
		Source:    permissions.SourceConfig,
		StaticMap: map[string][]string{"alice": {"core"}},
	})
	s := newTestServer(t, Config{Permissions: resolver})

	result, err := s.handleEnableToolset(callerCtx("alice"), callRequest("enable_toolset", map[string]interface{}{"name": "search"}))
	require.NoError(t, err)
	decoded := decodeResult(t, result)
	assert.Equal(t, false, decoded["success"])
	assert.Equal(t, string(toolsets.CodePolicyDenied), decoded["code"])

	// The grant still works.
	result, err = s.handleEnableToolset(callerCtx("alice"), callRequest("enable_toolset", map[string]interface{}{"name": "core"}))
	require.NoError(t, err)
	decoded = decodeResult(t, result)
	assert.Equal(t, true, decoded["success"])
}

func TestEnableToolsetsMixedPermissions(t *testing.T) {
	resolver := permissions.NewResolver(permissions.Config{
		Source:    permissions.SourceConfig,
		StaticMap: map[string][]string{"alice": {"core"}},
	})
	s := newTestServer(t, Config{Permissions: resolver})

	result, err := s.handleEnableToolsets(callerCtx("alice"), callRequest("enable_toolsets",
		map[string]interface{}{"names": []interface{}{"core", "search"}}))
	require.NoError(t, err)
	decoded := decodeResult(t, result)
	assert.Equal(t, false, decoded["success"])

	outcomes := make(map[string]bool)
	for _, entry := range decoded["results"].([]interface{}) {
		r := entry.(map[string]interface{})
		outcomes[r["name"].(string)] = r["success"].(bool)
	}
	assert.Equal(t, map[string]bool{"core": true, "search": false}, outcomes)
	assert.Equal(t, "enabled 1 of 2 toolsets", decoded["message"])
}

func TestEnableToolsetsBadArgument(t *testing.T) {
	s := newTestServer(t, Config{})

	result, err := s.handleEnableToolsets(callerCtx("alice"), callRequest("enable_toolsets",
		map[string]interface{}{"names": "core"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestDisableToolset(t *testing.T) {
	s := newTestServer(t, Config{})
	ctx := callerCtx("alice")

	_, err := s.handleEnableToolset(ctx, callRequest("enable_toolset", map[string]interface{}{"name": "core"}))
	require.NoError(t, err)

	result, err := s.handleDisableToolset(ctx, callRequest("disable_toolset", map[string]interface{}{"name": "core"}))
	require.NoError(t, err)
	decoded := decodeResult(t, result)
	assert.Equal(t, true, decoded["success"])

	result, err = s.handleGetStatus(ctx, callRequest("get_status", nil))
	require.NoError(t, err)
	status := decodeResult(t, result)
	assert.Empty(t, status["activeToolsets"])
	// Registered tools survive the disable; the platform cannot retract them.
	assert.NotEmpty(t, status["registeredTools"])
}

func TestDescribeToolset(t *testing.T) {
	s := newTestServer(t, Config{})

	result, err := s.handleDescribeToolset(callerCtx("alice"), callRequest("describe_toolset", map[string]interface{}{"name": "core"}))
	require.NoError(t, err)
	decoded := decodeResult(t, result)
	assert.Equal(t, "core", decoded["key"])
	assert.Equal(t, []interface{}{"ping"}, decoded["capabilities"])

	result, err = s.handleDescribeToolset(callerCtx("alice"), callRequest("describe_toolset", map[string]interface{}{"name": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCallerIsolation(t *testing.T) {
	s := newTestServer(t, Config{})

	_, err := s.handleEnableToolset(callerCtx("alice"), callRequest("enable_toolset", map[string]interface{}{"name": "core"}))
	require.NoError(t, err)

	result, err := s.handleGetStatus(callerCtx("bob"), callRequest("get_status", nil))
	require.NoError(t, err)
	status := decodeResult(t, result)
	assert.Empty(t, status["activeToolsets"])
}

func TestNoPoolAttached(t *testing.T) {
	s := NewDynamicServer(Config{})

	result, err := s.handleGetStatus(callerCtx("alice"), callRequest("get_status", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestResolveCallerIDFallback(t *testing.T) {
	id, headers := resolveCallerID(context.Background())
	assert.Equal(t, "anonymous", id)
	assert.Nil(t, headers)

	id, _ = resolveCallerID(callerCtx("alice"))
	assert.Equal(t, "alice", id)
}

func TestHeaderPermissionsDoNotGateExplicitEnable(t *testing.T) {
	resolver := permissions.NewResolver(permissions.Config{
		Source:     permissions.SourceHeaders,
		HeaderName: "X-Toolception-Toolsets",
	})
	s := newTestServer(t, Config{Permissions: resolver})

	// No header sent, yet an explicit enable still goes through: the
	// header only drives initial activation.
	result, err := s.handleEnableToolset(callerCtx("alice"), callRequest("enable_toolset", map[string]interface{}{"name": "core"}))
	require.NoError(t, err)
	decoded := decodeResult(t, result)
	assert.Equal(t, true, decoded["success"])
}
