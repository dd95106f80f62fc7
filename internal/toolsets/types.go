package toolsets

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// CapabilityDefinition describes a single named, schema-described,
// handler-backed unit of functionality. Definitions are immutable once
// supplied by a toolset or module loader.
type CapabilityDefinition struct {
	Name        string
	Description string
	InputSchema mcp.ToolInputSchema
	Handler     server.ToolHandlerFunc
}

// ModuleLoader lazily produces the capability definitions for a module
// reference. Loaders may perform I/O (e.g. connect to a remote server) and
// must honor the context.
type ModuleLoader func(ctx context.Context) ([]CapabilityDefinition, error)

// ToolsetDefinition describes a named group of capabilities that activates
// and deactivates as a unit. Definitions come from an external catalog and
// are read-only to this package.
//
// A toolset's capabilities can be given statically via Capabilities, lazily
// via LazyModuleRefs (resolved through the manager's loader table at enable
// time), or both.
type ToolsetDefinition struct {
	Key            string
	Name           string
	Description    string
	Capabilities   []CapabilityDefinition
	LazyModuleRefs []string
}

// Catalog maps toolset keys to their definitions. It is read-only input to
// the manager; each bundle receives its own manager over a shared catalog.
type Catalog map[string]ToolsetDefinition

// RegistrationSink receives fully qualified capability registrations.
//
// The sink is one-way: the MCP server surface this models has no unregister
// operation. Disabling a toolset is bookkeeping only; capabilities already
// pushed to the sink stay externally registered. This is a platform
// constraint, not an oversight.
type RegistrationSink interface {
	Register(tool mcp.Tool, handler server.ToolHandlerFunc)
}

// Notifier delivers the "capabilities changed" notification to connected
// clients. Delivery is best-effort: failures are logged by the manager and
// never alter an activation result already computed.
type Notifier interface {
	NotifyCapabilitiesChanged(ctx context.Context) error
}

// OnLimitExceededFunc is invoked when an enable attempt would exceed the
// policy's MaxActiveToolsets, with the attempted toolset keys and the keys
// currently active.
type OnLimitExceededFunc func(attempted []string, active []string)

// ExposurePolicy is the identity-independent gate applied uniformly to all
// callers before any resolution work happens. The zero value permits
// everything.
type ExposurePolicy struct {
	// MaxActiveToolsets caps how many toolsets may be active at once per
	// manager. Zero means unlimited.
	MaxActiveToolsets int

	// Allowlist, when non-empty, restricts enabling to the listed keys.
	Allowlist []string

	// Denylist rejects the listed keys regardless of the allowlist.
	Denylist []string

	// NamespaceCapabilities prefixes registered capability names with
	// "<toolsetKey>." unless the name already carries that exact prefix.
	NamespaceCapabilities bool

	// OnLimitExceeded, when set, fires exactly once per rejected enable
	// attempt on the MaxActiveToolsets path.
	OnLimitExceeded OnLimitExceededFunc
}

// allows reports whether the policy's allow/deny lists permit the key.
func (p ExposurePolicy) allows(key string) (bool, string) {
	for _, denied := range p.Denylist {
		if denied == key {
			return false, "toolset is denylisted"
		}
	}
	if len(p.Allowlist) > 0 {
		for _, allowed := range p.Allowlist {
			if allowed == key {
				return true, ""
			}
		}
		return false, "toolset is not in the allowlist"
	}
	return true, ""
}
