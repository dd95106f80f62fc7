package toolsets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/code-rabi/toolception-sub000/pkg/logging"
	"github.com/mark3labs/mcp-go/mcp"
)

// Result is the structured outcome of a single activation operation.
// Failures are reported as data with a classification code instead of
// errors crossing the component boundary.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    Code   `json:"code,omitempty"`
}

// NamedResult pairs a toolset key with its activation result, used by the
// batch enable operation.
type NamedResult struct {
	Name string `json:"name"`
	Result
}

// BatchResult aggregates the per-name outcomes of a batch enable. Success is
// true only if every name succeeded.
type BatchResult struct {
	Success bool          `json:"success"`
	Results []NamedResult `json:"results"`
	Message string        `json:"message"`
}

// Status is a point-in-time snapshot of a manager's activation state.
type Status struct {
	ActiveToolsets    []string            `json:"activeToolsets"`
	AvailableToolsets []string            `json:"availableToolsets"`
	RegisteredTools   []string            `json:"registeredTools"`
	ToolsByToolset    map[string][]string `json:"toolsByToolset"`
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Catalog is the read-only set of known toolset definitions.
	Catalog Catalog

	// Sink receives capability registrations. Required.
	Sink RegistrationSink

	// Notifier delivers capabilities-changed notifications. Optional.
	Notifier Notifier

	// Policy is the exposure policy gating every enable attempt.
	Policy ExposurePolicy

	// Loaders resolves a ToolsetDefinition's LazyModuleRefs.
	Loaders map[string]ModuleLoader
}

// Manager is the per-bundle activation state machine over toolsets. Every
// known toolset starts inactive; EnableToolset moves it to active and
// DisableToolset back. Activation is all-or-nothing at the logical level: a
// toolset becomes active only after every one of its capabilities validated
// and registered.
//
// A manager serializes its own mutations, so concurrent enable calls for the
// same toolset key on the same bundle cannot double-register. Managers of
// different bundles never contend.
type Manager struct {
	mu sync.Mutex

	catalog  Catalog
	registry *Registry
	sink     RegistrationSink
	notifier Notifier
	policy   ExposurePolicy
	loaders  map[string]ModuleLoader

	active map[string]bool
}

// NewManager creates a manager with a fresh capability registry. Each cached
// bundle must get its own manager instance; activation state is never
// process-wide.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		catalog:  cfg.Catalog,
		registry: NewRegistry(cfg.Policy.NamespaceCapabilities),
		sink:     cfg.Sink,
		notifier: cfg.Notifier,
		policy:   cfg.Policy,
		loaders:  cfg.Loaders,
		active:   make(map[string]bool),
	}
}

// Registry returns the manager's capability registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// EnableToolset activates the named toolset: it validates the name against
// the catalog, applies the exposure policy, resolves the toolset's
// capabilities (possibly through lazy module loaders), registers every
// capability with the sink, and only then flips the toolset to active and
// fires one best-effort capabilities-changed notification.
//
// Capabilities already pushed to the sink before a late failure stay
// externally registered; there is no sink rollback. The toolset's logical
// state stays inactive in that case.
func (m *Manager) EnableToolset(ctx context.Context, name string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enable(ctx, name, true)
}

// EnableToolsets activates the named toolsets sequentially with per-name
// notifications suppressed, firing exactly one coalesced notification if at
// least one succeeded.
func (m *Manager) EnableToolsets(ctx context.Context, names []string) BatchResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := BatchResult{Success: true}
	succeeded := 0

	for _, name := range names {
		result := m.enable(ctx, name, false)
		batch.Results = append(batch.Results, NamedResult{Name: name, Result: result})
		if result.Success {
			succeeded++
		} else {
			batch.Success = false
		}
	}

	if succeeded > 0 {
		m.notifyChanged(ctx)
	}

	batch.Message = fmt.Sprintf("enabled %d of %d toolsets", succeeded, len(names))
	return batch
}

// DisableToolset deactivates an active toolset and fires a notification.
// Capabilities already registered with the sink remain externally
// registered and callable; disable is bookkeeping only.
func (m *Manager) DisableToolset(ctx context.Context, name string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = strings.TrimSpace(name)
	if !m.active[name] {
		return Result{
			Success: false,
			Message: fmt.Sprintf("toolset %q is not enabled", name),
			Code:    CodeValidation,
		}
	}

	m.active[name] = false
	logging.Info("ToolsetManager", "Disabled toolset %s (registered tools remain callable)", name)
	m.notifyChanged(ctx)

	return Result{
		Success: true,
		Message: fmt.Sprintf("toolset %q disabled; previously registered tools remain available", name),
	}
}

// IsActive reports whether the named toolset is currently active.
func (m *Manager) IsActive(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[name]
}

// GetAvailableToolsets returns the sorted keys of all catalog toolsets.
func (m *Manager) GetAvailableToolsets() []string {
	keys := make([]string, 0, len(m.catalog))
	for key := range m.catalog {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// GetToolsetDefinition returns the catalog definition for a toolset key.
func (m *Manager) GetToolsetDefinition(name string) (ToolsetDefinition, bool) {
	def, ok := m.catalog[strings.TrimSpace(name)]
	return def, ok
}

// GetStatus returns a snapshot of active and available toolsets together
// with the registered capability names, overall and grouped per toolset.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	active := make([]string, 0, len(m.active))
	for name, on := range m.active {
		if on {
			active = append(active, name)
		}
	}
	m.mu.Unlock()
	sort.Strings(active)

	return Status{
		ActiveToolsets:    active,
		AvailableToolsets: m.GetAvailableToolsets(),
		RegisteredTools:   m.registry.List(),
		ToolsByToolset:    m.registry.ListByToolset(),
	}
}

// enable performs one activation attempt. Caller must hold m.mu.
func (m *Manager) enable(ctx context.Context, name string, notify bool) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("ToolsetManager", fmt.Errorf("%v", r), "Unexpected failure enabling toolset %s", name)
			result = Result{
				Success: false,
				Message: fmt.Sprintf("internal error enabling toolset %q", name),
				Code:    CodeInternal,
			}
		}
	}()

	// Step 1: validate the name against the catalog.
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{Success: false, Message: "toolset name must not be empty", Code: CodeValidation}
	}
	def, known := m.catalog[name]
	if !known {
		return Result{
			Success: false,
			Message: fmt.Sprintf("unknown toolset: %q", name),
			Code:    CodeValidation,
		}
	}

	// Step 2: reject re-activation.
	if m.active[name] {
		return Result{
			Success: false,
			Message: fmt.Sprintf("toolset %q is already enabled", name),
			Code:    CodeValidation,
		}
	}

	// Step 3: exposure policy, before any resolution work.
	if allowed, reason := m.policy.allows(name); !allowed {
		return Result{
			Success: false,
			Message: fmt.Sprintf("cannot enable toolset %q: %s", name, reason),
			Code:    CodePolicyDenied,
		}
	}
	if m.policy.MaxActiveToolsets > 0 {
		active := m.activeKeys()
		if len(active) >= m.policy.MaxActiveToolsets {
			if m.policy.OnLimitExceeded != nil {
				m.policy.OnLimitExceeded([]string{name}, active)
			}
			return Result{
				Success: false,
				Message: fmt.Sprintf("cannot enable toolset %q: %d toolsets already active (limit %d)",
					name, len(active), m.policy.MaxActiveToolsets),
				Code: CodePolicyDenied,
			}
		}
	}

	// Step 4: resolve the capability list, possibly through lazy loaders.
	capabilities, err := m.resolveCapabilities(ctx, def)
	if err != nil {
		logging.Warn("ToolsetManager", "Failed to load capabilities for toolset %s: %v", name, err)
		return Result{
			Success: false,
			Message: fmt.Sprintf("failed to load capabilities for toolset %q: %v", name, err),
			Code:    CodeLoaderError,
		}
	}

	// Step 5: validate the whole toolset against the namespace, then
	// register and commit capability by capability.
	qualified, err := m.registry.ValidateNames(name, capabilities)
	if err != nil {
		var collision *CollisionError
		if errors.As(err, &collision) {
			return Result{
				Success: false,
				Message: fmt.Sprintf("cannot enable toolset %q: %v", name, collision),
				Code:    CodeCollision,
			}
		}
		return Result{
			Success: false,
			Message: fmt.Sprintf("cannot enable toolset %q: %v", name, err),
			Code:    CodeInternal,
		}
	}

	for i, capability := range capabilities {
		m.sink.Register(m.toolFor(qualified[i], capability), capability.Handler)
		m.registry.Commit(name, qualified[i])
	}

	// Step 6: flip to active and notify.
	m.active[name] = true
	logging.Info("ToolsetManager", "Enabled toolset %s with %d capabilities", name, len(capabilities))

	if notify {
		m.notifyChanged(ctx)
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("toolset %q enabled with %d capabilities", name, len(capabilities)),
	}
}

// activeKeys returns the sorted keys of active toolsets. Caller must hold m.mu.
func (m *Manager) activeKeys() []string {
	keys := make([]string, 0, len(m.active))
	for name, on := range m.active {
		if on {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys
}

// resolveCapabilities combines a definition's static capabilities with the
// output of its lazy module loaders.
func (m *Manager) resolveCapabilities(ctx context.Context, def ToolsetDefinition) ([]CapabilityDefinition, error) {
	capabilities := make([]CapabilityDefinition, 0, len(def.Capabilities))
	capabilities = append(capabilities, def.Capabilities...)

	for _, ref := range def.LazyModuleRefs {
		loader, ok := m.loaders[ref]
		if !ok {
			return nil, &LoaderError{
				Toolset: def.Key,
				Ref:     ref,
				Err:     errors.New("no module loader registered"),
			}
		}

		loaded, err := invokeLoader(ctx, loader)
		if err != nil {
			return nil, &LoaderError{Toolset: def.Key, Ref: ref, Err: err}
		}
		capabilities = append(capabilities, loaded...)
	}

	return capabilities, nil
}

// invokeLoader runs a module loader, converting panics into errors so a
// misbehaving loader surfaces as a loader failure instead of taking the
// process down.
func invokeLoader(ctx context.Context, loader ModuleLoader) (capabilities []CapabilityDefinition, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader panicked: %v", r)
		}
	}()
	return loader(ctx)
}

// toolFor builds the MCP tool for a capability under its qualified name.
// Capabilities without a schema get an empty object schema.
func (m *Manager) toolFor(qualifiedName string, capability CapabilityDefinition) mcp.Tool {
	schema := capability.InputSchema
	if schema.Type == "" {
		schema.Type = "object"
	}
	return mcp.Tool{
		Name:        qualifiedName,
		Description: capability.Description,
		InputSchema: schema,
	}
}

// notifyChanged fires the capabilities-changed notification. Failures are
// logged and never affect the activation result.
func (m *Manager) notifyChanged(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyCapabilitiesChanged(ctx); err != nil {
		logging.Warn("ToolsetManager", "Capabilities-changed notification failed: %v", err)
	}
}
