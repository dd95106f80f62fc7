// Package toolsets implements dynamic activation of named capability groups
// against an external registration sink.
//
// A toolset is a catalog-defined group of capabilities (MCP tools) that
// activates and deactivates as a unit. The package provides two cooperating
// pieces:
//
//   - Registry: a collision-safe flat namespace of registered capability
//     names, split into a pure validation step and a mutating commit step.
//   - Manager: a per-bundle state machine (inactive/active per toolset) that
//     enforces the exposure policy fail-fast, resolves capabilities through
//     lazy module loaders, and performs all-or-nothing logical activation.
//
// The registration sink is one-way: the underlying MCP server has no
// unregister operation. Enabling a toolset registers its tools and marks it
// active; disabling only flips it back to inactive. Tools registered during
// a failed or later-disabled activation remain externally callable.
package toolsets
