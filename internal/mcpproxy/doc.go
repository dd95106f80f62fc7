// Package mcpproxy exposes remote MCP servers as lazily loaded toolsets.
//
// A proxy toolset's capabilities are not known until enable time: the module
// loader connects to the remote server, lists its tools, and yields
// capability definitions whose handlers forward calls over the live
// connection. The connection is a per-bundle session handle, released when
// the bundle is evicted.
package mcpproxy
