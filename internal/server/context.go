package server

import (
	"context"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
)

// CallerIDHeader is the HTTP header a client sends to identify itself
// across connections. When present it takes precedence over the random
// session ID generated by mcp-go, so a CLI client that reconnects keeps
// the same toolset bundle.
const CallerIDHeader = "X-Toolception-Client-Id"

// Caller describes the identity behind a request: a stable client ID and
// the request headers, which the permission resolver may consult.
type Caller struct {
	ID      string
	Headers http.Header
}

// callerContextKey keys the Caller in a request context. The struct type
// guarantees key identity across packages.
type callerContextKey struct{}

// WithCaller returns a new context carrying the caller.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, c)
}

// CallerFromContext extracts the caller set by the HTTP transport.
// Returns false for stdio connections and untagged contexts.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerContextKey{}).(Caller)
	return c, ok
}

// injectCaller is installed as the transport's context function so every
// tool handler can recover the caller identity and headers.
func injectCaller(ctx context.Context, r *http.Request) context.Context {
	return WithCaller(ctx, Caller{
		ID:      r.Header.Get(CallerIDHeader),
		Headers: r.Header.Clone(),
	})
}

// resolveCallerID returns the effective caller identity for a handler
// context: the client-provided ID when present, otherwise the mcp-go
// session ID, otherwise "anonymous" (stdio serves a single caller).
func resolveCallerID(ctx context.Context) (string, http.Header) {
	var headers http.Header
	if c, ok := CallerFromContext(ctx); ok {
		headers = c.Headers
		if c.ID != "" {
			return c.ID, headers
		}
	}
	if session := server.ClientSessionFromContext(ctx); session != nil {
		return session.SessionID(), headers
	}
	return "anonymous", headers
}
