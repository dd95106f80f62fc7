package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/code-rabi/toolception-sub000/internal/bundle"
	"github.com/code-rabi/toolception-sub000/internal/config"
	"github.com/code-rabi/toolception-sub000/internal/permissions"
	"github.com/code-rabi/toolception-sub000/internal/toolsets"
	"github.com/code-rabi/toolception-sub000/pkg/logging"

	"github.com/mark3labs/mcp-go/server"
)

// Config configures a DynamicServer.
type Config struct {
	// Name and Version identify the server to MCP clients.
	Name    string
	Version string

	// Host, Port and Transport select the listening endpoint. Transport is
	// one of the config package's transport constants.
	Host      string
	Port      int
	Transport string

	// Permissions gates which toolsets a caller may enable through the
	// meta-tools. Optional; nil allows everything.
	Permissions *permissions.Resolver
}

// DynamicServer is an MCP server whose tool surface grows at runtime. It
// starts with only the toolset meta-tools; enabling a toolset registers
// that toolset's tools and notifies connected clients via
// tools/list_changed.
type DynamicServer struct {
	config Config
	server *server.MCPServer

	permissions *permissions.Resolver

	// Transport-specific servers
	sseServer            *server.SSEServer
	streamableHTTPServer *server.StreamableHTTPServer
	stdioServer          *server.StdioServer

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex
	started    bool

	pool *bundle.Pool
}

// NewDynamicServer creates the server and its underlying MCP server. The
// MCP server exists immediately so a bundle pool can be wired to its
// registration sink before Start.
func NewDynamicServer(cfg Config) *DynamicServer {
	if cfg.Name == "" {
		cfg.Name = "toolception"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &DynamicServer{
		config:      cfg,
		permissions: cfg.Permissions,
		server: server.NewMCPServer(
			cfg.Name,
			cfg.Version,
			server.WithToolCapabilities(true),
		),
	}
	s.registerMetaTools()
	return s
}

// Sink returns the registration sink bundles register capabilities through.
func (s *DynamicServer) Sink() toolsets.RegistrationSink {
	return &registrationSink{server: s.server}
}

// Notifier returns the notifier that broadcasts tools/list_changed.
func (s *DynamicServer) Notifier() toolsets.Notifier {
	return &changeNotifier{server: s.server}
}

// AttachPool wires the bundle pool the meta-tool handlers dispatch to.
// Must be called before the first request arrives.
func (s *DynamicServer) AttachPool(p *bundle.Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool = p
}

func (s *DynamicServer) getPool() *bundle.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool
}

// Start starts the configured transport server.
func (s *DynamicServer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.ctx, s.cancelFunc = context.WithCancel(ctx)
	s.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	switch s.config.Transport {
	case config.TransportSSE:
		logging.Info("DynamicServer", "Starting MCP server with SSE transport on %s", addr)
		baseURL := fmt.Sprintf("http://%s:%d", s.config.Host, s.config.Port)
		s.sseServer = server.NewSSEServer(
			s.server,
			server.WithBaseURL(baseURL),
			server.WithSSEEndpoint("/sse"),
			server.WithMessageEndpoint("/message"),
			server.WithKeepAlive(true),
			server.WithKeepAliveInterval(30*time.Second),
			server.WithSSEContextFunc(injectCaller),
		)
		sseServer := s.sseServer
		go func() {
			if err := sseServer.Start(addr); err != nil && err != http.ErrServerClosed {
				logging.Error("DynamicServer", err, "SSE server error")
			}
		}()

	case config.TransportStdio:
		logging.Info("DynamicServer", "Starting MCP server with stdio transport")
		s.stdioServer = server.NewStdioServer(s.server)
		stdioServer := s.stdioServer
		go func() {
			if err := stdioServer.Listen(s.ctx, os.Stdin, os.Stdout); err != nil {
				logging.Error("DynamicServer", err, "Stdio server error")
			}
		}()

	case config.TransportStreamableHTTP:
		fallthrough
	default:
		logging.Info("DynamicServer", "Starting MCP server with streamable-http transport on %s", addr)
		s.streamableHTTPServer = server.NewStreamableHTTPServer(
			s.server,
			server.WithHTTPContextFunc(injectCaller),
		)
		streamableServer := s.streamableHTTPServer
		go func() {
			if err := streamableServer.Start(addr); err != nil && err != http.ErrServerClosed {
				logging.Error("DynamicServer", err, "Streamable HTTP server error")
			}
		}()
	}

	return nil
}

// Stop shuts the transport down and releases every bundle in the pool.
func (s *DynamicServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("server not started")
	}
	s.started = false

	logging.Info("DynamicServer", "Stopping MCP server")

	cancelFunc := s.cancelFunc
	sseServer := s.sseServer
	streamableServer := s.streamableHTTPServer
	pool := s.pool
	s.sseServer = nil
	s.streamableHTTPServer = nil
	s.stdioServer = nil
	s.mu.Unlock()

	if cancelFunc != nil {
		cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if sseServer != nil {
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("DynamicServer", err, "Error shutting down SSE server")
		}
	}
	if streamableServer != nil {
		if err := streamableServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("DynamicServer", err, "Error shutting down streamable HTTP server")
		}
	}
	// Stdio server stops on context cancellation, no explicit shutdown needed.

	if pool != nil {
		pool.Shutdown()
	}

	logging.Info("DynamicServer", "MCP server stopped")
	return nil
}

// Endpoint returns the URL clients connect to for HTTP transports.
func (s *DynamicServer) Endpoint() string {
	switch s.config.Transport {
	case config.TransportSSE:
		return fmt.Sprintf("http://%s:%d/sse", s.config.Host, s.config.Port)
	case config.TransportStdio:
		return ""
	default:
		return fmt.Sprintf("http://%s:%d/mcp", s.config.Host, s.config.Port)
	}
}
