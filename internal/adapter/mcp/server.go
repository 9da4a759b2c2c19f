// Package mcp exposes Parley sessions to AI agents over the Model Context
// Protocol. The server runs on its own listener next to the REST API.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/parleyhq/parley/internal/domain/session"
	"github.com/parleyhq/parley/internal/gate"
)

// SessionReader reads session state for MCP consumers.
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (*session.Session, error)
}

// TurnProcessor submits utterances on behalf of an agent.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sessionID, input string) (*session.Turn, error)
}

// ThresholdReader exposes the active confidence thresholds.
type ThresholdReader interface {
	Current() *gate.Thresholds
}

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Name    string
	Version string
	Addr    string
	APIKey  string
}

// ServerDeps holds the capabilities the MCP tools are built on. Nil
// entries disable the corresponding tools at call time with a clear error.
type ServerDeps struct {
	Sessions   SessionReader
	Turns      TurnProcessor
	Thresholds ThresholdReader
}

// Server wraps an MCP server with Parley's tools and resources.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
}

// NewServer creates an MCP server exposing session tools.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying MCP server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start begins serving MCP over streamable HTTP. It returns immediately;
// serve errors are logged.
func (s *Server) Start() error {
	handler := AuthMiddleware(s.cfg.APIKey, mcpserver.NewStreamableHTTPServer(s.mcpServer))
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("mcp server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
