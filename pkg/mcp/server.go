// Package mcp exposes one role's tool set as an MCP server so other
// agents can call the same tools the dispatcher offers that role.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/campusdesk/pkg/audit"
	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/governance"
	"github.com/jllopis/campusdesk/pkg/tools"
)

// Server wraps an mcp-go server bound to a single session.
type Server struct {
	mcpServer *server.MCPServer
	session   *core.SessionContext
	caps      *governance.CapabilityMap
	runID     string
	audit     audit.Store
	log       *slog.Logger
	names     []string
}

// Option configures a Server.
type Option func(*Server)

// WithAudit records every call in store.
func WithAudit(store audit.Store) Option {
	return func(s *Server) { s.audit = store }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer registers the tools granted to the session's role. Calls run
// under that session, so identity arguments are bound the same way they
// are for chat turns.
func NewServer(name, version string, caps *governance.CapabilityMap, sc *core.SessionContext, opts ...Option) (*Server, error) {
	if caps == nil || sc == nil {
		return nil, fmt.Errorf("mcp: capability map and session are required")
	}
	s := &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		session:   sc,
		caps:      caps,
		runID:     uuid.NewString(),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, desc := range caps.Resolve(sc.Role()) {
		if err := s.register(desc); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Server) register(desc *tools.Descriptor) error {
	schema, err := json.Marshal(desc.Schema())
	if err != nil {
		return fmt.Errorf("mcp: schema for %s: %w", desc.Name, err)
	}
	tool := mcp.NewToolWithRawSchema(desc.Name, desc.Description, schema)
	s.mcpServer.AddTool(tool, s.handler(desc.Name))
	s.names = append(s.names, desc.Name)
	return nil
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw := "{}"
		if args := request.GetRawArguments(); args != nil {
			b, err := json.Marshal(args)
			if err != nil {
				return mcp.NewToolResultError("arguments must be a JSON object"), nil
			}
			raw = string(b)
		}
		result := s.Call(ctx, name, raw)
		out := &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(result.Render())},
			IsError: result.IsFailed(),
		}
		return out, nil
	}
}

// Call runs a tool for the bound session. Tools outside the role's set
// fail the same way they do in a chat turn.
func (s *Server) Call(ctx context.Context, name, rawArgs string) tools.Result {
	role := s.session.Role()
	start := time.Now()
	ctx = core.WithSession(ctx, s.session)

	var result tools.Result
	if desc, ok := s.caps.Lookup(role, name); ok {
		result = desc.Invoke(ctx, s.session, rawArgs)
	} else {
		result = s.caps.Denial(role, name)
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	s.log.InfoContext(ctx, "mcp.tool.result",
		slog.String("role", string(role)),
		slog.String("tool", name),
		slog.String("status", string(result.Status)),
		slog.String("error_code", string(result.Code)),
		slog.Float64("duration_ms", elapsed),
	)
	if s.audit != nil {
		err := s.audit.Record(ctx, audit.Entry{
			RunID:      s.runID,
			CallID:     "mcp_" + uuid.NewString(),
			Role:       string(role),
			IdentityID: s.session.IdentityID(),
			Tool:       name,
			Arguments:  rawArgs,
			Status:     string(result.Status),
			Code:       string(result.Code),
			Message:    result.Message,
			StartedAt:  start,
			DurationMs: elapsed,
		})
		if err != nil {
			s.log.ErrorContext(ctx, "mcp.audit.failed", slog.String("tool", name), slog.String("error", err.Error()))
		}
	}
	return result
}

// Tools returns the registered tool names in registration order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.names...)
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin and stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
