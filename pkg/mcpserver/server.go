// Package mcpserver is a small Model Context Protocol server. It speaks
// JSON-RPC 2.0 over stdio or HTTP and dispatches tools/call to registered
// tools.
package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const protocolVersion = "2024-11-05"

// Server holds registered tools and client sessions.
type Server struct {
	name    string
	version string

	tools      map[string]Tool
	middleware []Middleware

	mu       sync.RWMutex
	sessions map[string]time.Time

	logger *slog.Logger
}

// New creates a server that reports name and version on initialize.
func New(name, version string) *Server {
	return &Server{
		name:     name,
		version:  version,
		tools:    make(map[string]Tool),
		sessions: make(map[string]time.Time),
		logger:   slog.Default().With("component", "mcp"),
	}
}

// Register adds tools, replacing any with the same name.
func (s *Server) Register(tools ...Tool) {
	for _, t := range tools {
		s.tools[t.Name] = t
	}
}

// Use appends middleware. The first added runs outermost.
func (s *Server) Use(mw ...Middleware) {
	s.middleware = append(s.middleware, mw...)
}

// Tools returns the tool definitions sorted by name.
func (s *Server) Tools() []ToolDef {
	out := make([]ToolDef, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, ToolDef{Name: t.Name, Description: t.Description, InputSchema: t.Schema})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ServeStdio reads newline-delimited requests from r and writes responses
// to w until r is exhausted or ctx is done.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	s.logger.Info("serving mcp on stdio", "name", s.name, "tools", len(s.tools))
	dec := json.NewDecoder(bufio.NewReader(r))
	enc := json.NewEncoder(w)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var req Request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				if err := enc.Encode(errorResponse(nil, CodeParseError, "Parse error")); err != nil {
					return fmt.Errorf("encode response: %w", err)
				}
				return fmt.Errorf("decode request: %w", err)
			}
			return fmt.Errorf("decode request: %w", err)
		}

		resp := s.Handle(ctx, &req)
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
	}
}

// Handle runs req through the middleware chain. It returns nil for
// notifications.
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	h := s.dispatch
	for i := len(s.middleware) - 1; i >= 0; i-- {
		h = s.middleware[i](h)
	}
	resp := h(ctx, req)
	if req.IsNotification() {
		return nil
	}
	return resp
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, CodeInvalidRequest, "jsonrpc must be \"2.0\"")
	}
	resp := &Response{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = &InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: s.name, Version: s.version},
		}
	case "notifications/initialized", "ping":
		resp.Result = struct{}{}
	case "tools/list":
		resp.Result = &ToolsListResult{Tools: s.Tools()}
	case "tools/call":
		var p toolCallParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errorResponse(req.ID, CodeInvalidParams, "invalid tools/call params")
		}
		resp.Result = s.call(ctx, p)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, "Method not found: "+req.Method)
	}
	return resp
}

func (s *Server) call(ctx context.Context, p toolCallParams) *ToolCallResult {
	tool, ok := s.tools[p.Name]
	if !ok {
		return ErrorResult(fmt.Errorf("tool not found: %s", p.Name))
	}
	res, err := tool.Handler(ctx, Args(p.Arguments))
	if err != nil {
		return ErrorResult(err)
	}
	return res
}

// NewSession records and returns a new session ID.
func (s *Server) NewSession() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = time.Now()
	s.mu.Unlock()
	return id
}

// CheckSession reports whether id was issued by NewSession.
func (s *Server) CheckSession(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}
