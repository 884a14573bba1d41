// Package mcp speaks JSON-RPC 2.0 over stdio: one request per line in, one
// response per line out. Logs go to stderr so stdout stays protocol-clean.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/InnerAnimal/meaux-infra/internal/tool"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601

	protocolVersion = "2024-11-05"

	// Long lines happen: worker scripts and row payloads ride inside tool
	// arguments.
	maxLineBytes = 4 * 1024 * 1024
)

// Server dispatches JSON-RPC requests to the tool registry.
type Server struct {
	registry *tool.Registry
	logger   *slog.Logger
	name     string
	version  string
}

// NewServer builds a stdio server over a populated registry.
func NewServer(registry *tool.Registry, logger *slog.Logger, name, version string) *Server {
	return &Server{
		registry: registry,
		logger:   logger,
		name:     name,
		version:  version,
	}
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Auth      struct {
		Secret string `json:"secret"`
	} `json:"auth"`
}

// toolInfo is the listing form of a descriptor.
type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Mutating    bool   `json:"mutating"`
}

// Serve reads requests from r until EOF or ctx cancellation, writing one
// response per request to w.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	encoder := json.NewEncoder(w)

	s.logger.Info("stdio server started", "name", s.name, "version", s.version)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := s.dispatch(ctx, line)
		if resp == nil {
			continue
		}
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	s.logger.Info("stdio server stopped")
	return nil
}

func (s *Server) dispatch(ctx context.Context, line []byte) *response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Warn("unparseable request", "error", err)
		return errorResponse(nil, codeParseError, "parse error")
	}
	if req.Method == "" {
		return errorResponse(req.ID, codeInvalidRequest, "method is required")
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Notification, no response.
		return nil
	case "ping":
		return &response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{}}
	case "tools/list":
		return s.handleList(req)
	case "tools/call":
		return s.handleCall(ctx, req)
	default:
		s.logger.Warn("unknown method", "method", req.Method)
		return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) handleInitialize(req request) *response {
	return &response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]string{
				"name":    s.name,
				"version": s.version,
			},
		},
	}
}

func (s *Server) handleList(req request) *response {
	descriptors := s.registry.List()
	infos := make([]toolInfo, 0, len(descriptors))
	for _, d := range descriptors {
		infos = append(infos, toolInfo{
			Name:        d.Name,
			Description: d.Description,
			Mutating:    d.Mutating,
		})
	}
	return &response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  map[string]any{"tools": infos},
	}
}

func (s *Server) handleCall(ctx context.Context, req request) *response {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidRequest, "invalid tools/call params")
	}
	if params.Name == "" {
		return errorResponse(req.ID, codeInvalidRequest, "tool name is required")
	}
	s.logger.Info("tool call", "tool", params.Name)
	result := s.registry.Invoke(ctx, params.Name, params.Arguments, params.Auth.Secret)
	return &response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) *response {
	return &response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	}
}
