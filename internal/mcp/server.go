package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"mt5-bridge/internal/tools"
)

// Options configures a Server.
type Options struct {
	Name         string
	Version      string
	Instructions string
	Logger       zerolog.Logger
}

// Server answers MCP requests with the tools of a registry. It is
// transport independent; see ServeStdio and NewHTTPHandler.
type Server struct {
	registry     *tools.Registry
	info         Implementation
	instructions string
	log          zerolog.Logger
}

// NewServer creates a server over registry.
func NewServer(registry *tools.Registry, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "mt5-bridge"
	}
	return &Server{
		registry:     registry,
		info:         Implementation{Name: opts.Name, Version: opts.Version},
		instructions: opts.Instructions,
		log:          opts.Logger.With().Str("component", "mcp").Logger(),
	}
}

// HandleMessage decodes one JSON-RPC message and answers it. It returns nil
// for notifications.
func (s *Server) HandleMessage(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return &Response{JSONRPC: "2.0", ID: json.RawMessage("null"), Error: rpcError(CodeParseError, "Parse error: %v", err)}
	}
	return s.Handle(ctx, &req)
}

// Handle answers req. It returns nil for notifications.
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != "2.0" || req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return s.fail(req, rpcError(CodeInvalidRequest, "Invalid request"))
	}

	log := s.log.With().Str("method", req.Method).Logger()
	log.Debug().RawJSON("id", idOrNull(req.ID)).Msg("Request received")

	result, rpcErr := s.dispatch(ctx, req)
	if req.IsNotification() {
		if rpcErr != nil {
			log.Debug().Str("error", rpcErr.Message).Msg("Notification ignored")
		}
		return nil
	}
	if rpcErr != nil {
		log.Debug().Int("code", rpcErr.Code).Str("error", rpcErr.Message).Msg("Request failed")
		return s.fail(req, rpcErr)
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) fail(req *Request, err *RPCError) *Response {
	return &Response{JSONRPC: "2.0", ID: idOrNull(req.ID), Error: err}
}

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

func (s *Server) dispatch(ctx context.Context, req *Request) (interface{}, *RPCError) {
	switch req.Method {
	case "initialize":
		return s.initialize(req.Params)
	case "notifications/initialized", "notifications/cancelled":
		return nil, nil
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return s.listTools(), nil
	case "tools/call":
		return s.callTool(ctx, req.Params)
	default:
		return nil, rpcError(CodeMethodNotFound, "Method not found: %s", req.Method)
	}
}

func (s *Server) initialize(raw json.RawMessage) (interface{}, *RPCError) {
	var params initializeParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, rpcError(CodeInvalidParams, "Invalid initialize params: %v", err)
		}
	}

	version := ProtocolVersion
	if supportedVersions[params.ProtocolVersion] {
		version = params.ProtocolVersion
	}
	s.log.Info().
		Str("client", params.ClientInfo.Name).
		Str("client_version", params.ClientInfo.Version).
		Str("protocol", version).
		Msg("Client initialized")

	return initializeResult{
		ProtocolVersion: version,
		Capabilities:    capabilities{Tools: &toolsCapability{}},
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}, nil
}

func (s *Server) listTools() listToolsResult {
	list := s.registry.List()
	out := listToolsResult{Tools: make([]ToolInfo, len(list))}
	for i, t := range list {
		out.Tools[i] = ToolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
			Annotations: &ToolAnnotation{
				ReadOnlyHint:    t.ReadOnly(),
				DestructiveHint: !t.ReadOnly(),
				OpenWorldHint:   true,
			},
		}
	}
	return out
}

func (s *Server) callTool(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params callToolParams
	if len(raw) == 0 {
		return nil, rpcError(CodeInvalidParams, "Missing tool call params")
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, rpcError(CodeInvalidParams, "Invalid tool call params: %v", err)
	}

	out, err := s.registry.Call(ctx, params.Name, params.Arguments)
	if errors.Is(err, tools.ErrToolNotFound) {
		return nil, rpcError(CodeInvalidParams, "Unknown tool: %s", params.Name)
	}
	if err != nil {
		return &CallToolResult{
			Content: []Content{{Type: "text", Text: fmt.Sprintf("Error: %v", err)}},
			IsError: true,
		}, nil
	}
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: out.Content}},
		IsError: out.IsError,
	}, nil
}
