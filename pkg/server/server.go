package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/richard-senior/matchpredictor/internal/logger"
	"github.com/richard-senior/matchpredictor/pkg/protocol"
	"github.com/richard-senior/matchpredictor/pkg/transport"
)

// Server is an MCP server exposing the predictor as tools
type Server struct {
	transport transport.Transport
	svc       Predictions
	title     string
	handlers  map[string]HandlerFunc
	tools     []protocol.Tool
	mu        sync.Mutex
}

// HandlerFunc handles the arguments of one tool call
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// New creates a server over t with the predictor tools registered
func New(t transport.Transport, svc Predictions, title string) *Server {
	s := &Server{
		transport: t,
		svc:       svc,
		title:     title,
		handlers:  make(map[string]HandlerFunc),
	}
	s.RegisterDefaultTools()
	return s
}

// RegisterTool registers a tool with the server
func (s *Server) RegisterTool(tool protocol.Tool, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, tool)
	s.handlers[tool.Name] = handler
	logger.Debug("Registered tool:", tool.Name)
}

// GetTools returns the list of registered tools
func (s *Server) GetTools() []protocol.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Tool(nil), s.tools...)
}

// RegisterDefaultTools registers the predictor tools
func (s *Server) RegisterDefaultTools() {
	s.RegisterTool(TrainModelTool(), s.handleTrainModel)
	s.RegisterTool(PredictMatchTool(), s.handlePredictMatch)
	s.RegisterTool(UpcomingPredictionsTool(), s.handleUpcomingPredictions)
	s.RegisterTool(LeagueTableTool(), s.handleLeagueTable)
}

// Serve processes requests until the client disconnects or ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	logger.Info("Starting MCP server with", len(s.GetTools()), "tools")

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.ProcessRequests(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("MCP server stopping")
		return nil
	}
}

// ProcessRequests reads and answers requests until EOF
func (s *Server) ProcessRequests(ctx context.Context) error {
	for {
		req, err := s.transport.ReadRequest()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		// nil means no response is required
		resp := s.handleRequest(ctx, req)
		if resp == nil {
			continue
		}
		if err := s.transport.WriteResponse(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req *protocol.JsonRpcRequest) *protocol.JsonRpcResponse {
	logger.Info(">> ", req.Method)

	if req.IsNotification() || strings.HasPrefix(req.Method, "notifications/") || req.Method == string(protocol.MethodInitialized) {
		logger.Debug("Received notification:", req.Method)
		return nil
	}

	var (
		result any
		err    error
	)
	switch protocol.MethodType(req.Method) {
	case protocol.MethodInitialize:
		result = s.handleInitialize(req.Params)
	case protocol.MethodPing, protocol.MethodShutdown:
		result = struct{}{}
	case protocol.MethodToolsList:
		result = protocol.ToolsResponse{Tools: s.GetTools()}
	case protocol.MethodToolsCall:
		result, err = s.handleToolsCall(ctx, req.Params)
	default:
		return protocol.NewJsonRpcErrorResponse(protocol.ErrMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil, req.ID)
	}

	if err != nil {
		var rpcErr *protocol.JsonRpcError
		if errors.As(err, &rpcErr) {
			return protocol.NewJsonRpcErrorResponse(rpcErr.Code, rpcErr.Message, rpcErr.Data, req.ID)
		}
		logger.Warn("Tool call failed", err)
		return protocol.NewJsonRpcErrorResponse(protocol.ErrToolExecutionFailed, err.Error(), nil, req.ID)
	}

	resp, err := protocol.NewJsonRpcResponse(result, req.ID)
	if err != nil {
		return protocol.NewJsonRpcErrorResponse(protocol.ErrInternal, "Failed to marshal result: "+err.Error(), nil, req.ID)
	}
	return resp
}

type initializeResponse struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (s *Server) handleInitialize(params json.RawMessage) initializeResponse {
	version := protocol.DefaultProtocolVersion
	var req struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if len(params) > 0 && json.Unmarshal(params, &req) == nil && req.ProtocolVersion != "" {
		version = req.ProtocolVersion
	}
	logger.Info("Initializing with protocol version", version)

	return initializeResponse{
		ProtocolVersion: version,
		Capabilities: map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		ServerInfo: serverInfo{Name: "matchpredictor", Version: "1.0.0"},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, error) {
	var call struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: "invalid tools/call parameters: " + err.Error()}
	}

	s.mu.Lock()
	handler := s.handlers[call.Name]
	s.mu.Unlock()
	if handler == nil {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrMethodNotFound, Message: "tool not found: " + call.Name}
	}

	logger.Info("Tool call requested for:", call.Name)
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}
	return handler(ctx, call.Arguments)
}
