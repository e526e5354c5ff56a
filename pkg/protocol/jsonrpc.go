package protocol

import (
	"encoding/json"
	"fmt"
)

/**
MCP session over stdio, as served by pkg/server:
	-> initialize                   <- protocolVersion, capabilities {"tools":{}}, serverInfo
	-> notifications/initialized    (no reply)
	-> tools/list                   <- train_model, predict_match, upcoming_predictions, league_table
	-> tools/call {name, arguments} <- {"content":[{"type":"text","text":...}]}
A failing tool replies with an error object carrying ErrToolExecutionFailed.
*/

type MethodType string

const (
	MethodInitialize  MethodType = "initialize"
	MethodInitialized MethodType = "initialized"
	MethodPing        MethodType = "ping"
	MethodToolsList   MethodType = "tools/list"
	MethodToolsCall   MethodType = "tools/call"
	MethodShutdown    MethodType = "shutdown"
)

const JsonRpcVersion = "2.0"

// DefaultProtocolVersion is used when the client does not ask for one
const DefaultProtocolVersion = "2024-11-05"

// JsonRpcRequest is a request or, without an ID, a notification
type JsonRpcRequest struct {
	JsonRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// JsonRpcResponse carries either Result or Error, never both
type JsonRpcResponse struct {
	JsonRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JsonRpcError   `json:"error,omitempty"`
	ID      any             `json:"id"`
}

type JsonRpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *JsonRpcError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

const (
	ErrParse          = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603

	// ErrToolExecutionFailed is in the implementation defined range -32000 to -32099
	ErrToolExecutionFailed = -32000
)

type ToolProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type InputSchema struct {
	Type                 string                  `json:"type"`
	Properties           map[string]ToolProperty `json:"properties,omitempty"`
	Required             []string                `json:"required"`
	AdditionalProperties bool                    `json:"additionalProperties"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type ToolsResponse struct {
	Tools []Tool `json:"tools"`
}

type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the body of a tools/call reply
type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// TextResult wraps text as a single content block
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: []ToolContent{{Type: "text", Text: text}}}
}

// NewJsonRpcResponse marshals result into a success reply
func NewJsonRpcResponse(result any, id any) (*JsonRpcResponse, error) {
	resp := &JsonRpcResponse{JsonRPC: JsonRpcVersion, ID: id}
	if result == nil {
		return resp, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	resp.Result = raw
	return resp, nil
}

func NewJsonRpcErrorResponse(code int, message string, data any, id any) *JsonRpcResponse {
	return &JsonRpcResponse{
		JsonRPC: JsonRpcVersion,
		Error:   &JsonRpcError{Code: code, Message: message, Data: data},
		ID:      id,
	}
}

func ParseJsonRpcRequest(data []byte) (*JsonRpcRequest, error) {
	var req JsonRpcRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if req.JsonRPC != JsonRpcVersion {
		return nil, fmt.Errorf("unsupported jsonrpc version %q", req.JsonRPC)
	}
	return &req, nil
}

func ParseJsonRpcResponse(data []byte) (*JsonRpcResponse, error) {
	var resp JsonRpcResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	if resp.JsonRPC != JsonRpcVersion {
		return nil, fmt.Errorf("unsupported jsonrpc version %q", resp.JsonRPC)
	}
	return &resp, nil
}

// IsNotification reports whether the request expects no reply
func (r *JsonRpcRequest) IsNotification() bool {
	return r.ID == nil
}
