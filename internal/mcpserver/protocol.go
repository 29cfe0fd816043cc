// Package mcpserver implements the line-delimited JSON-RPC 2.0 tool server
// (§6): initialize/tools/resources methods over stdio, http, or sse, backed
// by the in-memory graph, the relevance pipeline, and the impact analyser.
package mcpserver

import (
	"encoding/json"
	"errors"

	"github.com/ummon-dev/ummon/internal/entity"
)

// rpcRequest is one line of the line-delimited JSON-RPC 2.0 wire protocol.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcResponse mirrors rpcRequest; Result and Error are mutually exclusive.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func errorResponse(id json.RawMessage, code int, message string) *rpcResponse {
	return &rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}}
}

func resultResponse(id json.RawMessage, result interface{}) *rpcResponse {
	return &rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

// Content is one piece of tool output, per spec §6's
// {type:"text"|"json"|"image", ...} shape.
type Content struct {
	Type string      `json:"type"`
	Text string      `json:"text,omitempty"`
	JSON interface{} `json:"json,omitempty"`
}

// TextContent builds a single text Content, the shape every tool in this
// server returns.
func TextContent(text string) Content { return Content{Type: "text", Text: text} }

// ResourceCapabilities gates resources/read and resources/write separately.
type ResourceCapabilities struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
}

// Capabilities is the capability set advertised by initialize.
type Capabilities struct {
	Tools     bool                 `json:"tools"`
	Resources ResourceCapabilities `json:"resources"`
}

// InitializeResult is the response body of the initialize method.
type InitializeResult struct {
	Name         string       `json:"name"`
	Instructions string       `json:"instructions"`
	Capabilities Capabilities `json:"capabilities"`
}

// ToolSchema describes one callable tool for tools/list.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolsListResult is the response body of tools/list.
type ToolsListResult struct {
	Tools []ToolSchema `json:"tools"`
}

// ToolCallParams is the parameter shape of tools/call.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallResult is the response body of tools/call.
type ToolCallResult struct {
	Content []Content `json:"content"`
}

// ResourceInfo describes one resource for resources/list.
type ResourceInfo struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Writable    bool   `json:"writable"`
}

// ResourcesListResult is the response body of resources/list.
type ResourcesListResult struct {
	Resources []ResourceInfo `json:"resources"`
}

// ResourceReadParams is the parameter shape of resources/read.
type ResourceReadParams struct {
	URI string `json:"uri"`
}

// ResourceReadResult is the response body of resources/read.
type ResourceReadResult struct {
	Content string `json:"content"`
}

// ResourceWriteParams is the parameter shape of resources/write.
type ResourceWriteParams struct {
	URI     string `json:"uri"`
	Content string `json:"content"`
}

// toolErrorToRPC maps a tool handler's error to a JSON-RPC error code,
// following the Tool::InvalidParams / Tool::NotFound split in spec §7.
func toolErrorToRPC(err error) (int, string) {
	var te *entity.ToolError
	if errors.As(err, &te) {
		return te.Code, te.Message
	}
	return entity.RPCInternalError, err.Error()
}
