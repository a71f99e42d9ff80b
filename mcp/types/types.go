// Package types holds the contracts shared by the MCP server and its tools,
// kept separate so tools do not import the server package.
package types

import (
	"context"
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// ToolHandler executes a tool call with its raw JSON arguments.
type ToolHandler func(ctx context.Context, params json.RawMessage) (any, error)

// Component is anything registered by name.
type Component interface {
	Name() string
	Description() string
}

// Tool is an executable tool.
type Tool interface {
	Component
	Handler() ToolHandler
	InputSchema() map[string]any
}

// Notifier pushes MCP log messages to the connected client when the
// transport allows it.
type Notifier interface {
	LogMessage(ctx context.Context, level string, data map[string]any)
}

// Content is one block of a tool result. Only text blocks are produced.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the tools/call result payload. Meta carries values a
// client may need for follow-up calls without changing the text.
type CallToolResult struct {
	Content []Content      `json:"content"`
	IsError bool           `json:"isError"`
	Meta    map[string]any `json:"_meta,omitempty"`
}

// TextResult wraps text as a single-block tool result.
func TextResult(text string) CallToolResult {
	return CallToolResult{
		Content: []Content{{Type: "text", Text: text}},
	}
}

// Error is a JSON-RPC error a handler wants reported with a specific code.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("%s (%d): %v", e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// NewError creates an Error with optional data
func NewError(code int, message string, data ...any) *Error {
	err := &Error{Code: code, Message: message}
	if len(data) > 0 {
		err.Data = data[0]
	}
	return err
}

// WrapError attaches err's text as the data of a coded Error
func WrapError(code int, message string, err error) *Error {
	if err == nil {
		return NewError(code, message)
	}
	return NewError(code, message, err.Error())
}
