package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the only protocol version accepted on the wire.
const JSONRPCVersion = "2.0"

// RequestMessage is a JSON-RPC 2.0 request that expects a response.
type RequestMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NotificationMessage is a JSON-RPC 2.0 notification; it has no ID and gets
// no response.
type NotificationMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ResponseMessage answers a RequestMessage.
type ResponseMessage struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      any          `json:"id"`
	Result  any          `json:"result,omitempty"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// ErrorObject is the JSON-RPC error payload.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// envelope is decoded first to tell requests from notifications.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

// isNotification reports whether the message carries no usable ID.
func (e envelope) isNotification() bool {
	return len(e.ID) == 0 || bytes.Equal(e.ID, []byte("null"))
}

// isResponse reports whether the client sent a response rather than a call.
func (e envelope) isResponse() bool {
	return e.Method == "" && (len(e.Result) > 0 || len(e.Error) > 0)
}

func (e envelope) request() (RequestMessage, error) {
	var id any
	if err := json.Unmarshal(e.ID, &id); err != nil {
		return RequestMessage{}, fmt.Errorf("invalid id: %w", err)
	}
	switch id.(type) {
	case string, float64:
	default:
		return RequestMessage{}, fmt.Errorf("id must be a string or number")
	}
	return RequestMessage{
		JSONRPC: e.JSONRPC,
		ID:      id,
		Method:  e.Method,
		Params:  e.Params,
	}, nil
}

func (e envelope) notification() NotificationMessage {
	return NotificationMessage{
		JSONRPC: e.JSONRPC,
		Method:  e.Method,
		Params:  e.Params,
	}
}

// decodeEnvelope parses one frame. Batches are rejected.
func decodeEnvelope(data []byte) (envelope, *ErrorObject) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return envelope{}, &ErrorObject{Code: InvalidRequest, Message: "batch requests are not supported"}
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		msg := fmt.Sprintf("JSON decode error: %v", err)
		if syntaxErr, ok := err.(*json.SyntaxError); ok {
			msg = fmt.Sprintf("JSON syntax error at position %d: %v", syntaxErr.Offset, err)
		}
		return envelope{}, &ErrorObject{Code: ParseError, Message: msg}
	}
	return env, nil
}

// SuccessResponse builds a success response with the provided result.
func SuccessResponse(id, result any) ResponseMessage {
	return ResponseMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// ErrorResponse builds an error response; data is optional.
func ErrorResponse(id any, code int, message string, data ...any) ResponseMessage {
	var extra any
	if len(data) > 0 {
		extra = data[0]
	}
	return ResponseMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
			Data:    extra,
		},
	}
}

// ensureVersion validates the jsonrpc member.
func ensureVersion(v string) error {
	if v == JSONRPCVersion {
		return nil
	}
	if v == "" {
		return fmt.Errorf("missing jsonrpc version")
	}
	return fmt.Errorf("unsupported jsonrpc version: %s", v)
}
