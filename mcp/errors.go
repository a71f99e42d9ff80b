package mcp

import (
	"errors"

	"github.com/oxhq/ols-mcp/mcp/types"
)

// JSON-RPC 2.0 error codes
const (
	ParseError     = types.ParseError     // Invalid JSON was received
	InvalidRequest = types.InvalidRequest // Not a valid Request object
	MethodNotFound = types.MethodNotFound // The method does not exist
	InvalidParams  = types.InvalidParams  // Invalid method parameters
	InternalError  = types.InternalError  // Internal JSON-RPC error
)

// Error is the coded error handlers may return.
type Error = types.Error

// errorResponseFor converts a handler error into a response, keeping the
// code of a *types.Error.
func errorResponseFor(id any, err error) ResponseMessage {
	var coded *types.Error
	if errors.As(err, &coded) {
		return ErrorResponse(id, coded.Code, coded.Message, coded.Data)
	}
	return ErrorResponse(id, InternalError, err.Error())
}
