package lightspeed

import (
	"errors"
	"fmt"
)

// Kind classifies a forwarding failure.
type Kind int

const (
	KindOther Kind = iota
	KindHTTPStatus
	KindTransport
	KindDecode
)

// String returns a stable identifier for the kind
func (k Kind) String() string {
	switch k {
	case KindHTTPStatus:
		return "http_status"
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	default:
		return "other"
	}
}

// Error is the only error type returned by Client.Forward.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Body)
	case KindTransport:
		return fmt.Sprintf("Request error: %v", e.Err)
	case KindDecode:
		return fmt.Sprintf("Unexpected error: decode response: %v", e.Err)
	default:
		return fmt.Sprintf("Unexpected error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind of err, or KindOther when err is not an *Error.
func KindOf(err error) Kind {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	return KindOther
}

// StatusCodeOf returns the HTTP status carried by err, if any.
func StatusCodeOf(err error) int {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.StatusCode
	}
	return 0
}

func httpStatusError(code int, body string) *Error {
	return &Error{Kind: KindHTTPStatus, StatusCode: code, Body: body}
}

func transportError(err error) *Error {
	return &Error{Kind: KindTransport, Err: err}
}

func decodeError(err error) *Error {
	return &Error{Kind: KindDecode, Err: err}
}

func otherError(err error) *Error {
	return &Error{Kind: KindOther, Err: err}
}
