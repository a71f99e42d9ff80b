package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/ols-mcp/mcp/types"
)

func TestRouter_DispatchRequest(t *testing.T) {
	r := NewRouter()
	r.RegisterRequest("echo", func(ctx context.Context, msg RequestMessage) ResponseMessage {
		// Leave JSONRPC and ID empty; the router fills them in.
		return ResponseMessage{Result: string(msg.Params)}
	})

	resp := r.DispatchRequest(context.Background(), RequestMessage{
		JSONRPC: JSONRPCVersion,
		ID:      "1",
		Method:  "echo",
		Params:  []byte(`{"a":1}`),
	})
	assert.Equal(t, JSONRPCVersion, resp.JSONRPC)
	assert.Equal(t, "1", resp.ID)
	assert.Equal(t, `{"a":1}`, resp.Result)

	resp = r.DispatchRequest(context.Background(), RequestMessage{JSONRPC: JSONRPCVersion, ID: 2, Method: "missing"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)
	assert.Equal(t, "Method not found: missing", resp.Error.Message)

	resp = r.DispatchRequest(context.Background(), RequestMessage{JSONRPC: "1.0", ID: 3, Method: "echo"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidRequest, resp.Error.Code)
}

func TestRouter_DispatchNotification(t *testing.T) {
	r := NewRouter()
	called := false
	r.RegisterNotification("notifications/x", func(ctx context.Context, msg NotificationMessage) error {
		called = true
		return nil
	})

	require.NoError(t, r.DispatchNotification(context.Background(), NotificationMessage{JSONRPC: JSONRPCVersion, Method: "notifications/x"}))
	assert.True(t, called)

	assert.Error(t, r.DispatchNotification(context.Background(), NotificationMessage{JSONRPC: JSONRPCVersion, Method: "notifications/y"}))
}

func TestErrorResponseFor(t *testing.T) {
	resp := errorResponseFor(1, types.NewError(InvalidParams, "bad args", "detail"))
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
	assert.Equal(t, "bad args", resp.Error.Message)
	assert.Equal(t, "detail", resp.Error.Data)

	resp = errorResponseFor(1, errors.New("kaboom"))
	require.NotNil(t, resp.Error)
	assert.Equal(t, InternalError, resp.Error.Code)
	assert.Equal(t, "kaboom", resp.Error.Message)
}

func TestToolRegistry(t *testing.T) {
	reg := NewToolRegistry()
	reg.Add(stubTool{name: "b"})
	reg.Add(stubTool{name: "a"})
	reg.Add(stubTool{name: "b", description: "replaced"})

	assert.Equal(t, []string{"b", "a"}, reg.Names())

	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "b", defs[0].Name)
	assert.Equal(t, "replaced", defs[0].Description)

	_, ok := reg.Get("a")
	assert.True(t, ok)
	_, ok = reg.Get("c")
	assert.False(t, ok)
}
