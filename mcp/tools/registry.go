package tools

import (
	"github.com/oxhq/ols-mcp/mcp/types"
)

// Registrar accepts tools. *mcp.Server satisfies it.
type Registrar interface {
	RegisterTool(tool types.Tool)
}

// RegisterAll registers the built-in tools on server and returns the
// Lightspeed tool for callers that need it directly.
func RegisterAll(server Registrar, forwarder Forwarder, opts ...LightspeedOption) *LightspeedTool {
	tool := NewLightspeedTool(forwarder, opts...)
	server.RegisterTool(tool)
	return tool
}
