package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

func (s *Server) registerHandlers() {
	s.router.RegisterRequest("initialize", s.handleInitialize)
	s.router.RegisterRequest("ping", s.handlePing)
	s.router.RegisterRequest("tools/list", s.handleListTools)
	s.router.RegisterRequest("tools/call", s.handleCallTool)
	s.router.RegisterRequest("logging/setLevel", s.handleSetLoggingLevel)
	s.router.RegisterRequest("prompts/list", func(ctx context.Context, req RequestMessage) ResponseMessage {
		return SuccessResponse(req.ID, map[string]any{"prompts": []any{}})
	})
	s.router.RegisterRequest("resources/list", func(ctx context.Context, req RequestMessage) ResponseMessage {
		return SuccessResponse(req.ID, map[string]any{"resources": []any{}})
	})

	s.router.RegisterNotification("notifications/initialized", s.handleInitialized)
	s.router.RegisterNotification("notifications/cancelled", s.handleCancelled)
}

// handleInitialize answers the MCP handshake. Malformed params are tolerated.
func (s *Server) handleInitialize(ctx context.Context, req RequestMessage) ResponseMessage {
	var params struct {
		ProtocolVersion string         `json:"protocolVersion"`
		Capabilities    map[string]any `json:"capabilities"`
		ClientInfo      map[string]any `json:"clientInfo"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.log.Warn("invalid initialize params", "error", err)
		}
	}

	version := negotiateProtocolVersion(params.ProtocolVersion)
	clientName, _ := params.ClientInfo["name"].(string)
	clientVersion, _ := params.ClientInfo["version"].(string)
	s.sessionFor(ctx).MarkInitialized(version, clientName, clientVersion)

	s.log.Info("client initialized",
		"client", clientName,
		"client_version", clientVersion,
		"protocol", version)

	if s.onInitialize != nil && params.ClientInfo != nil {
		s.onInitialize(ctx, params.ClientInfo)
	}

	result := map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{
				"listChanged": false,
			},
			"logging": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.config.Name,
			"version": s.config.Version,
		},
	}
	if s.config.Instructions != "" {
		result["instructions"] = s.config.Instructions
	}
	return SuccessResponse(req.ID, result)
}

func (s *Server) handleInitialized(ctx context.Context, msg NotificationMessage) error {
	s.sessionFor(ctx).MarkReady()
	s.log.Debug("initialization complete")
	return nil
}

// handleCancelled only logs: a tool call is bounded by its own timeout.
func (s *Server) handleCancelled(ctx context.Context, msg NotificationMessage) error {
	var params struct {
		RequestID any    `json:"requestId"`
		Reason    string `json:"reason"`
	}
	_ = json.Unmarshal(msg.Params, &params)
	s.log.Debug("client cancelled request", "request_id", params.RequestID, "reason", params.Reason)
	return nil
}

// handlePing responds to keepalive pings
func (s *Server) handlePing(ctx context.Context, req RequestMessage) ResponseMessage {
	return SuccessResponse(req.ID, map[string]any{})
}

// handleListTools returns the registered tools
func (s *Server) handleListTools(ctx context.Context, req RequestMessage) ResponseMessage {
	return SuccessResponse(req.ID, map[string]any{
		"tools": s.tools.Definitions(),
	})
}

// handleCallTool executes a registered tool
func (s *Server) handleCallTool(ctx context.Context, req RequestMessage) ResponseMessage {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, InvalidParams, "Invalid params structure")
	}

	tool, ok := s.tools.Get(params.Name)
	if !ok {
		return ErrorResponse(req.ID, InvalidParams, fmt.Sprintf("Unknown tool: %s", params.Name))
	}

	s.log.Debug("calling tool", "tool", params.Name)

	result, err := tool.Handler()(ctx, params.Arguments)
	if err != nil {
		s.log.Warn("tool call failed", "tool", params.Name, "error", err)
		return errorResponseFor(req.ID, err)
	}
	return SuccessResponse(req.ID, result)
}
