package mcp

import (
	"context"
	"encoding/json"
	"time"
)

// LogLevel is an MCP (syslog style) log severity.
type LogLevel string

const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

var logLevelRank = map[LogLevel]int{
	LogLevelDebug:     0,
	LogLevelInfo:      1,
	LogLevelNotice:    2,
	LogLevelWarning:   3,
	LogLevelError:     4,
	LogLevelCritical:  5,
	LogLevelAlert:     6,
	LogLevelEmergency: 7,
}

// Valid reports whether l is a known level
func (l LogLevel) Valid() bool {
	_, ok := logLevelRank[l]
	return ok
}

func shouldEmitLog(min LogLevel, level LogLevel) bool {
	minRank, ok := logLevelRank[min]
	if !ok {
		minRank = logLevelRank[LogLevelInfo]
	}
	levelRank, ok := logLevelRank[level]
	if !ok {
		levelRank = logLevelRank[LogLevelInfo]
	}
	return levelRank >= minRank
}

// handleSetLoggingLevel handles logging/setLevel
func (s *Server) handleSetLoggingLevel(ctx context.Context, req RequestMessage) ResponseMessage {
	var params struct {
		Level LogLevel `json:"level"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, InvalidParams, "Invalid logging level parameters")
	}
	if !params.Level.Valid() {
		return ErrorResponse(req.ID, InvalidParams, "Unknown logging level: "+string(params.Level))
	}

	s.sessionFor(ctx).SetLoggingLevel(params.Level)
	s.log.Debug("client logging level set", "level", params.Level)

	return SuccessResponse(req.ID, map[string]any{})
}

// LogMessage pushes a notifications/message frame to the client if the
// transport can and the level passes the client's threshold.
func (s *Server) LogMessage(ctx context.Context, level string, data map[string]any) {
	lvl := LogLevel(level)
	if !shouldEmitLog(s.sessionFor(ctx).LoggingLevel(), lvl) {
		return
	}

	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	s.notify("notifications/message", map[string]any{
		"level":  lvl,
		"logger": s.config.Name,
		"data":   payload,
	})
}

// notify writes a notification frame. Without an attached writer (HTTP
// mode) the notification is dropped.
func (s *Server) notify(method string, params any) {
	raw, err := json.Marshal(params)
	if err != nil {
		s.log.Warn("failed to marshal notification", "method", method, "error", err)
		return
	}
	msg := NotificationMessage{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  raw,
	}
	if !s.writeFrame(msg) {
		s.log.Debug("notification dropped, no stream attached", "method", method)
	}
}
