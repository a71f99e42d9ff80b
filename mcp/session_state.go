package mcp

import (
	"context"
	"sync"
)

// SessionState holds what the client negotiated on this connection. Stdio
// uses the server's own state; each streamable HTTP session has its own.
type SessionState struct {
	mu              sync.RWMutex
	initialized     bool
	ready           bool
	protocolVersion string
	clientName      string
	clientVersion   string
	loggingLevel    LogLevel
}

// NewSessionState returns a fresh state logging at info.
func NewSessionState() *SessionState {
	return &SessionState{
		loggingLevel: LogLevelInfo,
	}
}

// MarkInitialized records the negotiated version and client identity.
func (s *SessionState) MarkInitialized(protocolVersion, clientName, clientVersion string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.ready = false
	s.protocolVersion = protocolVersion
	s.clientName = clientName
	s.clientVersion = clientVersion
}

// MarkReady records the client's notifications/initialized.
func (s *SessionState) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
}

// Initialized reports whether initialize has been answered
func (s *SessionState) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Ready reports whether the client confirmed initialization
func (s *SessionState) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// ProtocolVersion returns the negotiated protocol version
func (s *SessionState) ProtocolVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocolVersion
}

// Client returns the client name and version from initialize
func (s *SessionState) Client() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientName, s.clientVersion
}

// LoggingLevel returns the minimum level pushed to the client
func (s *SessionState) LoggingLevel() LogLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggingLevel
}

// SetLoggingLevel changes the minimum level pushed to the client
func (s *SessionState) SetLoggingLevel(level LogLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggingLevel = level
}

type sessionKey struct{}

type sessionContext struct {
	id    string
	state *SessionState
}

// withSession binds a transport session to ctx.
func withSession(ctx context.Context, id string, state *SessionState) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionContext{id: id, state: state})
}

// SessionIDFromContext returns the transport session id of the request
// being handled. Stdio requests carry none.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	sc, ok := ctx.Value(sessionKey{}).(sessionContext)
	if !ok || sc.id == "" {
		return "", false
	}
	return sc.id, true
}

// sessionFor returns the state bound to ctx, falling back to the server's.
func (s *Server) sessionFor(ctx context.Context) *SessionState {
	if sc, ok := ctx.Value(sessionKey{}).(sessionContext); ok && sc.state != nil {
		return sc.state
	}
	return s.session
}
