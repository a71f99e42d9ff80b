package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oxhq/ols-mcp/pkg/logger"
)

const (
	// SessionHeader carries the streamable HTTP session id.
	SessionHeader = "Mcp-Session-Id"

	maxRequestBytes = 4 << 20
	shutdownTimeout = 30 * time.Second
)

// HTTPServer exposes a Server over the MCP streamable HTTP transport in its
// plain JSON response mode.
type HTTPServer struct {
	core   *Server
	addr   string
	log    *slog.Logger
	server *http.Server

	onClose SessionHook

	mu       sync.RWMutex
	sessions map[string]*httpSession
}

type httpSession struct {
	state    *SessionState
	lastSeen time.Time
}

// SessionHook observes the lifecycle of a streamable HTTP session.
type SessionHook func(ctx context.Context, sessionID string)

// HTTPOption customizes an HTTPServer.
type HTTPOption func(*HTTPServer)

// WithSessionClosed registers a callback run when a client ends its session.
func WithSessionClosed(hook SessionHook) HTTPOption {
	return func(h *HTTPServer) {
		h.onClose = hook
	}
}

// NewHTTPServer wraps core for serving on addr
func NewHTTPServer(core *Server, addr string, opts ...HTTPOption) *HTTPServer {
	h := &HTTPServer{
		core:     core,
		addr:     addr,
		log:      core.log.With("transport", "streamable-http"),
		sessions: make(map[string]*httpSession),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.server = &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return h
}

// Handler returns the HTTP routes.
func (h *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Post("/mcp", h.handlePost)
	r.Get("/mcp", h.handleGet)
	r.Delete("/mcp", h.handleDelete)
	r.Get("/healthz", h.handleHealth)

	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (h *HTTPServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", h.addr, err)
	}
	return h.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (h *HTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h.log.Info("MCP server listening", "addr", ln.Addr().String(), "path", "/mcp")
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		h.log.Info("HTTP server stopped")
		return nil
	})

	return g.Wait()
}

// SessionCount returns the number of open sessions
func (h *HTTPServer) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *HTTPServer) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse(nil, ParseError, "failed to read request body"))
		return
	}
	if len(body) > maxRequestBytes {
		h.writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse(nil, InvalidRequest, "request body too large"))
		return
	}

	env, perr := decodeEnvelope(body)
	if perr != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse(nil, perr.Code, perr.Message))
		return
	}

	sessionID := r.Header.Get(SessionHeader)
	isInitialize := env.Method == "initialize"

	var state *SessionState
	if isInitialize {
		// The id is only handed out once initialize succeeds.
		sessionID = uuid.NewString()
		state = NewSessionState()
	} else {
		if sessionID == "" {
			h.writeJSON(w, http.StatusBadRequest, ErrorResponse(nil, InvalidRequest, "missing "+SessionHeader+" header"))
			return
		}
		var known bool
		if state, known = h.touchSession(sessionID); !known {
			h.writeJSON(w, http.StatusNotFound, ErrorResponse(nil, InvalidRequest, "unknown session"))
			return
		}
	}

	resp, ok := h.core.HandleMessage(withSession(r.Context(), sessionID, state), body)
	if !ok {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if isInitialize && resp.Error == nil {
		h.openSession(sessionID, state)
		w.Header().Set(SessionHeader, sessionID)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// handleGet refuses the optional server-to-client SSE stream.
func (h *HTTPServer) handleGet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "POST, DELETE")
	http.Error(w, "server-initiated streams are not supported", http.StatusMethodNotAllowed)
}

func (h *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		http.Error(w, "missing "+SessionHeader+" header", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	_, ok := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()

	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	h.log.Info("session closed", "session", sessionID)
	if h.onClose != nil {
		h.onClose(r.Context(), sessionID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"name":     h.core.config.Name,
		"version":  h.core.config.Version,
		"sessions": h.SessionCount(),
	})
}

func (h *HTTPServer) openSession(id string, state *SessionState) {
	h.mu.Lock()
	h.sessions[id] = &httpSession{state: state, lastSeen: time.Now()}
	h.mu.Unlock()

	client, _ := state.Client()
	h.log.Info("session opened",
		"session", id,
		"client", client,
		"protocol", state.ProtocolVersion())
}

func (h *HTTPServer) touchSession(id string) (*SessionState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sess, ok := h.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastSeen = time.Now()
	return sess.state, true
}

// Session returns the negotiated state of an open session.
func (h *HTTPServer) Session(id string) (*SessionState, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sess, ok := h.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.state, true
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("failed to encode response", "error", err)
	}
}

func (h *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		_, ctx := logger.With(logger.ToContext(r.Context(), h.log), "request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(ctx))
		h.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
