package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/oxhq/ols-mcp/mcp/types"
	"github.com/oxhq/ols-mcp/pkg/logger"
)

// InitializeHook observes the client info sent with initialize.
type InitializeHook func(ctx context.Context, clientInfo map[string]any)

// Server is the transport independent MCP core. ServeStdio attaches it to a
// byte stream; HTTPServer calls HandleMessage per POST.
type Server struct {
	config  Config
	router  *Router
	tools   *ToolRegistry
	session *SessionState
	log     *slog.Logger

	onInitialize InitializeHook

	writeMu sync.Mutex
	out     io.Writer
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithInitializeHook registers a callback run after each initialize.
func WithInitializeHook(hook InitializeHook) Option {
	return func(s *Server) {
		s.onInitialize = hook
	}
}

// NewServer creates a server with the built-in MCP methods registered and no
// tools.
func NewServer(config Config, opts ...Option) *Server {
	if config.Name == "" {
		config.Name = ServerName
	}
	if config.Version == "" {
		config.Version = ServerVersion
	}

	s := &Server{
		config:  config,
		router:  NewRouter(),
		tools:   NewToolRegistry(),
		session: NewSessionState(),
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerHandlers()
	return s
}

// RegisterTool adds a tool; a tool with the same name is replaced.
func (s *Server) RegisterTool(tool types.Tool) {
	s.tools.Add(tool)
	s.log.Debug("tool registered", "tool", tool.Name())
}

// Tools returns the tool registry
func (s *Server) Tools() *ToolRegistry {
	return s.tools
}

// Session returns the stdio session state
func (s *Server) Session() *SessionState {
	return s.session
}

// HandleMessage processes one JSON-RPC frame. The bool is false when nothing
// must be sent back (notifications and client responses).
func (s *Server) HandleMessage(ctx context.Context, data []byte) (ResponseMessage, bool) {
	if s.config.Debug {
		s.log.Debug("received frame", "frame", truncate(string(data), 512))
	}

	env, perr := decodeEnvelope(data)
	if perr != nil {
		return ErrorResponse(nil, perr.Code, perr.Message), true
	}

	if env.isResponse() {
		s.log.Debug("ignoring client response", "id", string(env.ID))
		return ResponseMessage{}, false
	}

	if env.isNotification() {
		if env.Method == "" {
			return ErrorResponse(nil, InvalidRequest, "missing method"), true
		}
		if err := s.router.DispatchNotification(ctx, env.notification()); err != nil {
			s.log.Debug("notification not handled", "method", env.Method, "error", err)
		}
		return ResponseMessage{}, false
	}

	req, err := env.request()
	if err != nil {
		return ErrorResponse(nil, InvalidRequest, err.Error()), true
	}
	if req.Method == "" {
		return ErrorResponse(req.ID, InvalidRequest, "missing method"), true
	}

	ctx = logger.ToContext(ctx, s.requestLogger(ctx).With("rpc_id", req.ID))
	return s.router.DispatchRequest(ctx, req), true
}

// requestLogger prefers a logger the transport stored in ctx.
func (s *Server) requestLogger(ctx context.Context) *slog.Logger {
	if log, ok := logger.Lookup(ctx); ok {
		return log
	}
	return s.log
}

// ServeStdio reads newline-delimited frames from in and writes replies and
// notifications to out until EOF or ctx is done. Requests are handled
// concurrently; in-flight calls finish before it returns.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.attach(out)
	defer s.attach(nil)

	var wg sync.WaitGroup
	defer wg.Wait()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go readFrames(ctx, bufio.NewReader(in), lines, readErr)

	s.log.Info("MCP server listening on stdio")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stdio server stopping", "reason", ctx.Err())
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				s.log.Info("EOF received, shutting down")
				return nil
			}
			return fmt.Errorf("read stdin: %w", err)
		case line := <-lines:
			wg.Add(1)
			go func() {
				defer wg.Done()
				if resp, ok := s.HandleMessage(ctx, line); ok {
					s.writeFrame(resp)
				}
			}()
		}
	}
}

func readFrames(ctx context.Context, r *bufio.Reader, lines chan<- []byte, errs chan<- error) {
	for {
		line, err := r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errs <- err
			return
		}
	}
}

func (s *Server) attach(out io.Writer) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.out = out
}

// writeFrame marshals v and writes it as one line. It reports false when no
// stream is attached or the write failed.
func (s *Server) writeFrame(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("failed to marshal frame", "error", err)
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.out == nil {
		return false
	}
	if s.config.Debug {
		s.log.Debug("sending frame", "frame", truncate(string(data), 512))
	}
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		s.log.Error("failed to write frame", "error", err)
		return false
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
