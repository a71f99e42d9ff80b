package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/oxhq/ols-mcp/db"
	"github.com/oxhq/ols-mcp/internal/config"
	"github.com/oxhq/ols-mcp/internal/lightspeed"
	"github.com/oxhq/ols-mcp/mcp"
	"github.com/oxhq/ols-mcp/mcp/tools"
	"github.com/oxhq/ols-mcp/models"
	"github.com/oxhq/ols-mcp/pkg/logger"
)

var (
	transport string
	logLevel  string
	auditDB   string
	debug     bool
)

var rootCmd = &cobra.Command{
	Use:   "ols-mcp",
	Short: "MCP server exposing OpenShift Lightspeed as a tool",
	Long: `ols-mcp serves the openshift_lightspeed tool over the Model Context Protocol.
Every call is forwarded to the OpenShift Lightspeed service at OLS_API_URL.`,
	Version:       mcp.ServerVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := resolveSettings(config.OSEnvironment{}, cmd)
		if err != nil {
			return err
		}
		return run(cmd.Context(), settings, config.OSEnvironment{}, os.Stdin, os.Stdout, os.Stderr)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Print the resolved Lightspeed target and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printTarget(cmd.OutOrStdout(), config.OSEnvironment{})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "", "Transport: stdio or streamable-http (default from MCP_TRANSPORT, else stdio)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from OLS_MCP_LOG_LEVEL, else info)")
	rootCmd.PersistentFlags().StringVar(&auditDB, "audit-db", "", "Audit database path or libsql:// URL (default from OLS_MCP_AUDIT_DB, disabled when empty)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging of frames and SQL")

	rootCmd.AddCommand(checkCmd)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveSettings reads the environment and lets explicit flags win.
func resolveSettings(env config.Environment, cmd *cobra.Command) (config.ServerSettings, error) {
	settings, err := config.ResolveServer(env)
	if err != nil {
		return config.ServerSettings{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("transport") {
		t, err := config.ParseTransport(transport)
		if err != nil {
			return config.ServerSettings{}, err
		}
		settings.Transport = t
	}
	if flags.Changed("log-level") {
		settings.LogLevel = logLevel
	}
	if flags.Changed("audit-db") {
		settings.AuditDSN = auditDB
	}
	if debug {
		settings.LogLevel = "debug"
	}
	return settings, nil
}

// run wires the server and blocks until the transport stops.
func run(ctx context.Context, settings config.ServerSettings, env config.Environment, stdin io.Reader, stdout, stderr io.Writer) error {
	log := logger.New(stderr, settings.LogLevel)
	log.Info("Starting OpenShift Lightspeed MCP server",
		"version", mcp.ServerVersion,
		"transport", string(settings.Transport))

	if cfg, err := config.Resolve(env); err != nil {
		// Not fatal: the tool reports the same error on every call.
		log.Warn("Lightspeed configuration invalid", "error", err)
	} else {
		log.Info("Lightspeed target",
			"url", cfg.BaseURL,
			"tls", cfg.TLS.String(),
			"authenticated", cfg.Authenticated(),
			"timeout", cfg.Timeout)
	}

	a, err := setup(ctx, settings, env, log)
	if err != nil {
		return err
	}
	defer a.close()

	switch settings.Transport {
	case config.TransportStreamableHTTP:
		return mcp.NewHTTPServer(a.server, settings.Addr(), a.httpOpts...).ListenAndServe(ctx)
	default:
		return a.server.ServeStdio(ctx, stdin, stdout)
	}
}

// app is the wired server plus what the HTTP transport needs.
type app struct {
	server   *mcp.Server
	httpOpts []mcp.HTTPOption
	close    func()
}

func setup(ctx context.Context, settings config.ServerSettings, env config.Environment, log *slog.Logger) (*app, error) {
	mcpConfig := mcp.DefaultConfig()
	mcpConfig.Debug = debug
	serverOpts := []mcp.Option{mcp.WithLogger(log)}
	toolOpts := []tools.LightspeedOption{tools.WithToolLogger(log)}
	a := &app{close: func() {}}

	if settings.AuditEnabled() {
		audit, closeAudit, err := openAudit(ctx, settings, env, log)
		if err != nil {
			return nil, err
		}
		a.close = closeAudit
		toolOpts = append(toolOpts, tools.WithRecorder(audit))
		serverOpts = append(serverOpts, mcp.WithInitializeHook(audit.clientInfoHook))
		a.httpOpts = append(a.httpOpts, mcp.WithSessionClosed(audit.endSession))
	}

	a.server = mcp.NewServer(mcpConfig, serverOpts...)
	toolOpts = append(toolOpts, tools.WithNotifier(a.server))

	client := lightspeed.NewClient(env, lightspeed.WithUserAgent(lightspeed.DefaultUserAgent+"/"+mcp.ServerVersion))
	tools.RegisterAll(a.server, client, toolOpts...)
	return a, nil
}

// auditRecorder keeps one audit session per client connection and stamps
// each record with the backend it was sent to. Stdio uses the empty key.
type auditRecorder struct {
	conn      *gorm.DB
	transport string
	env       config.Environment
	ops       *slog.Logger

	mu       sync.Mutex
	sessions map[string]*db.QueryLog
}

func (a *auditRecorder) session(ctx context.Context) (*db.QueryLog, error) {
	id, _ := mcp.SessionIDFromContext(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if queryLog, ok := a.sessions[id]; ok {
		return queryLog, nil
	}
	queryLog, err := db.OpenSession(ctx, a.conn, a.transport, id)
	if err != nil {
		return nil, err
	}
	a.sessions[id] = queryLog
	a.ops.Debug("audit session opened", "audit_session", queryLog.SessionID(), "session", id)
	return queryLog, nil
}

func (a *auditRecorder) RecordQuery(ctx context.Context, record *models.QueryRecord) error {
	queryLog, err := a.session(ctx)
	if err != nil {
		return err
	}
	if cfg, err := config.Resolve(a.env); err == nil {
		record.Target = db.TargetJSON(cfg.BaseURL, cfg.TLS.String(), cfg.Authenticated())
	}
	return queryLog.RecordQuery(ctx, record)
}

func (a *auditRecorder) clientInfoHook(ctx context.Context, info map[string]any) {
	queryLog, err := a.session(ctx)
	if err == nil {
		err = queryLog.SetClientInfo(ctx, info)
	}
	if err != nil {
		a.ops.Warn("failed to store client info", "error", err)
	}
}

// endSession closes the audit session of a terminated HTTP session.
func (a *auditRecorder) endSession(ctx context.Context, id string) {
	a.mu.Lock()
	queryLog, ok := a.sessions[id]
	delete(a.sessions, id)
	a.mu.Unlock()

	if !ok {
		return
	}
	if err := queryLog.End(context.WithoutCancel(ctx)); err != nil {
		a.ops.Warn("failed to close audit session", "error", err)
	}
}

func (a *auditRecorder) endAll(ctx context.Context) {
	a.mu.Lock()
	open := a.sessions
	a.sessions = make(map[string]*db.QueryLog)
	a.mu.Unlock()

	for _, queryLog := range open {
		if err := queryLog.End(ctx); err != nil {
			a.ops.Warn("failed to close audit session", "error", err)
		}
	}
}

func openAudit(ctx context.Context, settings config.ServerSettings, env config.Environment, log *slog.Logger) (*auditRecorder, func(), error) {
	conn, err := db.Connect(settings.AuditDSN, settings.AuditToken, debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	audit := &auditRecorder{
		conn:      conn,
		transport: string(settings.Transport),
		env:       env,
		ops:       log,
		sessions:  make(map[string]*db.QueryLog),
	}

	// Stdio has exactly one connection, so its session starts now.
	if settings.Transport == config.TransportStdio {
		queryLog, err := audit.session(ctx)
		if err != nil {
			closeDB(conn, log)
			return nil, nil, fmt.Errorf("failed to open audit session: %w", err)
		}
		log.Info("Audit log enabled", "session", queryLog.SessionID())
	} else {
		log.Info("Audit log enabled")
	}

	closeFn := func() {
		endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		audit.endAll(endCtx)
		closeDB(conn, log)
	}
	return audit, closeFn, nil
}

func closeDB(conn *gorm.DB, log *slog.Logger) {
	if err := db.Close(conn); err != nil {
		log.Warn("failed to close audit database", "error", err)
	}
}

func printTarget(w io.Writer, env config.Environment) error {
	cfg, err := config.Resolve(env)
	if err != nil {
		return err
	}
	auth := "none"
	if cfg.Authenticated() {
		auth = "bearer"
	}
	fmt.Fprintf(w, "url:     %s\n", cfg.QueryURL())
	fmt.Fprintf(w, "tls:     %s\n", cfg.TLS.String())
	fmt.Fprintf(w, "auth:    %s\n", auth)
	fmt.Fprintf(w, "timeout: %s\n", cfg.Timeout)
	return nil
}
