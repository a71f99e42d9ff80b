package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/ols-mcp/db"
	"github.com/oxhq/ols-mcp/internal/config"
	"github.com/oxhq/ols-mcp/mcp"
	"github.com/oxhq/ols-mcp/models"
	"github.com/oxhq/ols-mcp/pkg/logger"
)

// resetFlags restores every root flag to its default and clears Changed.
func resetFlags(t *testing.T) {
	t.Helper()
	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	})
	transport, logLevel, auditDB, debug = "", "", "", false
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "ols-mcp", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Version)

	for _, name := range []string{"transport", "log-level", "audit-db", "debug"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}

	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "check" {
			found = true
		}
	}
	assert.True(t, found, "check subcommand should be registered")
}

func TestResolveSettings(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		args    []string
		want    config.ServerSettings
		wantErr string
	}{
		{
			name: "defaults",
			want: config.ServerSettings{Transport: config.TransportStdio, Host: "0.0.0.0", Port: 8000, LogLevel: "info"},
		},
		{
			name: "environment",
			env:  map[string]string{"MCP_TRANSPORT": "streamable-http", "OLS_MCP_LOG_LEVEL": "WARN", "OLS_MCP_AUDIT_DB": "/tmp/a.db"},
			want: config.ServerSettings{Transport: config.TransportStreamableHTTP, Host: "0.0.0.0", Port: 8000, LogLevel: "warn", AuditDSN: "/tmp/a.db"},
		},
		{
			name: "flags override environment",
			env:  map[string]string{"MCP_TRANSPORT": "streamable-http", "OLS_MCP_AUDIT_DB": "/tmp/a.db"},
			args: []string{"--transport", "stdio", "--audit-db", "", "--log-level", "error"},
			want: config.ServerSettings{Transport: config.TransportStdio, Host: "0.0.0.0", Port: 8000, LogLevel: "error"},
		},
		{
			name: "debug forces debug level",
			args: []string{"--debug", "--log-level", "error"},
			want: config.ServerSettings{Transport: config.TransportStdio, Host: "0.0.0.0", Port: 8000, LogLevel: "debug"},
		},
		{
			name:    "bad transport flag",
			args:    []string{"--transport", "sse"},
			wantErr: "unsupported",
		},
		{
			name:    "bad transport env",
			env:     map[string]string{"MCP_TRANSPORT": "sse"},
			wantErr: "unsupported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			require.NoError(t, rootCmd.ParseFlags(tt.args))

			got, err := resolveSettings(config.MapEnvironment{Vars: tt.env}, rootCmd)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	resetFlags(t)
}

func TestPrintTarget(t *testing.T) {
	var out bytes.Buffer
	env := config.MapEnvironment{Vars: map[string]string{
		"OLS_API_URL":    "https://ols.example.com/",
		"OLS_API_TOKEN":  "secret",
		"OLS_VERIFY_SSL": "false",
		"OLS_TIMEOUT":    "12.5",
	}}

	require.NoError(t, printTarget(&out, env))

	text := out.String()
	assert.Contains(t, text, "https://ols.example.com/v1/query")
	assert.Contains(t, text, "auth:    bearer")
	assert.Contains(t, text, "timeout: 12.5s")
	assert.NotContains(t, text, "secret")

	err := printTarget(&out, config.MapEnvironment{Vars: map[string]string{"OLS_TIMEOUT": "soon"}})
	assert.Error(t, err)
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response":        "answer to " + body["query"].(string),
			"conversation_id": "conv-1",
		})
	}))
	t.Cleanup(backend.Close)
	return backend
}

const stdioSession = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"cli-test","version":"0.0.1"}}}
{"jsonrpc":"2.0","method":"notifications/initialized"}
{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"openshift_lightspeed","arguments":{"query":"pods?"}}}
`

func TestRun_Stdio(t *testing.T) {
	resetFlags(t)
	backend := newBackend(t)
	env := config.MapEnvironment{Vars: map[string]string{"OLS_API_URL": backend.URL}}
	settings := config.ServerSettings{Transport: config.TransportStdio, LogLevel: "debug"}

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), settings, env, strings.NewReader(stdioSession), &stdout, &stderr)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), `"text":"answer to pods?"`)
	assert.Contains(t, stdout.String(), `"conversation_id":"conv-1"`)
	// Logs never reach the protocol stream.
	assert.NotContains(t, stdout.String(), "Starting OpenShift Lightspeed MCP server")
	assert.Contains(t, stderr.String(), "Starting OpenShift Lightspeed MCP server")
}

func TestRun_StdioBackendDown(t *testing.T) {
	resetFlags(t)
	env := config.MapEnvironment{Vars: map[string]string{"OLS_API_URL": "http://127.0.0.1:1"}}
	settings := config.ServerSettings{Transport: config.TransportStdio, LogLevel: "error"}

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), settings, env, strings.NewReader(stdioSession), &stdout, &stderr))

	assert.Contains(t, stdout.String(), `"text":"Error: Request error: `)
	assert.Contains(t, stdout.String(), `"method":"notifications/message"`)
	assert.Contains(t, stderr.String(), "Error calling OpenShift Lightspeed")
}

func TestRun_Audit(t *testing.T) {
	resetFlags(t)
	backend := newBackend(t)
	dbPath := filepath.Join(t.TempDir(), "audit", "ols.db")
	env := config.MapEnvironment{Vars: map[string]string{"OLS_API_URL": backend.URL}}
	settings := config.ServerSettings{Transport: config.TransportStdio, LogLevel: "error", AuditDSN: dbPath}

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), settings, env, strings.NewReader(stdioSession), &stdout, &stderr))

	conn, err := db.Connect(dbPath, "", false)
	require.NoError(t, err)
	defer db.Close(conn)

	var sessions []models.Session
	require.NoError(t, conn.Find(&sessions).Error)
	require.Len(t, sessions, 1)
	assert.Equal(t, "stdio", sessions[0].Transport)
	assert.Equal(t, 1, sessions[0].QueriesCount)
	assert.NotNil(t, sessions[0].EndedAt)
	assert.Contains(t, string(sessions[0].ClientInfo), "cli-test")

	var records []models.QueryRecord
	require.NoError(t, conn.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, "pods?", records[0].Query)
	assert.Equal(t, models.OutcomeOK, records[0].Outcome)
	assert.Equal(t, "conv-1", records[0].ResponseConversationID)
	assert.Contains(t, string(records[0].Target), backend.URL)
}

func TestRun_AuditOpenFailure(t *testing.T) {
	resetFlags(t)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	settings := config.ServerSettings{
		Transport: config.TransportStdio,
		LogLevel:  "error",
		AuditDSN:  filepath.Join(blocker, "audit", "ols.db"),
	}

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), settings, config.MapEnvironment{}, strings.NewReader(""), &stdout, &stderr)
	assert.ErrorContains(t, err, "audit")
}

func postFrame(t *testing.T, url, session, frame string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/mcp", strings.NewReader(frame))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(mcp.SessionHeader, session)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Less(t, resp.StatusCode, 300)
	return resp
}

func TestSetup_AuditPerHTTPSession(t *testing.T) {
	resetFlags(t)
	backend := newBackend(t)
	dbPath := filepath.Join(t.TempDir(), "http.db")
	env := config.MapEnvironment{Vars: map[string]string{"OLS_API_URL": backend.URL}}
	settings := config.ServerSettings{Transport: config.TransportStreamableHTTP, LogLevel: "error", AuditDSN: dbPath}

	a, err := setup(context.Background(), settings, env, logger.Discard())
	require.NoError(t, err)
	ts := httptest.NewServer(mcp.NewHTTPServer(a.server, "127.0.0.1:0", a.httpOpts...).Handler())
	defer ts.Close()

	open := func(client string) string {
		resp := postFrame(t, ts.URL, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"`+client+`"}}}`)
		id := resp.Header.Get(mcp.SessionHeader)
		require.NotEmpty(t, id)
		postFrame(t, ts.URL, id, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"openshift_lightspeed","arguments":{"query":"from `+client+`"}}}`)
		return id
	}
	alpha := open("alpha")
	beta := open("beta")

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set(mcp.SessionHeader, alpha)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	require.Equal(t, http.StatusNoContent, del.StatusCode)

	conn, err := db.Connect(dbPath, "", false)
	require.NoError(t, err)
	defer db.Close(conn)

	var ended models.Session
	require.NoError(t, conn.First(&ended, "transport_session_id = ?", alpha).Error)
	assert.NotNil(t, ended.EndedAt)

	a.close()

	var sessions []models.Session
	require.NoError(t, conn.Order("started_at").Find(&sessions).Error)
	require.Len(t, sessions, 2)
	byID := map[string]models.Session{}
	for _, s := range sessions {
		assert.Equal(t, "streamable-http", s.Transport)
		assert.Equal(t, 1, s.QueriesCount)
		assert.NotNil(t, s.EndedAt)
		byID[s.TransportSessionID] = s
	}
	assert.Contains(t, string(byID[alpha].ClientInfo), "alpha")
	assert.Contains(t, string(byID[beta].ClientInfo), "beta")

	var records []models.QueryRecord
	require.NoError(t, conn.Where("session_id = ?", byID[beta].ID).Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, "from beta", records[0].Query)
}
