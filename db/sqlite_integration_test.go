//go:build integration
// +build integration

package db

import (
	"context"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/ols-mcp/models"
)

// TestConnectLibSQLIntegration exercises the libSQL/Turso audit path when a
// remote DSN and auth token are available. It skips when they are not.
func TestConnectLibSQLIntegration(t *testing.T) {
	_ = godotenv.Load()

	dsn := os.Getenv("OLS_MCP_AUDIT_DB")
	token := os.Getenv("OLS_MCP_AUDIT_DB_TOKEN")

	if dsn == "" || token == "" || !isURL(dsn) {
		t.Skip("OLS_MCP_AUDIT_DB (libsql URL) or OLS_MCP_AUDIT_DB_TOKEN not set; skipping")
	}

	db, err := Connect(dsn, token, false)
	require.NoError(t, err, "connect to remote libSQL instance")
	defer Close(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Ping())

	ctx := context.Background()
	log, err := OpenSession(ctx, db, "integration", "")
	require.NoError(t, err)

	require.NoError(t, log.RecordQuery(ctx, &models.QueryRecord{
		Query:   "integration ping",
		Outcome: models.OutcomeOK,
	}))

	session, err := log.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, session.QueriesCount)

	require.NoError(t, log.End(ctx))
}
