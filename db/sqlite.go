package db

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oxhq/ols-mcp/models"
)

// Connect opens the audit database and runs migrations. File paths use
// SQLite; libsql://, http:// and https:// DSNs go through the libSQL client
// with the optional auth token.
func Connect(dsn, authToken string, debug bool) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty database DSN")
	}

	if path, ok := sqlitePath(dsn); ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// stdout carries MCP frames in stdio mode, so gorm logs go to stderr.
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	config := &gorm.Config{
		Logger: logger.New(log.New(os.Stderr, "", log.LstdFlags), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var (
		dialector gorm.Dialector
		conn      *sql.DB
	)
	if isURL(dsn) {
		var (
			connector driver.Connector
			err       error
		)
		if authToken != "" {
			connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(authToken))
		} else {
			connector, err = libsql.NewConnector(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create libsql connector: %w", err)
		}

		conn = sql.OpenDB(connector)
		dialector = connDialector("libsql", dsn, conn)
	} else {
		dialector = fileDialector(dsn)
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if !isURL(dsn) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get connection pool: %w", err)
		}
		// One writer keeps SQLite free of "database is locked" and keeps
		// :memory: databases on a single connection.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		Close(db)
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the audit tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Session{},
		&models.QueryRecord{},
	)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isURL(dsn string) bool {
	return strings.HasPrefix(dsn, "libsql://") ||
		strings.HasPrefix(dsn, "http://") ||
		strings.HasPrefix(dsn, "https://")
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:")
}

// sqlitePath returns the filesystem path of a local SQLite DSN, dropping a
// file: URI scheme and any query parameters. It reports false for remote and
// in-memory databases.
func sqlitePath(dsn string) (string, bool) {
	if isURL(dsn) || isMemory(dsn) {
		return "", false
	}
	path, query, _ := strings.Cut(dsn, "?")
	if strings.Contains(query, "mode=memory") {
		return "", false
	}
	if rest, ok := strings.CutPrefix(path, "file:"); ok {
		path = rest
		// file:///abs/path
		if strings.HasPrefix(path, "///") {
			path = path[2:]
		}
	}
	if path == "" || path == ":memory:" {
		return "", false
	}
	return path, true
}
