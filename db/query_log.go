package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oxhq/ols-mcp/models"
)

// QueryLog appends query records to the audit database under one session.
type QueryLog struct {
	db        *gorm.DB
	sessionID string
}

// OpenSession creates a session row and returns a log bound to it.
// transportSessionID is the MCP session id, empty for stdio.
func OpenSession(ctx context.Context, db *gorm.DB, transport, transportSessionID string) (*QueryLog, error) {
	session := &models.Session{
		ID:                 uuid.NewString(),
		Transport:          transport,
		TransportSessionID: transportSessionID,
	}
	if err := db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &QueryLog{db: db, sessionID: session.ID}, nil
}

// SessionID returns the audit session identifier
func (l *QueryLog) SessionID() string {
	return l.sessionID
}

// RecordQuery stores one invocation and bumps the session counter.
func (l *QueryLog) RecordQuery(ctx context.Context, record *models.QueryRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.SessionID = l.sessionID

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("insert query record: %w", err)
		}
		err := tx.Model(&models.Session{}).
			Where("id = ?", l.sessionID).
			UpdateColumn("queries_count", gorm.Expr("queries_count + ?", 1)).Error
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return nil
	})
}

// SetClientInfo stores the client name and version reported at initialize.
func (l *QueryLog) SetClientInfo(ctx context.Context, info map[string]any) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode client info: %w", err)
	}
	return l.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", l.sessionID).
		Update("client_info", datatypes.JSON(raw)).Error
}

// Recent returns up to limit records of this session, newest first.
func (l *QueryLog) Recent(ctx context.Context, limit int) ([]models.QueryRecord, error) {
	var records []models.QueryRecord
	err := l.db.WithContext(ctx).
		Where("session_id = ?", l.sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list query records: %w", err)
	}
	return records, nil
}

// Session loads the session row.
func (l *QueryLog) Session(ctx context.Context) (*models.Session, error) {
	var session models.Session
	if err := l.db.WithContext(ctx).First(&session, "id = ?", l.sessionID).Error; err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &session, nil
}

// End marks the session finished.
func (l *QueryLog) End(ctx context.Context) error {
	now := time.Now()
	return l.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", l.sessionID).
		Update("ended_at", &now).Error
}

// TargetJSON encodes the resolved backend target for QueryRecord.Target.
func TargetJSON(baseURL, tlsPolicy string, authenticated bool) datatypes.JSON {
	raw, _ := json.Marshal(map[string]any{
		"base_url":      baseURL,
		"tls_verify":    tlsPolicy,
		"authenticated": authenticated,
	})
	return datatypes.JSON(raw)
}
