package models

import (
	"time"

	"gorm.io/datatypes"
)

// Outcome values stored in QueryRecord.Outcome besides the error kinds.
const OutcomeOK = "ok"

// Session is one client connection: the stdio process lifetime or one
// streamable HTTP session.
type Session struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)"`
	Transport string     `gorm:"type:varchar(20);not null"`
	StartedAt time.Time  `gorm:"autoCreateTime"`
	EndedAt   *time.Time

	// Mcp-Session-Id for streamable HTTP, empty for stdio
	TransportSessionID string `gorm:"type:varchar(36);index"`

	QueriesCount int `gorm:"default:0"`

	// Client info from the most recent initialize handshake
	ClientInfo datatypes.JSON
}

// QueryRecord is one openshift_lightspeed invocation.
type QueryRecord struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	SessionID string `gorm:"type:varchar(36);index"`

	Query                  string `gorm:"type:text;not null"`
	RequestConversationID  string `gorm:"type:varchar(255)"`
	ResponseConversationID string `gorm:"type:varchar(255)"`

	// ok, http_status, transport, decode or other
	Outcome       string `gorm:"type:varchar(20);index;not null"`
	StatusCode    int
	ErrorMessage  string `gorm:"type:text"`
	ResponseChars int
	DurationMS    int64

	// Resolved target: base URL, TLS policy, whether a token was sent
	Target datatypes.JSON

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (Session) TableName() string     { return "sessions" }
func (QueryRecord) TableName() string { return "query_records" }
