package audit

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	ActionAPIKeyCreate = "apikey.create"
	ActionAPIKeyList   = "apikey.list"
	ActionAPIKeyDelete = "apikey.delete"

	ResourceAPIKey = "api_key"
)

type Entry struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Action       string `json:"action"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	StatusCode   int    `json:"status_code"`
	IPAddress    string `json:"ip_address"`
	UserAgent    string `json:"user_agent"`
	CreatedAt    int64  `json:"created_at"`
}

// Logger records key-management actions. Entries always go to the structured
// log; they are also persisted when a local store is available.
type Logger struct {
	db  *sql.DB
	now func() time.Time
}

// NewLogger accepts a nil db for deployments without a local store.
func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db, now: time.Now}
}

// FromRequest fills the request-derived fields of an entry.
func FromRequest(r *http.Request, userID, requestID string) Entry {
	return Entry{
		UserID:    userID,
		RequestID: requestID,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

func (l *Logger) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = "audit_" + uuid.New().String()
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = l.now().Unix()
	}

	log.Info().
		Str("audit_id", entry.ID).
		Str("user_id", entry.UserID).
		Str("action", entry.Action).
		Str("resource_type", entry.ResourceType).
		Str("resource_id", entry.ResourceID).
		Str("request_id", entry.RequestID).
		Int("status", entry.StatusCode).
		Msg("audit")

	if l.db == nil {
		return nil
	}

	query := `
		INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, request_id, status_code, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := l.db.ExecContext(ctx, query, entry.ID, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID,
		entry.RequestID, entry.StatusCode, entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	return err
}
