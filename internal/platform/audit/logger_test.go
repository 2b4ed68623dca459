package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestLogger_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	l := NewLogger(db)
	l.now = func() time.Time { return time.Unix(1700000000, 0) }

	req := httptest.NewRequest("DELETE", "/apikeys/k1", nil)
	req.Header.Set("User-Agent", "curl/8.0")
	entry := FromRequest(req, "u1", "req-1")
	entry.Action = ActionAPIKeyDelete
	entry.ResourceType = ResourceAPIKey
	entry.ResourceID = "k1"
	entry.StatusCode = 204

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), "u1", ActionAPIKeyDelete, ResourceAPIKey, "k1", "req-1", 204, req.RemoteAddr, "curl/8.0", int64(1700000000)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := l.Record(context.Background(), entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestLogger_RecordInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("disk full"))

	err = NewLogger(db).Record(context.Background(), Entry{UserID: "u1", Action: ActionAPIKeyCreate, ResourceType: ResourceAPIKey})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Record() error = %v, want disk full", err)
	}
}

func TestLogger_WithoutStore(t *testing.T) {
	if err := NewLogger(nil).Record(context.Background(), Entry{UserID: "u1", Action: ActionAPIKeyList}); err != nil {
		t.Errorf("Record() without store error = %v", err)
	}
}
