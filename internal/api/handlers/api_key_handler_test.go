package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/julienschmidt/httprouter"
	apiContext "graphreader/internal/api/context"
	apperrors "graphreader/internal/pkg/errors"
	"graphreader/internal/platform/audit"
	"graphreader/internal/platform/auth"
	"graphreader/internal/platform/identity"
)

// identityStub stands in for the identity service.
type identityStub struct {
	status int
	body   string
	seen   *http.Request
}

func newIdentityStub(t *testing.T, status int, body string) (*identity.Client, *identityStub) {
	t.Helper()
	stub := &identityStub{status: status, body: body}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.seen = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(stub.status)
		w.Write([]byte(stub.body))
	}))
	t.Cleanup(server.Close)
	return identity.NewClientWithHTTP(server.URL, "graph_reader_api", server.Client()), stub
}

func withParams(r *http.Request, ps httprouter.Params) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), apiContext.Params, ps))
}

func TestAPIKeyHandler_Create(t *testing.T) {
	client, stub := newIdentityStub(t, http.StatusCreated, `{"id":"k1","key":"secret-plaintext"}`)
	h := NewAPIKeyHandler(client, audit.NewLogger(nil), nil)

	req := httptest.NewRequest("POST", "/apikeys", strings.NewReader(`{"name":"ci"}`))
	req.Header.Set("Authorization", "Bearer caller-token")
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusCreated)
	}
	if rr.Body.String() != `{"id":"k1","key":"secret-plaintext"}` {
		t.Errorf("body = %s", rr.Body.String())
	}
	if stub.seen.Header.Get("Authorization") != "Bearer caller-token" {
		t.Errorf("Authorization forwarded as %q", stub.seen.Header.Get("Authorization"))
	}
}

func TestAPIKeyHandler_CreateInvalidBody(t *testing.T) {
	client, stub := newIdentityStub(t, http.StatusCreated, `{}`)
	h := NewAPIKeyHandler(client, nil, nil)

	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest("POST", "/apikeys", strings.NewReader(`{not json`)))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
	if stub.seen != nil {
		t.Error("identity service should not be called for an invalid body")
	}
}

func TestAPIKeyHandler_ListForwardsServiceID(t *testing.T) {
	client, stub := newIdentityStub(t, http.StatusOK, `[{"id":"k1"}]`)
	h := NewAPIKeyHandler(client, nil, nil)

	req := httptest.NewRequest("GET", "/apikeys", nil)
	req.Header.Set("Authorization", "Bearer caller-token")
	rr := httptest.NewRecorder()
	h.List(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != `[{"id":"k1"}]` {
		t.Errorf("response = %d %s", rr.Code, rr.Body.String())
	}
	if stub.seen.URL.Query().Get("service_id") != "graph_reader_api" {
		t.Errorf("service_id = %q", stub.seen.URL.Query().Get("service_id"))
	}
}

func TestAPIKeyHandler_UpstreamPassthrough(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		call   func(h *APIKeyHandler, w http.ResponseWriter)
	}{
		{"create 400", http.StatusBadRequest, `{"detail":"Invalid expires_at"}`, func(h *APIKeyHandler, w http.ResponseWriter) {
			h.Create(w, httptest.NewRequest("POST", "/apikeys", strings.NewReader(`{}`)))
		}},
		{"list 500", http.StatusInternalServerError, `{"detail":"boom"}`, func(h *APIKeyHandler, w http.ResponseWriter) {
			h.List(w, httptest.NewRequest("GET", "/apikeys", nil))
		}},
		{"delete 404", http.StatusNotFound, `{"detail":"API key not found"}`, func(h *APIKeyHandler, w http.ResponseWriter) {
			req := withParams(httptest.NewRequest("DELETE", "/apikeys/k9", nil), httprouter.Params{{Key: "key_id", Value: "k9"}})
			h.Delete(w, req)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newIdentityStub(t, tt.status, tt.body)
			h := NewAPIKeyHandler(client, nil, nil)

			rr := httptest.NewRecorder()
			tt.call(h, rr)

			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			if rr.Body.String() != tt.body {
				t.Errorf("body = %s, want %s", rr.Body.String(), tt.body)
			}
		})
	}
}

func TestAPIKeyHandler_DeleteAudited(t *testing.T) {
	client, stub := newIdentityStub(t, http.StatusNoContent, "")

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), "", audit.ActionAPIKeyDelete, audit.ResourceAPIKey, "k1", "", 204,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	h := NewAPIKeyHandler(client, audit.NewLogger(db), nil)
	req := withParams(httptest.NewRequest("DELETE", "/apikeys/k1", nil), httprouter.Params{{Key: "key_id", Value: "k1"}})
	rr := httptest.NewRecorder()
	h.Delete(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if stub.seen.URL.Path != "/auth/api-key/k1" {
		t.Errorf("upstream path = %s", stub.seen.URL.Path)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestAPIKeyHandler_IdentityUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	h := NewAPIKeyHandler(identity.NewClientWithHTTP(server.URL, "svc", http.DefaultClient), nil, nil)
	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest("GET", "/apikeys", nil))

	if rr.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rr.Code)
	}
}

// failingKeys fails every call with err and remembers who asked.
type failingKeys struct {
	err    error
	caller identity.Caller
}

func (f *failingKeys) CreateAPIKey(_ context.Context, caller identity.Caller, _ identity.CreateAPIKeyRequest) (json.RawMessage, error) {
	f.caller = caller
	return nil, f.err
}

func (f *failingKeys) ListAPIKeys(_ context.Context, caller identity.Caller) (json.RawMessage, error) {
	f.caller = caller
	return nil, f.err
}

func (f *failingKeys) DeleteAPIKey(_ context.Context, caller identity.Caller, _ string) error {
	f.caller = caller
	return f.err
}

func TestAPIKeyHandler_StoreErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"not found", apperrors.ErrNotFound, http.StatusNotFound, "API key not found"},
		{"validation", fmt.Errorf("%w: expires_at must be an RFC 3339 timestamp", apperrors.ErrValidation), http.StatusUnprocessableEntity, "expires_at must be an RFC 3339 timestamp"},
		{"no subject", auth.ErrNotAuthenticated, http.StatusUnauthorized, "Not authenticated"},
		{"identity unreachable", fmt.Errorf("%w: dial tcp", identity.ErrUnavailable), http.StatusBadGateway, "Identity service unavailable"},
		{"store failure", errors.New("database is locked"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAPIKeyHandler(&failingKeys{err: tt.err}, nil, nil)
			req := withParams(httptest.NewRequest("DELETE", "/apikeys/k1", nil), httprouter.Params{{Key: "key_id", Value: "k1"}})
			rr := httptest.NewRecorder()
			h.Delete(rr, req)

			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			var body apperrors.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON body %q: %v", rr.Body.String(), err)
			}
			if body.Detail != tt.detail {
				t.Errorf("detail = %v, want %q", body.Detail, tt.detail)
			}
		})
	}
}

func TestAPIKeyHandler_CallerFromClaims(t *testing.T) {
	keys := &failingKeys{err: apperrors.ErrNotFound}
	h := NewAPIKeyHandler(keys, nil, nil)

	claims := auth.UserClaims{auth.ClaimSubject: "u1", auth.ClaimEmail: "alice@example.com"}
	req := httptest.NewRequest("GET", "/apikeys", nil)
	req.Header.Set("Authorization", "Bearer caller-token")
	req = req.WithContext(context.WithValue(req.Context(), apiContext.Claims, claims))
	h.List(httptest.NewRecorder(), req)

	want := identity.Caller{Authorization: "Bearer caller-token", UserID: "u1", Email: "alice@example.com"}
	if keys.caller != want {
		t.Errorf("caller = %+v, want %+v", keys.caller, want)
	}
}
