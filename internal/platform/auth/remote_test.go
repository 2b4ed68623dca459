package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"graphreader/internal/platform/identity"
)

func newVerifyServer(t *testing.T, status int, body string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodPost || r.URL.Path != "/auth/api-key/verify" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode verify payload: %v", err)
		}
		if payload["service_id"] != testServiceID {
			t.Errorf("service_id = %q, want %q", payload["service_id"], testServiceID)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newRemoteValidator(server *httptest.Server) *RemoteAPIKeyValidator {
	client := identity.NewClientWithHTTP(server.URL, testServiceID, server.Client())
	return NewRemoteAPIKeyValidator(client)
}

func TestRemoteAPIKeyValidator_Valid(t *testing.T) {
	server, calls := newVerifyServer(t, http.StatusOK,
		`{"id":"key-1","user_id":"u1","email":"alice@example.com","status":"active","expires_at":null}`)

	claims, err := newRemoteValidator(server).Validate(context.Background(), "validkey123")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.Subject() != "u1" || claims.APIKeyID() != "key-1" {
		t.Errorf("claims = %#v", claims)
	}
	if email, ok := claims.Email(); !ok || email != "alice@example.com" {
		t.Errorf("Email() = %q, %v", email, ok)
	}
	if *calls != 1 {
		t.Errorf("identity service called %d times, want 1", *calls)
	}
}

func TestRemoteAPIKeyValidator_NullEmail(t *testing.T) {
	server, _ := newVerifyServer(t, http.StatusOK,
		`{"id":"key-1","user_id":"u1","email":null,"status":"active","expires_at":null}`)

	claims, err := newRemoteValidator(server).Validate(context.Background(), "validkey123")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if email, present := claims[ClaimEmail]; !present || email != nil {
		t.Errorf("email claim = %#v (present %v), want explicit nil", email, present)
	}
}

func TestRemoteAPIKeyValidator_Failures(t *testing.T) {
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unknown key", http.StatusNotFound, `{"detail":"Not found"}`, ErrInvalidAPIKey},
		{"rejected", http.StatusUnauthorized, `{"detail":"Invalid"}`, ErrInvalidAPIKey},
		{"upstream failure", http.StatusInternalServerError, `oops`, ErrInvalidAPIKey},
		{"revoked", http.StatusOK, `{"id":"k","user_id":"u1","status":"revoked"}`, ErrInvalidAPIKey},
		{"malformed body", http.StatusOK, `not json`, ErrInvalidAPIKey},
		{"swept", http.StatusOK, `{"id":"k","user_id":"u1","status":"expired","expires_at":"` + past + `"}`, ErrAPIKeyExpired},
		{"revoked and lapsed", http.StatusOK, `{"id":"k","user_id":"u1","status":"revoked","expires_at":"` + past + `"}`, ErrInvalidAPIKey},
		{"expired", http.StatusOK, `{"id":"k","user_id":"u1","status":"active","expires_at":"` + past + `"}`, ErrAPIKeyExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := newVerifyServer(t, tt.status, tt.body)

			_, err := newRemoteValidator(server).Validate(context.Background(), "some-key")
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
			if *calls != 1 {
				t.Errorf("identity service called %d times, want exactly 1", *calls)
			}
		})
	}
}

func TestRemoteAPIKeyValidator_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := identity.NewClientWithHTTP(url, testServiceID, &http.Client{Timeout: time.Second})
	_, err := NewRemoteAPIKeyValidator(client).Validate(context.Background(), "some-key")
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("Validate() error = %v, want ErrInvalidAPIKey", err)
	}
}
