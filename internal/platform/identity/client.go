// Package identity talks to the external service that issues tokens and owns
// API keys. Responses outside the expected status are returned as
// *UpstreamError so handlers can pass them through unchanged.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"graphreader/internal/platform/config"
)

const (
	apiKeyPath       = "/auth/api-key/"
	verifyAPIKeyPath = "/auth/api-key/verify"

	// maxResponseBody bounds how much of an upstream body is buffered.
	maxResponseBody = 1 << 20
)

// ErrUnavailable wraps failures to reach the identity service at all.
var ErrUnavailable = errors.New("identity service unavailable")

type UpstreamError struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("identity service returned %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// CreateAPIKeyRequest is the body accepted from clients; service_id is
// always stamped by the client, never taken from the caller.
type CreateAPIKeyRequest struct {
	Name      *string `json:"name,omitempty"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

// Caller is who a key-management call is made for. The remote service reads
// the forwarded Authorization header; a local store keys off UserID.
type Caller struct {
	Authorization string
	UserID        string
	Email         string
}

type createAPIKeyPayload struct {
	CreateAPIKeyRequest
	ServiceID string `json:"service_id"`
}

// VerifiedKey is the identity service's view of a presented API key.
type VerifiedKey struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Email     *string    `json:"email"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type Client struct {
	baseURL   string
	serviceID string
	http      *http.Client
}

func NewClient(cfg config.IdentityConfig, serviceID string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		serviceID: serviceID,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

// NewClientWithHTTP lets tests point the client at an httptest server.
func NewClientWithHTTP(baseURL, serviceID string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		serviceID: serviceID,
		http:      httpClient,
	}
}

func (c *Client) ServiceID() string {
	return c.serviceID
}

// CreateAPIKey returns the identity service's 201 body verbatim; it carries
// the plaintext key, which is never seen again.
func (c *Client) CreateAPIKey(ctx context.Context, caller Caller, req CreateAPIKeyRequest) (json.RawMessage, error) {
	body, err := json.Marshal(createAPIKeyPayload{CreateAPIKeyRequest: req, ServiceID: c.serviceID})
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, apiKeyPath, nil, caller.Authorization, body, http.StatusCreated)
}

func (c *Client) ListAPIKeys(ctx context.Context, caller Caller) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, apiKeyPath, c.serviceQuery(), caller.Authorization, nil, http.StatusOK)
}

func (c *Client) DeleteAPIKey(ctx context.Context, caller Caller, keyID string) error {
	path := apiKeyPath + url.PathEscape(keyID)
	_, err := c.do(ctx, http.MethodDelete, path, c.serviceQuery(), caller.Authorization, nil, http.StatusNoContent)
	return err
}

func (c *Client) VerifyAPIKey(ctx context.Context, key string) (*VerifiedKey, error) {
	body, err := json.Marshal(map[string]string{"key": key, "service_id": c.serviceID})
	if err != nil {
		return nil, err
	}

	raw, err := c.do(ctx, http.MethodPost, verifyAPIKeyPath, nil, "", body, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var verified VerifiedKey
	if err := json.Unmarshal(raw, &verified); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	return &verified, nil
}

func (c *Client) serviceQuery() url.Values {
	return url.Values{"service_id": []string{c.serviceID}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, authorization string, body []byte, expect int) (json.RawMessage, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s response: %w", ErrUnavailable, method, path, err)
	}

	if resp.StatusCode != expect {
		return nil, &UpstreamError{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        respBody,
		}
	}
	return respBody, nil
}
