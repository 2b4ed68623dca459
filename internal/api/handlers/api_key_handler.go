package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"graphreader/internal/api/middleware"
	apperrors "graphreader/internal/pkg/errors"
	"graphreader/internal/platform/audit"
	"graphreader/internal/platform/identity"
	"graphreader/internal/platform/metrics"
)

// APIKeyManager issues, lists and revokes keys for a caller. The identity
// client and auth.LocalKeyManager both satisfy it.
type APIKeyManager interface {
	CreateAPIKey(ctx context.Context, caller identity.Caller, req identity.CreateAPIKeyRequest) (json.RawMessage, error)
	ListAPIKeys(ctx context.Context, caller identity.Caller) (json.RawMessage, error)
	DeleteAPIKey(ctx context.Context, caller identity.Caller, keyID string) error
}

// APIKeyHandler manages the caller's keys, either against the identity
// service or the local key store. The service id is always this deployment's.
type APIKeyHandler struct {
	keys    APIKeyManager
	audit   *audit.Logger
	metrics *metrics.Metrics
}

func NewAPIKeyHandler(keys APIKeyManager, auditLogger *audit.Logger, m *metrics.Metrics) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, audit: auditLogger, metrics: m}
}

func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req identity.CreateAPIKeyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		apperrors.WriteError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	body, err := h.keys.CreateAPIKey(r.Context(), callerFrom(r), req)
	if err != nil {
		status := writeKeyError(w, r, err)
		h.record(r, audit.ActionAPIKeyCreate, "", status)
		return
	}

	writeRaw(w, http.StatusCreated, body)
	h.record(r, audit.ActionAPIKeyCreate, createdKeyID(body), http.StatusCreated)
}

func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	body, err := h.keys.ListAPIKeys(r.Context(), callerFrom(r))
	if err != nil {
		status := writeKeyError(w, r, err)
		h.record(r, audit.ActionAPIKeyList, "", status)
		return
	}

	writeRaw(w, http.StatusOK, body)
	h.record(r, audit.ActionAPIKeyList, "", http.StatusOK)
}

func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	keyID := param(r, "key_id")

	if err := h.keys.DeleteAPIKey(r.Context(), callerFrom(r), keyID); err != nil {
		status := writeKeyError(w, r, err)
		h.record(r, audit.ActionAPIKeyDelete, keyID, status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	h.record(r, audit.ActionAPIKeyDelete, keyID, http.StatusNoContent)
}

func callerFrom(r *http.Request) identity.Caller {
	caller := identity.Caller{Authorization: r.Header.Get("Authorization")}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		caller.UserID = claims.Subject()
		caller.Email, _ = claims.Email()
	}
	return caller
}

func (h *APIKeyHandler) record(r *http.Request, action, resourceID string, status int) {
	outcome := "ok"
	if status >= 300 {
		outcome = http.StatusText(status)
	}
	h.metrics.ObserveKeyOperation(action, outcome)

	if h.audit == nil {
		return
	}

	var subject string
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		subject = claims.Subject()
	}

	entry := audit.FromRequest(r, subject, middleware.GetRequestID(r.Context()))
	entry.Action = action
	entry.ResourceType = audit.ResourceAPIKey
	entry.ResourceID = resourceID
	entry.StatusCode = status

	// Recorded even when the client has already gone away.
	if err := h.audit.Record(context.WithoutCancel(r.Context()), entry); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("failed to persist audit entry")
	}
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func createdKeyID(body []byte) string {
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return ""
	}
	return created.ID
}
