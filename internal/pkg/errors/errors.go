package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
)

// ErrorResponse mirrors the {"detail": ...} body clients of the graph API expect.
type ErrorResponse struct {
	Detail interface{} `json:"detail"`
}

const (
	DetailNotAuthenticated  = "Not authenticated"
	DetailEntityNotFound    = "Entity not found"
	DetailCommunityNotFound = "Community not found"
	DetailInternal          = "Internal server error"
	DetailRateLimited       = "Rate limit exceeded"
	DetailAPIKeyNotFound    = "API key not found"
)

func WriteError(w http.ResponseWriter, status int, detail interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{Detail: detail})
}

// WriteUnauthorized adds the bearer challenge FastAPI-style clients look for.
func WriteUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteError(w, http.StatusUnauthorized, detail)
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
