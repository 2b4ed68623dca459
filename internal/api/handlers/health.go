package handlers

import (
	"net/http"

	apperrors "graphreader/internal/pkg/errors"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Check is unauthenticated and answers 200 whenever the process is serving.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
