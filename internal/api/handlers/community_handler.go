package handlers

import (
	"net/http"

	"graphreader/internal/engine/graph"
	apperrors "graphreader/internal/pkg/errors"
)

type CommunityHandler struct {
	reader graph.Reader
}

func NewCommunityHandler(reader graph.Reader) *CommunityHandler {
	return &CommunityHandler{reader: reader}
}

func (h *CommunityHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.reader.GetCommunityMembers(r.Context(), param(r, "community_id"))
	if err != nil {
		writeReaderError(w, r, err, apperrors.DetailCommunityNotFound)
		return
	}
	if members == nil {
		members = []int64{}
	}

	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}
