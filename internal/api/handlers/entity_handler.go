package handlers

import (
	"net/http"
	"strconv"

	"graphreader/internal/engine/graph"
	apperrors "graphreader/internal/pkg/errors"
)

type EntityHandler struct {
	reader graph.Reader
}

func NewEntityHandler(reader graph.Reader) *EntityHandler {
	return &EntityHandler{reader: reader}
}

func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}

	entity, err := h.reader.GetEntity(r.Context(), id)
	if err != nil {
		writeReaderError(w, r, err, apperrors.DetailEntityNotFound)
		return
	}

	apperrors.WriteJSON(w, http.StatusOK, entity)
}

func (h *EntityHandler) Neighbors(w http.ResponseWriter, r *http.Request) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}

	edges, err := h.reader.GetNeighbors(r.Context(), id)
	if err != nil {
		writeReaderError(w, r, err, apperrors.DetailEntityNotFound)
		return
	}
	if edges == nil {
		edges = []graph.Edge{}
	}

	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{"neighbors": edges})
}

func (h *EntityHandler) Community(w http.ResponseWriter, r *http.Request) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}

	communityID, err := h.reader.GetEntityCommunity(r.Context(), id)
	if err == nil && communityID == "" {
		err = apperrors.ErrNotFound
	}
	if err != nil {
		writeReaderError(w, r, err, apperrors.DetailCommunityNotFound)
		return
	}

	apperrors.WriteJSON(w, http.StatusOK, map[string]string{"community_id": communityID})
}

func entityID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(param(r, "entity_id"), 10, 64)
	if err != nil {
		apperrors.WriteError(w, http.StatusUnprocessableEntity, "entity_id must be an integer")
		return 0, false
	}
	return id, true
}
