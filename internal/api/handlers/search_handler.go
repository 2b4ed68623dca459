package handlers

import (
	"net/http"

	"graphreader/internal/engine/graph"
	apperrors "graphreader/internal/pkg/errors"
)

type SearchHandler struct {
	reader graph.Reader
}

func NewSearchHandler(reader graph.Reader) *SearchHandler {
	return &SearchHandler{reader: reader}
}

// Search requires both key and value; an empty value is a valid search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("key") || !query.Has("value") {
		apperrors.WriteError(w, http.StatusUnprocessableEntity, "query parameters key and value are required")
		return
	}

	ids, err := h.reader.SearchByProperty(r.Context(), query.Get("key"), query.Get("value"))
	if err != nil {
		writeReaderError(w, r, err, apperrors.DetailEntityNotFound)
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{"entity_ids": ids})
}
