package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	apiContext "graphreader/internal/api/context"
	apperrors "graphreader/internal/pkg/errors"
	"graphreader/internal/platform/identity"
)

func param(r *http.Request, name string) string {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return params.ByName(name)
}

// writeReaderError maps a graph reader failure: absence becomes a 404 with
// the given detail, anything else a logged 500.
func writeReaderError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if errors.Is(err, apperrors.ErrNotFound) {
		apperrors.WriteError(w, http.StatusNotFound, notFound)
		return
	}
	log.Error().Err(err).Str("path", r.URL.Path).Msg("graph reader failed")
	apperrors.WriteError(w, http.StatusInternalServerError, apperrors.DetailInternal)
}

// writeKeyError relays an identity service rejection with its original
// status code and body. Local store failures map onto the statuses the
// identity service uses. An unreachable service is a 502.
func writeKeyError(w http.ResponseWriter, r *http.Request, err error) int {
	var upstream *identity.UpstreamError
	switch {
	case errors.As(err, &upstream):
		contentType := upstream.ContentType
		if contentType == "" {
			contentType = "text/plain; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(upstream.StatusCode)
		w.Write(upstream.Body)
		return upstream.StatusCode
	case errors.Is(err, apperrors.ErrUnauthorized):
		apperrors.WriteUnauthorized(w, apperrors.DetailNotAuthenticated)
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrNotFound):
		apperrors.WriteError(w, http.StatusNotFound, apperrors.DetailAPIKeyNotFound)
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrValidation):
		apperrors.WriteError(w, http.StatusUnprocessableEntity, strings.TrimPrefix(err.Error(), apperrors.ErrValidation.Error()+": "))
		return http.StatusUnprocessableEntity
	case errors.Is(err, identity.ErrUnavailable):
		log.Error().Err(err).Str("path", r.URL.Path).Msg("identity service call failed")
		apperrors.WriteError(w, http.StatusBadGateway, "Identity service unavailable")
		return http.StatusBadGateway
	}

	log.Error().Err(err).Str("path", r.URL.Path).Msg("api key store failed")
	apperrors.WriteError(w, http.StatusInternalServerError, apperrors.DetailInternal)
	return http.StatusInternalServerError
}
