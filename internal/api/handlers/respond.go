package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/inthetow/backend/internal/api/middleware"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Kind    apperrors.ErrorType `json:"kind"`
	Message string              `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, kind apperrors.ErrorType, message string) {
	respondWithJSON(w, statusCode, map[string]errorBody{
		"error": {Kind: kind, Message: message},
	})
}

// respondWithAppError maps an error to its HTTP status. Internal details are logged, not returned.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.TypeOf(err)
	status := kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
	}
	respondWithError(w, status, kind, apperrors.MessageOf(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewValidationError("invalid request payload: " + err.Error())
	}
	return nil
}

// pagination reads limit and offset; services clamp them
func pagination(r *http.Request) (int, int, error) {
	limit, err := intParam(r, "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.NewValidationError(name + " must be a non-negative integer")
	}
	return v, nil
}

// callerID returns the authenticated user, which RequireAuth guarantees on protected routes
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, apperrors.ErrorTypeUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}
