package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fableforge/directorq/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
// ErrDuplicateDecision is not mapped here: the decision handler answers it
// itself, since the response depends on whether a cached outcome exists.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyTerminal):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrMissingWorld),
		errors.Is(err, domain.ErrInvalidChallenge),
		errors.Is(err, domain.ErrInvalidTotal),
		errors.Is(err, domain.ErrInvalidOutcomeType),
		errors.Is(err, domain.ErrInvalidSuggestion),
		errors.Is(err, domain.ErrInvalidDecision),
		errors.Is(err, domain.ErrInvalidQueue):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		respondError(w, http.StatusServiceUnavailable, domain.ErrStorageUnavailable.Error())
	case errors.Is(err, domain.ErrQueueCleanupFailure):
		// Reported as the failure it is; the Director must retry, not assume
		// the decision applied.
		respondError(w, http.StatusInternalServerError, domain.ErrQueueCleanupFailure.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
