package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/domain"
)

// WriteJSON writes data as a JSON response with the given status
func WriteJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// StatusFor maps domain errors onto HTTP status codes
func StatusFor(err error) int {
	var validation *domain.ValidationError
	var funds *domain.InsufficientFundsError
	var cfg *domain.ConfigurationError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &funds):
		return http.StatusUnprocessableEntity
	case errors.As(err, &cfg):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// WriteError writes an error response. Insufficient funds carry the goal and
// its available balance so clients can correct the request.
func WriteError(w http.ResponseWriter, err error, log zerolog.Logger) {
	status := StatusFor(err)
	body := map[string]interface{}{"error": err.Error()}

	var funds *domain.InsufficientFundsError
	if errors.As(err, &funds) {
		body["goal_id"] = funds.GoalID
		body["requested"] = funds.Requested
		body["available"] = funds.Available
	}

	var cfg *domain.ConfigurationError
	if errors.As(err, &cfg) {
		log.Error().Err(err).Msg("Configuration error while serving request")
	} else if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}

	WriteJSON(w, status, body, log)
}
