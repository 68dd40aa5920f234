// Package httpapi is the HTTP boundary of the booking engine: routing,
// identity middleware, request decoding, and the mapping from the shared
// error taxonomy to status codes. Rendering (HTML, CSV, XLSX) lives
// outside the core; every response here is a structured JSON view-model.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/navalmess/api/internal/apperr"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": message,
		"status":  status,
	})
}

// respondAppError translates a tagged error into the appropriate status
// code and a short reason string. Storage errors are logged with context
// and surfaced as 500, never silently swallowed.
func respondAppError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	kind := apperr.KindOf(err)
	errors.As(err, &appErr)

	message := "internal error"
	if appErr != nil {
		message = appErr.Reason
	}

	switch kind {
	case apperr.BadInput:
		respondError(w, http.StatusBadRequest, message)
	case apperr.NotAllowed, apperr.DeadlineExpired, apperr.DateClosed, apperr.OutOfHorizon, apperr.UserAbsent:
		respondError(w, http.StatusForbidden, message)
	case apperr.NotFound:
		respondError(w, http.StatusNotFound, message)
	case apperr.Conflict, apperr.CapacityExceeded:
		respondError(w, http.StatusConflict, message)
	case apperr.AccountLocked:
		if appErr != nil && !appErr.RetryAt.IsZero() {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(appErr.RetryAt).Seconds())))
		}
		respondError(w, http.StatusTooManyRequests, message)
	default:
		log.Error().Err(err).Msg("request failed with storage error")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

const dateLayout = "2006-01-02"

// parseDate parses a YYYY-MM-DD path or query value.
func parseDate(value string) (time.Time, error) {
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, apperr.New(apperr.BadInput, "invalid date, expected YYYY-MM-DD")
	}
	return d, nil
}
