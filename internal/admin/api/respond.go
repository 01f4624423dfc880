// Package api implements the JSON handlers behind the local admin server.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/offmode/brickd/internal/engine"
	"github.com/offmode/brickd/internal/goal"
	"github.com/offmode/brickd/internal/lock"
	"github.com/offmode/brickd/internal/override"
	"github.com/offmode/brickd/internal/storage"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// writeDomainError maps domain errors onto HTTP statuses: 409 for state
// conflicts, 423 for commitment locks, 403 for commitment violations, 422
// for validation failures.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *engine.ValidationError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Record not found")
	case errors.Is(err, engine.ErrAlreadyActive),
		errors.Is(err, engine.ErrOnCooldown),
		errors.Is(err, engine.ErrNotEnforced),
		errors.Is(err, engine.ErrSessionEnforced),
		errors.Is(err, override.ErrChallengeIncomplete),
		errors.Is(err, override.ErrNoCountdown),
		errors.Is(err, override.ErrCountdownRunning),
		errors.Is(err, goal.ErrGoalActive),
		errors.Is(err, lock.ErrNotLocked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lock.ErrLocked):
		writeError(w, http.StatusLocked, err.Error())
	case errors.Is(err, goal.ErrCommitmentViolation),
		errors.Is(err, lock.ErrWrongPhrase):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &verr),
		errors.Is(err, lock.ErrPhraseTooShort),
		errors.Is(err, goal.ErrGoalExpired),
		errors.Is(err, goal.ErrGoalInactive),
		errors.Is(err, goal.ErrDuplicateItem),
		errors.Is(err, goal.ErrEmptyGoal):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}
