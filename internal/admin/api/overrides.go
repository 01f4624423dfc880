package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/override"
)

// OverrideHandler exposes the emergency-override challenge flow.
type OverrideHandler struct {
	controller *override.Controller
	logger     zerolog.Logger
}

// NewOverrideHandler creates a new override handler.
func NewOverrideHandler(controller *override.Controller, logger zerolog.Logger) *OverrideHandler {
	return &OverrideHandler{
		controller: controller,
		logger:     logger.With().Str("handler", "override").Logger(),
	}
}

// BeginCountdown starts a timed-wait challenge.
func (h *OverrideHandler) BeginCountdown(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	progress, err := h.controller.BeginCountdown(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, progress)
}

// CancelCountdown abandons a running timed-wait challenge.
func (h *OverrideHandler) CancelCountdown(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.controller.CancelCountdown(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Confirm records one repeated-action confirmation.
func (h *OverrideHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	progress, err := h.controller.ConfirmAction(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// Status reports challenge progress without advancing it.
func (h *OverrideHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	progress, err := h.controller.Status(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

type overrideRequest struct {
	Reason string `json:"reason"`
}

// Request executes the override once the challenge is satisfied.
func (h *OverrideHandler) Request(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.controller.RequestOverride(r.Context(), id, req.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info().Str("session_id", id).Msg("Override granted via API")
	w.WriteHeader(http.StatusNoContent)
}
