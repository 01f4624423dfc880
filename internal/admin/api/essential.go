package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/essential"
	"github.com/offmode/brickd/internal/storage"
)

// EssentialHandler handles the always-allowed app registry.
type EssentialHandler struct {
	registry *essential.Registry
	logger   zerolog.Logger
}

// NewEssentialHandler creates a new essential-app handler.
func NewEssentialHandler(registry *essential.Registry, logger zerolog.Logger) *EssentialHandler {
	return &EssentialHandler{
		registry: registry,
		logger:   logger.With().Str("handler", "essential").Logger(),
	}
}

// List returns the full registry.
func (h *EssentialHandler) List(w http.ResponseWriter, r *http.Request) {
	apps, err := h.registry.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list essential apps")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve essential apps")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"apps":  apps,
		"count": len(apps),
	})
}

// Add registers a user-defined essential app.
func (h *EssentialHandler) Add(w http.ResponseWriter, r *http.Request) {
	var app storage.EssentialApp
	if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if app.Identifier == "" {
		writeError(w, http.StatusUnprocessableEntity, "App identifier is required")
		return
	}

	if err := h.registry.Add(r.Context(), app); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Remove deletes a user-defined essential app. System-defined entries
// cannot be removed.
func (h *EssentialHandler) Remove(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["identifier"]

	if err := h.registry.Remove(r.Context(), identifier); err != nil {
		if errors.Is(err, essential.ErrSystemDefined) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
