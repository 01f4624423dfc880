package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/metrics"
	"github.com/offmode/brickd/internal/unlock"
)

// GrantHandler handles temporary unlock grants.
type GrantHandler struct {
	grants *unlock.Manager
	logger zerolog.Logger
}

// NewGrantHandler creates a new grant handler.
func NewGrantHandler(grants *unlock.Manager, logger zerolog.Logger) *GrantHandler {
	return &GrantHandler{
		grants: grants,
		logger: logger.With().Str("handler", "grant").Logger(),
	}
}

// List returns all live grants.
func (h *GrantHandler) List(w http.ResponseWriter, r *http.Request) {
	grants, err := h.grants.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list grants")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve grants")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"grants": grants,
		"count":  len(grants),
	})
}

type grantRequest struct {
	Identifier string `json:"identifier"`
	Minutes    int    `json:"minutes"`
}

// Create issues a new grant.
func (h *GrantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusUnprocessableEntity, "Grant identifier is required")
		return
	}
	if req.Minutes <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "Grant minutes must be positive")
		return
	}

	if err := h.grants.Grant(r.Context(), req.Identifier, req.Minutes); err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.GrantsIssued.Inc()
	w.WriteHeader(http.StatusCreated)
}

type extendRequest struct {
	Minutes int `json:"minutes"`
}

// Extend lengthens a live grant.
func (h *GrantHandler) Extend(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["identifier"]

	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Minutes <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "Extension minutes must be positive")
		return
	}

	if err := h.grants.Extend(r.Context(), identifier, req.Minutes); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Revoke removes a grant before its natural expiry.
func (h *GrantHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["identifier"]

	if err := h.grants.Revoke(r.Context(), identifier); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
