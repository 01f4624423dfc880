package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/engine"
	"github.com/offmode/brickd/internal/lock"
	"github.com/offmode/brickd/internal/storage"
)

// SessionHandler handles session definition and lifecycle requests.
type SessionHandler struct {
	engine *engine.Engine
	locks  *lock.Manager
	logger zerolog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(eng *engine.Engine, locks *lock.Manager, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		engine: eng,
		locks:  locks,
		logger: logger.With().Str("handler", "session").Logger(),
	}
}

// List returns all session definitions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.engine.ListSessions(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list sessions")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// Get returns a single session by ID.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	session, err := h.engine.GetSession(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Create creates a new session definition.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var session storage.Session
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if session.Name == "" {
		writeError(w, http.StatusBadRequest, "Session name is required")
		return
	}

	created, err := h.engine.CreateSession(r.Context(), session)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update replaces a session definition.
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var session storage.Session
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	session.ID = id

	if err := h.engine.UpdateSession(r.Context(), session); err != nil {
		writeDomainError(w, err)
		return
	}
	updated, err := h.engine.GetSession(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a session definition.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.engine.DeleteSession(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Start begins enforcement of a session.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.engine.StartSession(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Current())
}

type lockRequest struct {
	Phrase       string `json:"phrase"`
	DurationDays int    `json:"duration_days"`
}

// Lock places a commitment lock on a session.
func (h *SessionHandler) Lock(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.locks.Lock(r.Context(), id, req.DurationDays, req.Phrase); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unlockRequest struct {
	Phrase string `json:"phrase"`
}

// Unlock removes a commitment lock given the exact phrase.
func (h *SessionHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.locks.Unlock(r.Context(), id, req.Phrase); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
