package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/engine"
	"github.com/offmode/brickd/internal/storage"
)

// StatusHandler reports the current enforcement state.
type StatusHandler struct {
	engine *engine.Engine
	logger zerolog.Logger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(eng *engine.Engine, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		engine: eng,
		logger: logger.With().Str("handler", "status").Logger(),
	}
}

type statusResponse struct {
	Enforced bool                   `json:"enforced"`
	Active   *storage.ActiveSession `json:"active,omitempty"`
	Session  *storage.Session       `json:"session,omitempty"`
}

// Get returns the active session, if any, with its definition.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{}

	if active := h.engine.Current(); active != nil {
		resp.Enforced = true
		resp.Active = active
		session, err := h.engine.GetSession(r.Context(), active.SessionID)
		if err != nil {
			h.logger.Error().Err(err).Str("session_id", active.SessionID).Msg("Failed to load active session definition")
		} else {
			resp.Session = session
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Decisions returns the decision set from the most recent evaluation pass.
func (h *StatusHandler) Decisions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Decisions())
}
