package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/goal"
)

// GoalHandler handles the append-only goal ledger.
type GoalHandler struct {
	goals  *goal.Ledger
	logger zerolog.Logger
}

// NewGoalHandler creates a new goal handler.
func NewGoalHandler(goals *goal.Ledger, logger zerolog.Logger) *GoalHandler {
	return &GoalHandler{
		goals:  goals,
		logger: logger.With().Str("handler", "goal").Logger(),
	}
}

// List returns all goals.
func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goals.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list goals")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve goals")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"goals": goals,
		"count": len(goals),
	})
}

// Get returns one goal with its items.
func (h *GoalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	g, items, err := h.goals.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"goal":  g,
		"items": items,
	})
}

type createGoalRequest struct {
	DurationDays int         `json:"duration_days"`
	Items        []goal.Item `json:"items"`
}

// Create starts a new goal.
func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.goals.Create(r.Context(), req.DurationDays, req.Items)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Delete removes a goal after it has run its course.
func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.goals.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem appends one item to a running goal.
func (h *GoalHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var item goal.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.goals.AddItem(r.Context(), id, item); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// RemoveItem always refuses: goal items are append-only for the goal's life.
func (h *GoalHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	err := h.goals.RemoveItem(r.Context(), vars["id"], vars["identifier"])
	writeDomainError(w, err)
}
