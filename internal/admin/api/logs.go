package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/storage"
)

// LogsHandler serves the session audit log.
type LogsHandler struct {
	logs   storage.LogStore
	logger zerolog.Logger
}

// NewLogsHandler creates a new log handler.
func NewLogsHandler(logs storage.LogStore, logger zerolog.Logger) *LogsHandler {
	return &LogsHandler{
		logs:   logs,
		logger: logger.With().Str("handler", "logs").Logger(),
	}
}

// Query returns log entries matching the query parameters: session_id,
// status, start, end (RFC 3339) and limit.
func (h *LogsHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.LogEntryFilter{
		SessionID: q.Get("session_id"),
		Status:    storage.CompletionStatus(q.Get("status")),
	}

	if raw := q.Get("start"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start time, want RFC 3339")
			return
		}
		filter.StartTime = &ts
	}
	if raw := q.Get("end"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end time, want RFC 3339")
			return
		}
		filter.EndTime = &ts
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}

	entries, err := h.logs.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to query logs")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve log entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
