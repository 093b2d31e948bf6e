package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"watchpost/store"
)

// Heartbeat is the public receiver path: monitored jobs POST here and
// the engine's heartbeat executor reads the recorded timestamp.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	checkID := chi.URLParam(r, "id")

	err := h.db.SetHeartbeat(r.Context(), checkID, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no heartbeat check with that id")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
