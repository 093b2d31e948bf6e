package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"watchpost/engine"
	"watchpost/store"
)

type runRequest struct {
	CheckID    string `json:"checkId"`
	ResourceID string `json:"resourceId"`
}

// RunChecks triggers one engine invocation, optionally narrowed to a
// single check or resource, and returns the invocation summary.
func (h *Handler) RunChecks(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	sum, err := h.runner.Run(r.Context(), engine.Filter{
		CheckID:    req.CheckID,
		ResourceID: req.ResourceID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, sum)
}

func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.db.ListResults(r.Context(), r.URL.Query().Get("checkId"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, results)
}

func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	alerts, err := h.db.ListAlerts(r.Context(), r.URL.Query().Get("resourceId"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, alerts)
}

func (h *Handler) GetResourceStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.db.Resource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "resource not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, res)
}
