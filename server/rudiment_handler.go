package server

import (
	"net/http"

	"fortify/core/catalog"
)

// ListRudimentsHandler handles GET /api/rudiments.
func (h *APIHandler) ListRudimentsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.mustUserID(w, r)
	if !ok {
		return
	}

	rudiments, err := h.catalog.ListVisible(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rudiments)
}

// CreateRudimentHandler handles POST /api/rudiments.
func (h *APIHandler) CreateRudimentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.mustUserID(w, r)
	if !ok {
		return
	}

	var req catalog.CreateRudimentInput
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	rudiment, err := h.catalog.Create(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rudiment)
}

// DeleteRudimentHandler handles DELETE /api/rudiments/{id}.
func (h *APIHandler) DeleteRudimentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.mustUserID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.catalog.Delete(r.Context(), id, userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SuggestedTempoHandler handles GET /api/rudiments/{id}/suggested-tempo.
func (h *APIHandler) SuggestedTempoHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.mustUserID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	suggested, err := h.tempo.SuggestTempo(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"suggested_tempo": suggested})
}
