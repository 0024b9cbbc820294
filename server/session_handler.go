package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fortify/core/apperr"
	"fortify/core/sessionlog"
	"fortify/model"
	"fortify/repository"
)

// LogSessionHandler handles POST /api/sessions.
func (h *APIHandler) LogSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.mustUserID(w, r)
	if !ok {
		return
	}

	var req sessionlog.LogSessionInput
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	session, err := h.sessions.LogSession(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// parseDateParam accepts RFC3339 timestamps or plain YYYY-MM-DD dates (UTC midnight).
func parseDateParam(value string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// parseSessionFilter reads rudimentId, quality, from, to and search from the query string.
// A plain-date "to" includes the whole day.
func parseSessionFilter(q url.Values) (repository.SessionFilter, error) {
	var (
		filter repository.SessionFilter
		fields apperr.FieldErrors
	)

	if v := strings.TrimSpace(q.Get("rudimentId")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			filter.RudimentID = &id
		} else {
			fields.Add("rudimentId", "must be a positive integer")
		}
	}
	if v := strings.TrimSpace(q.Get("quality")); v != "" {
		n, err := strconv.Atoi(v)
		quality := model.Quality(n)
		if err == nil && quality.Valid() {
			filter.Quality = &quality
		} else {
			fields.Add("quality", fmt.Sprintf("must be between %d and %d", model.MinQuality, model.MaxQuality))
		}
	}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		if t, ok := parseDateParam(v); ok {
			filter.From = &t
		} else {
			fields.Add("from", "must be a date (YYYY-MM-DD) or RFC3339 timestamp")
		}
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		if t, ok := parseDateParam(v); ok {
			if len(v) == len(time.DateOnly) {
				t = t.AddDate(0, 0, 1)
			}
			filter.To = &t
		} else {
			fields.Add("to", "must be a date (YYYY-MM-DD) or RFC3339 timestamp")
		}
	}
	filter.Search = strings.TrimSpace(q.Get("search"))

	return filter, fields.Err()
}

func queryInt(q url.Values, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(q.Get(key)))
	if err != nil {
		return 0
	}
	return n
}

// ListSessionsHandler handles GET /api/sessions.
func (h *APIHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.mustUserID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter, err := parseSessionFilter(q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	pageSize := queryInt(q, "limit")
	if pageSize == 0 {
		pageSize = queryInt(q, "pageSize")
	}
	page, err := h.sessions.List(r.Context(), userID, filter, queryInt(q, "page"), pageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ExportSessionsHandler handles GET /api/sessions/export.
func (h *APIHandler) ExportSessionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.mustUserID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	format, err := sessionlog.ParseFormat(q.Get("format"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter, err := parseSessionFilter(q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	file, err := h.sessions.Export(r.Context(), userID, format, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Body)
}

// ArchiveExportHandler handles POST /api/sessions/export/archive.
func (h *APIHandler) ArchiveExportHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.mustUserID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	format, err := sessionlog.ParseFormat(q.Get("format"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter, err := parseSessionFilter(q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	archive, err := h.sessions.ArchiveExport(r.Context(), userID, format, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, archive)
}

// HistoryHandler handles GET /api/sessions/history.
func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.mustUserID(w, r)
	if !ok {
		return
	}

	history, err := h.sessions.ConsistencyHistory(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// DashboardStatsHandler handles GET /api/dashboard/stats.
func (h *APIHandler) DashboardStatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.mustUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.dashboard.GetStats(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
