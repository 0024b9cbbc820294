package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"fortify/config"
	"fortify/core/apperr"
	"fortify/core/auth"
	"fortify/core/catalog"
	"fortify/core/dashboard"
	"fortify/core/routine"
	"fortify/core/sessionlog"
	"fortify/core/tempo"
	"fortify/logger"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// APIHandler 处理所有API请求
type APIHandler struct {
	auth      *auth.Service
	tokens    *auth.TokenManager
	catalog   *catalog.Service
	sessions  *sessionlog.Service
	tempo     *tempo.Engine
	routines  *routine.Service
	dashboard *dashboard.Service
	cfg       *config.Config
	archiving bool
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Message string              `json:"message"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("[HTTP] 写入响应失败", logger.ErrorField(err))
	}
}

// writeError is the single place business errors become HTTP responses.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		writeJSON(w, status, errorBody{Message: appErr.Message, Errors: appErr.Fields})
		return
	}

	logger.Error("[HTTP] 请求处理失败",
		logger.String("method", r.Method),
		logger.String("path", r.URL.Path),
		logger.String("requestId", requestIDFrom(r.Context())),
		logger.ErrorField(err))

	body := errorBody{Message: "internal server error"}
	if !h.cfg.IsProduction() {
		body.Message = err.Error()
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body: " + err.Error())
	}
	return nil
}

// pathID parses a positive integer path variable. Malformed ids are reported as not found.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NotFound("resource not found")
	}
	return id, nil
}
