package server

import (
	"context"
	"errors"
	"net/http"

	"fortify/core/apperr"
	"fortify/core/auth"
)

type contextKey int

const (
	userIDKey contextKey = iota
	requestIDKey
)

// SignupHandler handles POST /api/auth/signup.
func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.Credentials
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.auth.Signup(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": user.ID, "email": user.Email})
}

// LoginHandler handles POST /api/auth/login.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.Credentials
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AuthMiddleware rejects requests without a valid bearer token and stores the caller's id in the context.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearer(r.Header.Get("Authorization"))
		if err != nil {
			msg := "invalid authorization header"
			if errors.Is(err, auth.ErrMissingToken) {
				msg = "authorization header is required"
			}
			h.writeError(w, r, apperr.Unauthenticated(msg))
			return
		}

		claims, err := h.tokens.Parse(token)
		if err != nil {
			h.writeError(w, r, apperr.Unauthenticated("invalid or expired token"))
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext extracts the user ID set by AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok
}

// mustUserID is only called behind AuthMiddleware.
func (h *APIHandler) mustUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apperr.Unauthenticated("authentication required"))
		return 0, false
	}
	return userID, true
}
