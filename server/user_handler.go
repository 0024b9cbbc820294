package server

import (
	"net/http"
	"time"
)

type userProfile struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// GetUserProfileHandler 获取当前用户资料
func (h *APIHandler) GetUserProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.mustUserID(w, r)
	if !ok {
		return
	}

	user, err := h.auth.Profile(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userProfile{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt})
}
