package httpapi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// SessionStore 保存/清除 bearer token
type SessionStore interface {
	Login(ctx context.Context, token string) error
	Logout(ctx context.Context) error
}

type SessionHandler struct {
	store  SessionStore
	logger *zap.Logger
}

// NewSessionHandler store 为 nil 时（使用固定 API_TOKEN）登录/登出不可用
func NewSessionHandler(store SessionStore, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// Login POST /console/api/v1/session/login {"token": "..."}
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, Fail("session store not configured"))
		return
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := readBodyJSON(r, 1<<16, &payload); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}
	if strings.TrimSpace(payload.Token) == "" {
		writeJSON(w, http.StatusOK, Fail("token is required"))
		return
	}
	if err := h.store.Login(r.Context(), payload.Token); err != nil {
		h.logger.Error("Login failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to save session"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"logged_in": true}))
}

// Logout POST /console/api/v1/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, Fail("session store not configured"))
		return
	}
	if err := h.store.Logout(r.Context()); err != nil {
		h.logger.Error("Logout failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to clear session"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"logged_in": false}))
}
