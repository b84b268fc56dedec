package handler

import (
	"net/http"
	"strings"

	"github.com/dreschagin/water-quality-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

const authCookieMaxAge = 12 * 60 * 60

type AuthAPIHandler struct {
	authConfig middleware.AuthConfig
	logger     *logger.Logger
}

type authLoginRequest struct {
	Token string `json:"token" validate:"required,max=512"`
}

func NewAuthAPIHandler(authConfig middleware.AuthConfig, log *logger.Logger) *AuthAPIHandler {
	return &AuthAPIHandler{
		authConfig: authConfig,
		logger:     log,
	}
}

// Login обменивает токен на cookie, чтобы браузер мог открыть WebSocket
func (h *AuthAPIHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	if !h.authConfig.Enabled {
		middleware.WriteJSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"auth_enabled": false,
		})
		return
	}

	var req authLoginRequest
	if err := decodeJSON(w, r, 1<<10, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	token := strings.TrimSpace(req.Token)
	if !middleware.TokenMatches(token, h.authConfig.BearerToken) {
		h.logger.Warn("Auth login failed", "remote_addr", r.RemoteAddr)
		if h.authConfig.OnFailure != nil {
			h.authConfig.OnFailure()
		}
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid token", "unauthorized")
		return
	}

	middleware.WriteAuthCookie(w, token, r.TLS != nil, authCookieMaxAge)
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"auth_enabled": true,
	})
}

func (h *AuthAPIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	middleware.ClearAuthCookie(w, r.TLS != nil)
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
	})
}

func (h *AuthAPIHandler) Status(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	err := middleware.ValidateRequestAuth(r, h.authConfig)
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"auth_enabled":   h.authConfig.Enabled,
		"authenticated":  err == nil,
		"cookie_present": hasAuthCookie(r),
	})
}

func hasAuthCookie(r *http.Request) bool {
	c, err := r.Cookie(middleware.AuthCookieName)
	if err != nil {
		return false
	}
	return strings.TrimSpace(c.Value) != ""
}
