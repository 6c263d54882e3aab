package http

import (
	"net/http"
	"net/url"

	"github.com/PykeW/update-all/internal/application"
)

type dingtalkLoginRequest struct {
	Code string `json:"code"`
}

type localLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (h *Handler) dingtalkConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := h.service.DingTalkConfig()
	writeSuccess(w, http.StatusOK, map[string]any{
		"app_id":       cfg.AppID,
		"redirect_uri": cfg.RedirectURI,
	})
}

// dingtalkCallback is the browser leg of the SSO dance: DingTalk redirects
// here with the authorization code, and the portal bounces it to the frontend
// login page which then posts it to /dingtalk/login.
func (h *Handler) dingtalkCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "authorization code is required")
		return
	}
	cfg := h.service.DingTalkConfig()
	target := cfg.FrontendURL + "/login/callback?code=" + url.QueryEscape(code)
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) dingtalkLogin(w http.ResponseWriter, r *http.Request) {
	var req dingtalkLoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "dingtalk_login", err)
		return
	}

	res, err := h.service.DingTalkLogin(r.Context(), req.Code)
	if err != nil {
		writeMappedError(r.Context(), w, "dingtalk_login", err)
		return
	}
	writeLoginSuccess(w, res)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req localLoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}

	res, err := h.service.LocalLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		writeMappedError(r.Context(), w, "login", err)
		return
	}
	writeLoginSuccess(w, res)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "refresh", err)
		return
	}

	tokens, err := h.service.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		writeMappedError(r.Context(), w, "refresh", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"access_token":       tokens.AccessToken,
		"refresh_token":      tokens.RefreshToken,
		"access_expires_at":  tokens.AccessExpiresAt,
		"refresh_expires_at": tokens.RefreshExpiresAt,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	// Body is optional; logout with just the bearer token is valid.
	_ = decodeBody(r, &req)

	raw, _ := tokenFromContext(r)
	h.service.Logout(r.Context(), raw, req.RefreshToken)
	writeMessage(w, http.StatusOK, "logged out")
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	user, err := h.service.Profile(r.Context(), actor)
	if err != nil {
		writeMappedError(r.Context(), w, "profile", err)
		return
	}
	writeSuccess(w, http.StatusOK, user)
}

func writeLoginSuccess(w http.ResponseWriter, res application.LoginResult) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"access_token":       res.Tokens.AccessToken,
		"refresh_token":      res.Tokens.RefreshToken,
		"access_expires_at":  res.Tokens.AccessExpiresAt,
		"refresh_expires_at": res.Tokens.RefreshExpiresAt,
		"user":               res.User,
	})
}
