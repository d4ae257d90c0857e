// Package handler exposes the Identity Store's auth endpoints (§6).
package handler

import (
	"net/http"
	"time"

	"github.com/fieldpunch/attendance-backend/internal/identity/service"
	"github.com/fieldpunch/attendance-backend/internal/rbac"
	fpErrors "github.com/fieldpunch/attendance-backend/pkg/errors"
	"github.com/fieldpunch/attendance-backend/pkg/httputil"
)

const tokenCookieName = "token"

// AuthHandler serves /auth/login, /auth/supervisor-login, /auth/me,
// /auth/logout.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Error(w, fpErrors.BadRequest("email and password are required"))
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	setTokenCookie(w, session.Token)
	httputil.JSON(w, http.StatusOK, session)
}

// SupervisorLogin handles POST /auth/supervisor-login.
func (h *AuthHandler) SupervisorLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Error(w, fpErrors.BadRequest("email and password are required"))
		return
	}

	session, err := h.auth.SupervisorLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	setTokenCookie(w, session.Token)
	httputil.JSON(w, http.StatusOK, session)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := rbac.UserID(r.Context())
	if userID == "" {
		httputil.Error(w, fpErrors.Unauthorized("no authenticated user"))
		return
	}

	session, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, session)
}

// Logout handles POST /auth/logout: clears the token cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int((24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
