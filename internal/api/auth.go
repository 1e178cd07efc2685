package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"cilaosgo/pkg/auth"
)

type sessionKey struct{}

// AuthHandler exposes the admin gate and guards admin routes.
type AuthHandler struct {
	gate   *auth.Gate
	cookie string
	secure bool
}

// NewAuthHandler creates an AuthHandler. secure marks the cookie HTTPS-only.
func NewAuthHandler(g *auth.Gate, cookieName string, secure bool) *AuthHandler {
	if cookieName == "" {
		cookieName = "cilaos_session"
	}
	return &AuthHandler{gate: g, cookie: cookieName, secure: secure}
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// SessionResponse describes the caller's session.
type SessionResponse struct {
	User     string    `json:"user"`
	Remember bool      `json:"remember"`
	Expires  time.Time `json:"expires"`
}

// HandleLogin checks credentials and sets the session cookie.
// POST /api/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s, err := h.gate.Login(r.Context(), req.User, req.Password, req.Remember)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		slog.Error("Login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	c := &http.Cookie{
		Name:     h.cookie,
		Value:    s.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
	// Without remember-me the cookie lives as long as the browser session.
	if s.Remember {
		c.Expires = s.Expires
	}
	http.SetCookie(w, c)
	writeJSON(w, http.StatusOK, SessionResponse{User: s.User, Remember: s.Remember, Expires: s.Expires})
}

// HandleSession reports the current session.
// GET /api/session
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{User: s.User, Remember: s.Remember, Expires: s.Expires})
}

// HandleLogout ends the session and clears the cookie.
// POST /api/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.cookie); err == nil {
		if err := h.gate.Logout(r.Context(), c.Value); err != nil {
			slog.Error("Logout failed", "error", err)
			writeError(w, http.StatusInternalServerError, "logout failed")
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Require rejects requests without a live session.
func (h *AuthHandler) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := h.session(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
	})
}

func (h *AuthHandler) session(r *http.Request) (auth.Session, error) {
	c, err := r.Cookie(h.cookie)
	if err != nil {
		return auth.Session{}, auth.ErrNoSession
	}
	return h.gate.Validate(r.Context(), c.Value)
}

// SessionFrom returns the admin session attached by Require.
func SessionFrom(ctx context.Context) (auth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(auth.Session)
	return s, ok
}
