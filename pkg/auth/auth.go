// Package auth implements the admin login gate: one configured account,
// sessions kept in the state store under an opaque token.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"cilaosgo/pkg/config"
	"cilaosgo/pkg/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSession          = errors.New("no active session")
)

const keyPrefix = "session:"

// Session is an authenticated admin session.
type Session struct {
	Token    string    `json:"token"`
	User     string    `json:"user"`
	Remember bool      `json:"remember"`
	Expires  time.Time `json:"expires"`
}

// Gate checks credentials and tracks sessions.
type Gate struct {
	st          store.ExpiringStateStore
	user        string
	password    string
	sessionTTL  time.Duration
	rememberTTL time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// New creates a gate from the auth config. Without a password every login fails.
func New(st store.ExpiringStateStore, cfg *config.AuthConfig) *Gate {
	g := &Gate{
		st:          st,
		user:        normalizeUser(cfg.User),
		password:    strings.TrimSpace(cfg.Password),
		sessionTTL:  time.Duration(cfg.SessionTTL),
		rememberTTL: time.Duration(cfg.RememberTTL),
		now:         time.Now,
		logger:      slog.With("component", "auth"),
	}
	if g.sessionTTL <= 0 {
		g.sessionTTL = 12 * time.Hour
	}
	if g.rememberTTL < g.sessionTTL {
		g.rememberTTL = g.sessionTTL
	}
	if g.password == "" {
		g.logger.Warn("No admin password configured, login is disabled")
	}
	return g
}

func normalizeUser(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

// Login checks the credentials and opens a session. remember extends its lifetime.
func (g *Gate) Login(ctx context.Context, user, password string, remember bool) (Session, error) {
	u := normalizeUser(user)
	p := strings.TrimSpace(password)
	userOK := subtle.ConstantTimeCompare([]byte(u), []byte(g.user)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(p), []byte(g.password)) == 1
	if g.password == "" || !userOK || !passOK {
		g.logger.Info("Login rejected", "user", u)
		return Session{}, ErrInvalidCredentials
	}

	ttl := g.sessionTTL
	if remember {
		ttl = g.rememberTTL
	}
	s := Session{
		Token:    uuid.NewString(),
		User:     g.user,
		Remember: remember,
		Expires:  g.now().Add(ttl).UTC().Truncate(time.Second),
	}
	data, err := json.Marshal(s)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}
	if err := g.st.SetStateUntil(ctx, keyPrefix+s.Token, string(data), s.Expires); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	g.logger.Info("Admin logged in", "remember", remember, "expires", s.Expires)
	return s, nil
}

// Validate returns the live session behind token.
func (g *Gate) Validate(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	raw, ok := g.st.GetState(ctx, keyPrefix+token)
	if !ok {
		return Session{}, ErrNoSession
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		g.logger.Warn("Dropping unreadable session", "error", err)
		_ = g.st.DeleteState(ctx, keyPrefix+token)
		return Session{}, ErrNoSession
	}
	if !g.now().Before(s.Expires) {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// Logout ends the session. Unknown tokens are not an error.
func (g *Gate) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := g.st.DeleteState(ctx, keyPrefix+token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
