// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/syncplayer/internal/logging"
)

// CSRF protection errors.
var (
	// ErrSessionMissing indicates the request carries no session cookie.
	ErrSessionMissing = errors.New("session missing")

	// ErrCSRFTokenMissing indicates no CSRF token was provided.
	ErrCSRFTokenMissing = errors.New("CSRF token missing")

	// ErrCSRFTokenInvalid indicates the token does not match the session.
	ErrCSRFTokenInvalid = errors.New("CSRF token invalid")
)

// CSRFConfig holds configuration for session-bound CSRF protection.
type CSRFConfig struct {
	// SessionCookieName names the session cookie (default "sync_session").
	SessionCookieName string

	// HeaderName is the request header carrying the token (default
	// "x-csrf-token"; header lookup is case-insensitive).
	HeaderName string

	// FormFieldName is the form fallback for the token (default "_csrf").
	FormFieldName string

	// CookieSecure sets the Secure flag on the session cookie. Leave false
	// for plain-HTTP LAN deployments or the browser drops the cookie.
	CookieSecure bool

	// SessionTTL is the session cookie and token lifetime (default 24h).
	SessionTTL time.Duration

	// TokenLength is the byte length of session IDs and tokens (default 32).
	TokenLength int

	// ExemptPaths skip protection entirely, including session issuance.
	ExemptPaths []string
}

// DefaultCSRFConfig returns the defaults used by the server.
func DefaultCSRFConfig() *CSRFConfig {
	return &CSRFConfig{
		SessionCookieName: "sync_session",
		HeaderName:        "x-csrf-token",
		FormFieldName:     "_csrf",
		CookieSecure:      false,
		SessionTTL:        24 * time.Hour,
		TokenLength:       32,
	}
}

// CSRF implements session-bound CSRF protection. Each browser gets an opaque
// sync_session cookie (HttpOnly, SameSite=Strict) and the server keeps one
// CSRF token per live session. Mutating requests must echo that token in the
// x-csrf-token header or a _csrf form field; the token itself never travels
// in a cookie, so it cannot be replayed from another session.
//
// Sessions live in memory only. Viewers are unauthenticated, so losing them
// on restart costs one silent re-issue on the next page load.
type CSRF struct {
	config   *CSRFConfig
	sessions *sessionStore
}

type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionData
}

type sessionData struct {
	token     string
	expiresAt time.Time
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*sessionData)}
}

// NewCSRF creates the CSRF guard. A nil config selects the defaults.
func NewCSRF(config *CSRFConfig) *CSRF {
	if config == nil {
		config = DefaultCSRFConfig()
	}
	if config.SessionCookieName == "" {
		config.SessionCookieName = "sync_session"
	}
	if config.HeaderName == "" {
		config.HeaderName = "x-csrf-token"
	}
	if config.FormFieldName == "" {
		config.FormFieldName = "_csrf"
	}
	if config.SessionTTL == 0 {
		config.SessionTTL = 24 * time.Hour
	}
	if config.TokenLength == 0 {
		config.TokenLength = 32
	}

	return &CSRF{
		config:   config,
		sessions: newSessionStore(),
	}
}

// Protect validates the session-bound token on state-changing requests.
// Safe methods pass through but still get a session issued, so the first
// page load already primes the cookie the later POST will need.
func (c *CSRF) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.isExemptPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if isSafeMethod(r.Method) {
			c.EnsureSession(w, r)
			next.ServeHTTP(w, r)
			return
		}

		if err := c.validate(r); err != nil {
			logging.Warn().
				Err(err).
				Str("path", r.URL.Path).
				Str("method", r.Method).
				Msg("CSRF validation failed")
			writeCSRFError(w, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// EnsureSession returns the request's live session ID, issuing a fresh
// session cookie when the request has none or it expired.
func (c *CSRF) EnsureSession(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(c.config.SessionCookieName); err == nil && cookie.Value != "" {
		if c.sessions.alive(cookie.Value) {
			return cookie.Value
		}
	}

	id, err := randomToken(c.config.TokenLength)
	if err != nil {
		logging.Error().Err(err).Msg("CSRF: failed to generate session ID")
		return ""
	}
	token, err := randomToken(c.config.TokenLength)
	if err != nil {
		logging.Error().Err(err).Msg("CSRF: failed to generate token")
		return ""
	}

	c.sessions.put(id, token, c.config.SessionTTL)
	c.setSessionCookie(w, id)
	return id
}

// Token returns the CSRF token for the request's session, creating the
// session as needed. Expired sessions get a new token; live ones keep
// theirs, so parallel tabs stay consistent.
func (c *CSRF) Token(w http.ResponseWriter, r *http.Request) string {
	id := c.EnsureSession(w, r)
	if id == "" {
		return ""
	}
	return c.sessions.token(id)
}

// Rotate replaces the session's token, invalidating the previous one.
func (c *CSRF) Rotate(w http.ResponseWriter, r *http.Request) string {
	id := c.EnsureSession(w, r)
	if id == "" {
		return ""
	}

	token, err := randomToken(c.config.TokenLength)
	if err != nil {
		logging.Error().Err(err).Msg("CSRF: failed to rotate token")
		return ""
	}
	c.sessions.put(id, token, c.config.SessionTTL)
	return token
}

// validate checks a state-changing request against its session's token.
func (c *CSRF) validate(r *http.Request) error {
	cookie, err := r.Cookie(c.config.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return ErrSessionMissing
	}

	expected := c.sessions.token(cookie.Value)
	if expected == "" {
		return ErrSessionMissing
	}

	provided := c.tokenFromRequest(r)
	if provided == "" {
		return ErrCSRFTokenMissing
	}

	if subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
		return ErrCSRFTokenInvalid
	}

	return nil
}

// tokenFromRequest extracts the token from the header or the form fallback.
func (c *CSRF) tokenFromRequest(r *http.Request) string {
	if token := r.Header.Get(c.config.HeaderName); token != "" {
		return token
	}

	if r.PostForm == nil {
		//nolint:errcheck // best effort form parsing
		r.ParseForm()
	}
	return r.PostFormValue(c.config.FormFieldName)
}

func (c *CSRF) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.config.SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(c.config.SessionTTL.Seconds()),
		Secure:   c.config.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c *CSRF) isExemptPath(path string) bool {
	for _, exempt := range c.config.ExemptPaths {
		if strings.HasPrefix(path, exempt) {
			return true
		}
	}
	return false
}

// isSafeMethod reports methods that never change state (RFC 7231).
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func writeCSRFError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)

	var msg string
	switch {
	case errors.Is(err, ErrSessionMissing):
		msg = "session missing"
	case errors.Is(err, ErrCSRFTokenMissing):
		msg = "CSRF token missing"
	case errors.Is(err, ErrCSRFTokenInvalid):
		msg = "CSRF token invalid"
	default:
		msg = "CSRF validation failed"
	}

	//nolint:errcheck // error response
	w.Write([]byte(`{"error":"` + msg + `"}`))
}

// randomToken generates a cryptographically secure URL-safe token.
func randomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// Session store methods.

func (s *sessionStore) put(id, token string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = &sessionData{
		token:     token,
		expiresAt: time.Now().Add(ttl),
	}
}

func (s *sessionStore) alive(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.sessions[id]
	return ok && time.Now().Before(data.expiresAt)
}

func (s *sessionStore) token(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.sessions[id]
	if !ok || time.Now().After(data.expiresAt) {
		return ""
	}
	return data.token
}

func (s *sessionStore) cleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	now := time.Now()
	for id, data := range s.sessions {
		if now.After(data.expiresAt) {
			delete(s.sessions, id)
			count++
		}
	}
	return count
}

// StartCleanupRoutine sweeps expired sessions on an interval until the
// returned channel is closed.
func (c *CSRF) StartCleanupRoutine(interval time.Duration) chan struct{} {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sessions.cleanupExpired()
			case <-done:
				return
			}
		}
	}()
	return done
}
