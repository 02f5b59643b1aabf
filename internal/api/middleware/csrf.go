package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"sync"
	"time"
)

const (
	csrfTokenLength = 32
	csrfCookieName  = "csrf_token"
	csrfHeaderName  = "X-CSRF-Token"
	csrfTokenExpiry = 24 * time.Hour
)

type csrfToken struct {
	value     string
	expiresAt time.Time
}

// CSRFStore keeps one token per browser session in memory.
type CSRFStore struct {
	tokens map[string]csrfToken
	mu     sync.RWMutex
}

func NewCSRFStore() *CSRFStore {
	return &CSRFStore{
		tokens: make(map[string]csrfToken),
	}
}

// Sweep removes expired tokens.
func (s *CSRFStore) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sessionID, token := range s.tokens {
		if now.After(token.expiresAt) {
			delete(s.tokens, sessionID)
		}
	}
}

// GetOrCreate returns the session's token, minting a new one when missing or expired.
func (s *CSRFStore) GetOrCreate(sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.tokens[sessionID]; ok && time.Now().Before(token.expiresAt) {
		return token.value, nil
	}

	b := make([]byte, csrfTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	value := base64.RawURLEncoding.EncodeToString(b)
	s.tokens[sessionID] = csrfToken{
		value:     value,
		expiresAt: time.Now().Add(csrfTokenExpiry),
	}

	return value, nil
}

func (s *CSRFStore) Validate(sessionID, provided string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[sessionID]
	if !ok || time.Now().After(token.expiresAt) {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(token.value), []byte(provided)) == 1
}

// CSRF protects requests authenticated by the session cookie. Requests that
// carry the token in a header are not exposed to cross-site submission and
// pass through.
func CSRF(store *CSRFStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := getSessionID(r)

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				if sessionID != "" {
					ensureCSRFCookie(w, r, store, sessionID)
				}
				next.ServeHTTP(w, r)
				return
			}

			if sessionID == "" || r.Header.Get("Authorization") != "" || r.Header.Get("X-Auth-Token") != "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get(csrfHeaderName)
			if provided == "" {
				writeError(w, http.StatusForbidden, "CSRF token missing")
				return
			}

			if !store.Validate(sessionID, provided) {
				writeError(w, http.StatusForbidden, "Invalid CSRF token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, store *CSRFStore, sessionID string) {
	if _, err := r.Cookie(csrfCookieName); err == nil {
		return
	}

	token, err := store.GetOrCreate(sessionID)
	if err != nil {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false, // read by the browser client and echoed in X-CSRF-Token
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(csrfTokenExpiry.Seconds()),
	})
}

// getSessionID derives a session key from the token cookie.
func getSessionID(r *http.Request) string {
	cookie, err := r.Cookie(TokenCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}
	if len(cookie.Value) > 32 {
		return cookie.Value[len(cookie.Value)-32:]
	}
	return cookie.Value
}
