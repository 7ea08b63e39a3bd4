package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// CookieName is the name of the session cookie
	CookieName = "cryptosight_session"
	// CookieMaxAge is the duration the cookie is valid (15 minutes)
	CookieMaxAge = 15 * time.Minute

	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"
	csrfCookieAge  = 365 * 24 * time.Hour
)

// SetSessionCookie sets an HTTP-only session cookie with 15-minute expiration
func SetSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(CookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// setCSRFCookie issues the double-submit token. Clients read it back, so it
// is not HttpOnly.
func setCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(csrfCookieAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

func newSessionID() string {
	return uuid.NewString()
}

// getSessionID returns the session cookie value when it is a well-formed id.
func getSessionID(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

func newCSRFToken() string {
	return uuid.New().String() + uuid.New().String()
}
