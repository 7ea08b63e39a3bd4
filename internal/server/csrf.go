package server

import (
	"crypto/subtle"
	"net/http"
)

// csrf issues the csrftoken cookie to clients that lack one and, when
// enforcement is on, rejects unsafe requests whose X-CSRFToken header does
// not match it.
func (s *Server) csrf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cookieToken string
		if c, err := r.Cookie(CSRFCookieName); err == nil && c.Value != "" {
			cookieToken = c.Value
		} else {
			setCSRFCookie(w, newCSRFToken())
		}

		if s.cfg.CSRFEnforce && !isSafeMethod(r.Method) {
			header := r.Header.Get(CSRFHeaderName)
			if cookieToken == "" || subtle.ConstantTimeCompare([]byte(header), []byte(cookieToken)) != 1 {
				reqLogger(r).Warn().Str("component", "session").Str("path", r.URL.Path).Msg("csrf check failed")
				s.writeError(w, http.StatusForbidden, "CSRF verification failed")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
