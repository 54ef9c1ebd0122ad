package server

import (
	"net/http"
	"time"
)

// SetAuthCookie writes the signed credential (login or refresh token) into
// the HTTP-only auth cookie.
func (s *Server) SetAuthCookie(w http.ResponseWriter, r *http.Request, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetAuthCookieName(),
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookie expires the auth cookie immediately.
func (s *Server) ClearAuthCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetAuthCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

// GetAuthCookie returns the auth cookie value, or "" when absent.
func (s *Server) GetAuthCookie(r *http.Request) string {
	cookie, err := r.Cookie(s.config.GetAuthCookieName())
	if err != nil {
		return ""
	}
	return cookie.Value
}
