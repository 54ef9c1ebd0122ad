package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-magic-auth/auth"
	"github.com/jrsteele09/go-magic-auth/sessions"
	"github.com/jrsteele09/go-magic-auth/token"
)

const maxRequestBody = 4 * 1024

type loginRequest struct {
	Email string `json:"email"`
}

type errorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: true, Message: message})
}

// writeServiceError maps service errors onto HTTP statuses. Protocol
// failures are the caller's fault and come back as 400 with the error
// text; storage outages become 503; anything else is a 500 and goes to
// Sentry.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrValidation),
		errors.Is(err, auth.ErrInvalidLogin),
		errors.Is(err, auth.ErrLoginNotApproved),
		errors.Is(err, auth.ErrTokenExpired):
		writeError(w, http.StatusBadRequest, errors.Cause(err).Error())
	case errors.Is(err, auth.ErrTokenReplayMismatch):
		log.Warn().Str("path", r.URL.Path).Str("ip", clientFromRequest(r).IP).Msg("refresh token replay mismatch")
		writeError(w, http.StatusBadRequest, errors.Cause(err).Error())
	case errors.Is(err, sessions.ErrStorageUnavailable):
		sentry.CaptureException(err)
		log.Error().Err(err).Str("path", r.URL.Path).Msg("storage unavailable")
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		sentry.CaptureException(err)
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func clientFromRequest(r *http.Request) auth.Client {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	} else if idx := strings.Index(ip, ","); idx != -1 {
		ip = strings.TrimSpace(ip[:idx])
	}
	return auth.Client{IP: ip, UserAgent: r.UserAgent()}
}

// LoginHandler starts a passwordless login. The login token cookie it sets
// is what ConfirmHandler later exchanges for the session credentials.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := s.auth.Login(r.Context(), req.Email, clientFromRequest(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		s.SetAuthCookie(w, r, result.Cookie.Encoded, result.Cookie.Expires)
		writeJSON(w, http.StatusOK, map[string]any{
			"error": false,
			"email": result.Email,
		})
	}
}

// ApproveHandler is the target of the emailed confirmation link.
func (s *Server) ApproveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := r.URL.Query().Get("token")
		userID := r.URL.Query().Get("userId")

		if err := s.auth.Approve(r.Context(), userID, secret, clientFromRequest(r)); err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"error":   false,
			"message": "login approved, return to your original window",
		})
	}
}

// ConfirmHandler completes an approved login. The original window polls it
// until approval happens; before then it answers 400 with the
// not-yet-approved message.
func (s *Server) ConfirmHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookieValue := s.GetAuthCookie(r)
		if cookieValue == "" {
			writeError(w, http.StatusBadRequest, errors.Cause(auth.ErrInvalidLogin).Error())
			return
		}

		result, err := s.auth.Confirm(r.Context(), cookieValue, clientFromRequest(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		s.SetAuthCookie(w, r, result.Cookie.Encoded, result.Cookie.Expires)
		writeJSON(w, http.StatusOK, map[string]any{
			"error":       false,
			"accessToken": result.AccessToken,
		})
	}
}

// RefreshHandler rotates the refresh credential and returns a fresh access
// token.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookieValue := s.GetAuthCookie(r)
		if cookieValue == "" {
			writeError(w, http.StatusBadRequest, errors.Cause(auth.ErrInvalidLogin).Error())
			return
		}

		result, err := s.auth.Refresh(r.Context(), cookieValue, clientFromRequest(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		s.SetAuthCookie(w, r, result.Cookie.Encoded, result.Cookie.Expires)
		writeJSON(w, http.StatusOK, map[string]any{
			"error":       false,
			"accessToken": result.AccessToken,
		})
	}
}

// LogoutHandler clears the auth cookie. The server-side refresh record is
// left to expire; without the cookie it cannot be presented again.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.ClearAuthCookie(w, r)
		writeJSON(w, http.StatusOK, map[string]any{"error": false})
	}
}

// MeHandler verifies a bearer access token and echoes its identity claims.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		encoded, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || encoded == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.tokens.Verify(encoded, token.KindAccess)
		if err != nil {
			if errors.Is(err, token.ErrExpired) {
				writeError(w, http.StatusUnauthorized, errors.Cause(auth.ErrTokenExpired).Error())
				return
			}
			writeError(w, http.StatusUnauthorized, errors.Cause(auth.ErrInvalidLogin).Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"error":        false,
			"userId":       claims[token.ClaimUserID],
			"sessionId":    claims[token.ClaimSessionID],
			"allowedRoles": claims[token.ClaimAllowedRoles],
			"defaultRole":  claims[token.ClaimDefaultRole],
		})
	}
}
