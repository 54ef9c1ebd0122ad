package auth

import "github.com/pkg/errors"

var (
	// ErrValidation marks a malformed request (e.g. a bad email address).
	// Reported to the caller, never retried.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidLogin is the generic authentication failure. Signature
	// failures, unknown sessions and wrong-kind tokens all collapse into it
	// so a caller learns nothing about why verification failed.
	ErrInvalidLogin = errors.New("authentication failed")

	// ErrLoginNotApproved means the login request exists but the emailed
	// link has not been followed yet.
	ErrLoginNotApproved = errors.New("login not yet approved")

	// ErrTokenExpired means the session is over; the caller must restart
	// the login flow.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenReplayMismatch means a presented refresh value matched
	// neither the current nor the previous generation. Possible token
	// theft; the stored record is left untouched.
	ErrTokenReplayMismatch = errors.New("unexpected token value")
)
