package sessions

import "time"

// LoginToken is a pending login request, created when a user asks to log in
// by email and approved exactly once by following the emailed link. Its ID
// doubles as the stable session identifier once the login completes.
type LoginToken struct {
	ID        string    // Session identifier, carried in the login cookie
	UserID    string    // Owner of the login request
	Value     string    // bcrypt hash of the emailed secret
	Created   time.Time
	Expires   time.Time
	Approved  bool   // Flipped once by the approval action
	IP        string // Client information of the login request
	UserAgent string
}

// RefreshToken is the server-side record of a session's rotating refresh
// credential. Value is always the most recently issued generation and
// LastValue the one immediately prior; together they form the
// two-generation replay window. The record is upserted on every rotation
// and never deleted in normal operation.
type RefreshToken struct {
	LoginTokenID string // Session identifier (login token that started the session)
	UserID       string
	Value        string // Current signed refresh token
	LastValue    string // Immediately previous generation, empty on first issue
	Created      time.Time
	Expires      time.Time
	LastActive   time.Time
	IP           string // Client information of the last rotation
	UserAgent    string
}
