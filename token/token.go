package token

import "time"

// Kind discriminates the context a signed token may be used in. The kind is
// embedded in the signed payload so a verifier can reject a token presented
// in the wrong context (e.g. a login token used where a refresh token is
// expected).
type Kind string

const (
	KindLogin   Kind = "login"
	KindRefresh Kind = "refresh"
	KindAccess  Kind = "access"
)

// Claim names used across all token kinds.
const (
	ClaimKind         = "kind"
	ClaimUserID       = "sub"
	ClaimSessionID    = "sid"
	ClaimAllowedRoles = "allowed_roles"
	ClaimDefaultRole  = "default_role"
)

// SignedToken is an encoded token together with the expiry embedded in it.
// The encoded value is opaque to clients; they only round-trip it.
type SignedToken struct {
	Encoded string    `json:"encoded"`
	Expires time.Time `json:"expires"`
}
