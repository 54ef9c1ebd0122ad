package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidSignature is returned for any token that fails verification
	// for a reason other than expiry. Callers surface it as a generic
	// authentication failure so verification gives no oracle.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrExpired is returned for a well-signed token whose expiry is in the past.
	ErrExpired = errors.New("token expired")

	// ErrWrongKind is returned when a token is presented in the wrong context.
	ErrWrongKind = errors.New("unexpected token kind")
)

// Signer signs and verifies expiring tokens carrying opaque claims.
// Verification is pure: no side effects, no mutation.
type Signer interface {
	// Sign embeds the kind and an expiration of now+ttl into claims and signs them.
	Sign(claims jwt.MapClaims, kind Kind, ttl time.Duration) (SignedToken, error)

	// Verify parses and validates an encoded token, returning its claims.
	Verify(encoded string) (jwt.MapClaims, error)
}

// HMACsigner implements Signer using symmetric HMAC-SHA256
type HMACsigner struct {
	secret  []byte
	nowFunc func() time.Time
}

type HMACSignerOption func(*HMACsigner)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) HMACSignerOption {
	return func(h *HMACsigner) {
		h.nowFunc = now
	}
}

// NewHMACSigner creates a new HMAC signer with the given secret
func NewHMACSigner(secret string, options ...HMACSignerOption) *HMACsigner {
	h := &HMACsigner{
		secret:  []byte(secret),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

func (h *HMACsigner) Sign(claims jwt.MapClaims, kind Kind, ttl time.Duration) (SignedToken, error) {
	now := h.nowFunc()
	expires := now.Add(ttl)

	tokenClaims := jwt.MapClaims{}
	for k, v := range claims {
		tokenClaims[k] = v
	}
	tokenClaims[ClaimKind] = string(kind)
	tokenClaims["iat"] = now.Unix()
	tokenClaims["exp"] = expires.Unix()

	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims).SignedString(h.secret)
	if err != nil {
		return SignedToken{}, errors.Wrap(err, "[HMACsigner.Sign] failed to sign token")
	}

	return SignedToken{Encoded: encoded, Expires: expires}, nil
}

func (h *HMACsigner) Verify(encoded string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(encoded, h.verificationKey, jwt.WithTimeFunc(h.nowFunc))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidSignature
	}
	if !parsed.Valid {
		return nil, ErrInvalidSignature
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}

func (h *HMACsigner) verificationKey(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return h.secret, nil
}
