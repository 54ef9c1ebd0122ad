package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-magic-auth/internal/config"
	"github.com/jrsteele09/go-magic-auth/users"
)

// Factory builds the three token kinds with their fixed claim shapes.
type Factory struct {
	signer     Signer
	loginTTL   time.Duration
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewFactory creates a token factory with expiries taken from cfg.
func NewFactory(signer Signer, cfg config.AuthConfig) *Factory {
	return &Factory{
		signer:     signer,
		loginTTL:   cfg.GetLoginTokenExpiry(),
		accessTTL:  cfg.GetAccessTokenExpiry(),
		refreshTTL: cfg.GetRefreshTokenExpiry(),
	}
}

// BuildLoginToken signs a token identifying a pending login session.
// It grants no roles.
func (f *Factory) BuildLoginToken(sessionID string) (SignedToken, error) {
	claims := jwt.MapClaims{
		ClaimSessionID: sessionID,
	}
	return f.signer.Sign(claims, KindLogin, f.loginTTL)
}

// BuildAccessToken signs a short-lived, stateless, role-bearing token.
func (f *Factory) BuildAccessToken(sessionID string, user *users.User) (SignedToken, error) {
	claims := jwt.MapClaims{
		ClaimUserID:       user.ID,
		ClaimSessionID:    sessionID,
		ClaimAllowedRoles: AllowedRoles(user),
		ClaimDefaultRole:  user.DefaultRole,
		"jti":             uuid.New().String(),
	}
	return f.signer.Sign(claims, KindAccess, f.accessTTL)
}

// BuildRefreshToken signs a long-lived token granting only minimal
// self-access plus the session identity. The jti claim makes every
// generation distinct even within the same signing second.
func (f *Factory) BuildRefreshToken(sessionID string, user *users.User) (SignedToken, error) {
	claims := jwt.MapClaims{
		ClaimUserID:       user.ID,
		ClaimSessionID:    sessionID,
		ClaimAllowedRoles: []string{users.RoleSelf},
		ClaimDefaultRole:  users.RoleSelf,
		"jti":             uuid.New().String(),
	}
	return f.signer.Sign(claims, KindRefresh, f.refreshTTL)
}

// Verify checks an encoded token and that it carries the expected kind.
func (f *Factory) Verify(encoded string, kind Kind) (jwt.MapClaims, error) {
	claims, err := f.signer.Verify(encoded)
	if err != nil {
		return nil, err
	}
	tokenKind, _ := claims[ClaimKind].(string)
	if Kind(tokenKind) != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// SessionID extracts the session identity claim from verified claims.
func SessionID(claims jwt.MapClaims) (string, error) {
	sessionID, _ := claims[ClaimSessionID].(string)
	if sessionID == "" {
		return "", errors.Wrap(ErrInvalidSignature, "[SessionID] missing session claim")
	}
	return sessionID, nil
}

// AllowedRoles resolves the role list for a user: assigned roles in
// assignment order, then the baseline roles, then the default role if
// absent, deduplicated keeping first occurrence.
func AllowedRoles(user *users.User) []string {
	raw := make([]string, 0, len(user.Roles)+len(users.BaselineRoles)+1)
	raw = append(raw, user.Roles...)
	raw = append(raw, users.BaselineRoles...)
	raw = append(raw, user.DefaultRole)

	seen := make(map[string]struct{}, len(raw))
	resolved := make([]string, 0, len(raw))
	for _, role := range raw {
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		resolved = append(resolved, role)
	}
	return resolved
}
