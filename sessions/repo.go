package sessions

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a token record lookup matches nothing.
	ErrNotFound = errors.New("token record not found")

	// ErrValueConflict is returned by UpsertRefreshToken when the stored
	// value no longer matches the expected one, i.e. a concurrent rotation
	// for the same session won the race.
	ErrValueConflict = errors.New("refresh token value conflict")

	// ErrStorageUnavailable wraps transient storage failures (timeouts,
	// connection errors). It is never a protocol-state failure; callers may
	// retry the whole rotation call.
	ErrStorageUnavailable = errors.New("session storage unavailable")
)

// Repo is the persistence contract for login-token and refresh-token
// records. Implementations must make UpsertRefreshToken conditional on the
// previously read value so two concurrent rotations for the same session
// cannot both succeed.
type Repo interface {
	// UpsertLoginToken stores a pending login request, replacing any
	// existing request for the same user.
	UpsertLoginToken(ctx context.Context, token *LoginToken) error

	GetLoginToken(ctx context.Context, id string) (*LoginToken, error)

	GetLoginTokenByUser(ctx context.Context, userID string) (*LoginToken, error)

	// ApproveLoginToken flips the approved flag. Idempotent.
	ApproveLoginToken(ctx context.Context, id string) error

	// DeleteLoginToken removes a consumed login request. Deleting an absent
	// record is not an error.
	DeleteLoginToken(ctx context.Context, id string) error

	GetRefreshToken(ctx context.Context, loginTokenID string) (*RefreshToken, error)

	// UpsertRefreshToken persists record if and only if the currently
	// stored value for the session equals expectedValue (empty string when
	// no record should exist yet). Returns ErrValueConflict otherwise.
	UpsertRefreshToken(ctx context.Context, record *RefreshToken, expectedValue string) error
}
