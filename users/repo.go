package users

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a user lookup matches nothing.
var ErrNotFound = errors.New("user not found")

// UserRepo manages user persistence. Users are created lazily on their
// first login request: UpsertByEmail returns the existing user for a known
// email and creates one otherwise.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpsertByEmail(ctx context.Context, email string) (*User, error)
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}
