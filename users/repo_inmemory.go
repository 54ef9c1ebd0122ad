package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ UserRepo = (*InMemoryUserRepo)(nil)

// InMemoryUserRepo is an in-memory implementation of UserRepo.
type InMemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string // lowercased email -> user ID
	nowFunc func() time.Time
}

// NewInMemoryUserRepo creates a new in-memory user repository.
func NewInMemoryUserRepo() *InMemoryUserRepo {
	return &InMemoryUserRepo{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
		nowFunc: time.Now,
	}
}

func (r *InMemoryUserRepo) GetByID(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *InMemoryUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *r.byID[id]
	return &copied, nil
}

func (r *InMemoryUserRepo) UpsertByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lowered := strings.ToLower(email)
	if id, ok := r.byEmail[lowered]; ok {
		copied := *r.byID[id]
		return &copied, nil
	}

	user := &User{
		ID:          uuid.New().String(),
		Email:       email,
		DefaultRole: RoleUser,
		Created:     r.nowFunc(),
	}
	r.byID[user.ID] = user
	r.byEmail[lowered] = user.ID

	copied := *user
	return &copied, nil
}

func (r *InMemoryUserRepo) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	user.LastLogin = at
	return nil
}

// Upsert stores a fully populated user, replacing any existing record.
// Primarily used by tests to seed users with assigned roles.
func (r *InMemoryUserRepo) Upsert(user *User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *user
	r.byID[copied.ID] = &copied
	r.byEmail[strings.ToLower(copied.Email)] = copied.ID
}
