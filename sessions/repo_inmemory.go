package sessions

import (
	"context"
	"sync"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is an in-memory implementation of Repo. The single mutex
// serializes the compare-and-swap in UpsertRefreshToken, giving the
// single-writer-per-key guarantee the rotation protocol needs.
type InMemoryRepo struct {
	mu            sync.RWMutex
	loginTokens   map[string]*LoginToken   // login token ID -> record
	loginByUser   map[string]string        // user ID -> login token ID
	refreshTokens map[string]*RefreshToken // login token ID -> record
}

// NewInMemoryRepo creates a new in-memory session store.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		loginTokens:   make(map[string]*LoginToken),
		loginByUser:   make(map[string]string),
		refreshTokens: make(map[string]*RefreshToken),
	}
}

func (r *InMemoryRepo) UpsertLoginToken(ctx context.Context, token *LoginToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// One pending login per user: a new request replaces the previous one.
	if existingID, ok := r.loginByUser[token.UserID]; ok {
		delete(r.loginTokens, existingID)
	}

	copied := *token
	r.loginTokens[copied.ID] = &copied
	r.loginByUser[copied.UserID] = copied.ID
	return nil
}

func (r *InMemoryRepo) GetLoginToken(ctx context.Context, id string) (*LoginToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.loginTokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *token
	return &copied, nil
}

func (r *InMemoryRepo) GetLoginTokenByUser(ctx context.Context, userID string) (*LoginToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.loginByUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *r.loginTokens[id]
	return &copied, nil
}

func (r *InMemoryRepo) ApproveLoginToken(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.loginTokens[id]
	if !ok {
		return ErrNotFound
	}
	token.Approved = true
	return nil
}

func (r *InMemoryRepo) DeleteLoginToken(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.loginTokens[id]
	if !ok {
		return nil
	}
	delete(r.loginByUser, token.UserID)
	delete(r.loginTokens, id)
	return nil
}

func (r *InMemoryRepo) GetRefreshToken(ctx context.Context, loginTokenID string) (*RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.refreshTokens[loginTokenID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *InMemoryRepo) UpsertRefreshToken(ctx context.Context, record *RefreshToken, expectedValue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.refreshTokens[record.LoginTokenID]
	switch {
	case !ok && expectedValue != "":
		return ErrValueConflict
	case ok && existing.Value != expectedValue:
		return ErrValueConflict
	}

	copied := *record
	r.refreshTokens[copied.LoginTokenID] = &copied
	return nil
}
