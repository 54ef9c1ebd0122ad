package auth

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-magic-auth/sessions"
	"github.com/jrsteele09/go-magic-auth/token"
	"github.com/jrsteele09/go-magic-auth/users"
)

// RotationResult is the outcome of a successful rotation call. Cookie is
// the refresh token the caller must write to the credential cookie; on the
// replay path it is the stored current generation re-emitted unchanged.
type RotationResult struct {
	SessionID   string
	User        *users.User
	AccessToken token.SignedToken
	Cookie      token.SignedToken
	Advanced    bool // true only when the generation counter moved
}

// rotate decides, given the presented cookie value and the persisted
// refresh record, whether to advance the generation, replay the previous
// one, or reject. record is nil when no refresh record exists yet (first
// call completing a login). Evaluated strictly in order:
//
//  1. record expired          -> ErrTokenExpired
//  2. presented == lastValue  -> re-emit current value, fresh access token,
//     no mutation (idempotence under racing duplicate requests)
//  3. presented absent or == value -> mint a new generation, shift
//     value -> lastValue, conditional write, new cookie + access token
//  4. anything else           -> ErrTokenReplayMismatch, no mutation
//
// A rotation that fails mutates nothing; the caller applies cookie changes
// only from a returned result.
func (s *Service) rotate(ctx context.Context, presented string, record *sessions.RefreshToken, sessionID string, user *users.User, client Client) (*RotationResult, error) {
	now := s.nowTime()

	if record != nil && now.After(record.Expires) {
		return nil, ErrTokenExpired
	}

	if record != nil && presented != "" && presented == record.LastValue {
		return s.replayPrevious(sessionID, record, user)
	}

	var currentValue string
	if record != nil {
		currentValue = record.Value
	}
	if presented != "" && presented != currentValue {
		return nil, ErrTokenReplayMismatch
	}

	refresh, err := s.factory.BuildRefreshToken(sessionID, user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.rotate] BuildRefreshToken")
	}

	next := &sessions.RefreshToken{
		LoginTokenID: sessionID,
		UserID:       user.ID,
		Value:        refresh.Encoded,
		LastValue:    currentValue,
		Created:      now,
		Expires:      refresh.Expires,
		LastActive:   now,
		IP:           client.IP,
		UserAgent:    client.UserAgent,
	}
	if record != nil {
		next.Created = record.Created
	}

	if err := s.repos.Sessions.UpsertRefreshToken(ctx, next, currentValue); err != nil {
		if errors.Is(err, sessions.ErrValueConflict) {
			// Lost the conditional write to a concurrent rotation for this
			// session; re-read and fall into replay or reject.
			return s.resolveConflict(ctx, presented, sessionID, user)
		}
		return nil, errors.Wrap(err, "[Service.rotate] UpsertRefreshToken")
	}

	access, err := s.factory.BuildAccessToken(sessionID, user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.rotate] BuildAccessToken")
	}

	return &RotationResult{
		SessionID:   sessionID,
		User:        user,
		AccessToken: access,
		Cookie:      refresh,
		Advanced:    true,
	}, nil
}

// replayPrevious serves a client holding the immediately previous
// generation: the stored current value goes back out unchanged together
// with a freshly minted access token. Access tokens are stateless and
// cheap, so one is never cached and re-served.
func (s *Service) replayPrevious(sessionID string, record *sessions.RefreshToken, user *users.User) (*RotationResult, error) {
	access, err := s.factory.BuildAccessToken(sessionID, user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.replayPrevious] BuildAccessToken")
	}

	return &RotationResult{
		SessionID:   sessionID,
		User:        user,
		AccessToken: access,
		Cookie:      token.SignedToken{Encoded: record.Value, Expires: record.Expires},
	}, nil
}

func (s *Service) resolveConflict(ctx context.Context, presented, sessionID string, user *users.User) (*RotationResult, error) {
	record, err := s.repos.Sessions.GetRefreshToken(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return nil, ErrTokenReplayMismatch
		}
		return nil, errors.Wrap(err, "[Service.resolveConflict] GetRefreshToken")
	}

	if presented != "" && presented == record.LastValue {
		return s.replayPrevious(sessionID, record, user)
	}
	return nil, ErrTokenReplayMismatch
}
