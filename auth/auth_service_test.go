package auth_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-magic-auth/auth"
	"github.com/jrsteele09/go-magic-auth/email/senderfake"
	"github.com/jrsteele09/go-magic-auth/internal/config"
	"github.com/jrsteele09/go-magic-auth/sessions"
	"github.com/jrsteele09/go-magic-auth/token"
	"github.com/jrsteele09/go-magic-auth/users"
)

const (
	testEmail  = "john.doe@example.com"
	testSecret = "test-jwt-secret"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testConfig struct {
	config.Config
}

func (testConfig) GetJWTSecret() string { return testSecret }

// testFixture holds all test dependencies
type testFixture struct {
	mu          sync.Mutex
	now         time.Time
	userRepo    *users.InMemoryUserRepo
	sessionRepo *sessions.InMemoryRepo
	sender      *senderfake.FakeSender
	factory     *token.Factory
	service     *auth.Service
}

func (f *testFixture) nowTime() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *testFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		now:         testTime,
		userRepo:    users.NewInMemoryUserRepo(),
		sessionRepo: sessions.NewInMemoryRepo(),
		sender:      senderfake.NewFakeSender(),
	}

	cfg := testConfig{Config: config.New()}
	signer := token.NewHMACSigner(cfg.GetJWTSecret(), token.WithNowFunc(f.nowTime))
	f.factory = token.NewFactory(signer, cfg)

	service, err := auth.NewService(
		auth.Repos{Users: f.userRepo, Sessions: f.sessionRepo},
		f.factory,
		f.sender,
		cfg,
		auth.WithNowTime(f.nowTime),
	)
	require.NoError(t, err)
	f.service = service

	return f
}

// approvalSecret pulls the emailed secret out of the confirmation URL.
func approvalSecret(t *testing.T, confirmURL string) (secret, userID string) {
	t.Helper()

	parsed, err := url.Parse(confirmURL)
	require.NoError(t, err)
	return parsed.Query().Get("token"), parsed.Query().Get("userId")
}

// login runs the first step of the flow and returns the login result.
func (f *testFixture) login(t *testing.T) *auth.LoginResult {
	t.Helper()

	result, err := f.service.Login(context.Background(), testEmail, auth.Client{IP: "10.0.0.1"})
	require.NoError(t, err)
	return result
}

// completeLogin runs login, approval and confirmation, returning the
// session's first rotation result.
func (f *testFixture) completeLogin(t *testing.T) *auth.RotationResult {
	t.Helper()
	ctx := context.Background()

	loginResult := f.login(t)
	secret, userID := approvalSecret(t, loginResult.ConfirmURL)
	require.NoError(t, f.service.Approve(ctx, userID, secret, auth.Client{}))

	result, err := f.service.Confirm(ctx, loginResult.Cookie.Encoded, auth.Client{})
	require.NoError(t, err)
	return result
}

func TestLoginSendsConfirmationEmail(t *testing.T) {
	f := setupTestFixture(t)

	result := f.login(t)
	require.Equal(t, testEmail, result.Email)

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, testEmail, sent[0].To)
	require.Contains(t, sent[0].Message.Text, result.ConfirmURL)

	// The login cookie verifies as a login token carrying the session ID.
	claims, err := f.factory.Verify(result.Cookie.Encoded, token.KindLogin)
	require.NoError(t, err)
	sessionID, err := token.SessionID(claims)
	require.NoError(t, err)

	stored, err := f.sessionRepo.GetLoginToken(context.Background(), sessionID)
	require.NoError(t, err)
	require.False(t, stored.Approved)
}

func TestLoginStoresOnlyHashedSecret(t *testing.T) {
	f := setupTestFixture(t)

	result := f.login(t)
	secret, userID := approvalSecret(t, result.ConfirmURL)

	stored, err := f.sessionRepo.GetLoginTokenByUser(context.Background(), userID)
	require.NoError(t, err)
	require.NotEqual(t, secret, stored.Value)
	require.NotContains(t, stored.Value, secret)
}

func TestLoginRejectsBadEmail(t *testing.T) {
	f := setupTestFixture(t)

	for _, address := range []string{"", "   ", "not-an-email", "John Doe <john.doe@example.com>"} {
		_, err := f.service.Login(context.Background(), address, auth.Client{})
		require.ErrorIs(t, err, auth.ErrValidation, "address %q", address)
	}
}

func TestLoginFailsWhenSenderFails(t *testing.T) {
	f := setupTestFixture(t)
	f.sender.Err = context.DeadlineExceeded

	_, err := f.service.Login(context.Background(), testEmail, auth.Client{})
	require.Error(t, err)
}

func TestSecondLoginReplacesPendingRequest(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first := f.login(t)
	firstSecret, userID := approvalSecret(t, first.ConfirmURL)

	f.login(t)

	// The first emailed secret no longer approves anything.
	err := f.service.Approve(ctx, userID, firstSecret, auth.Client{})
	require.ErrorIs(t, err, auth.ErrInvalidLogin)
}

func TestApprove(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	result := f.login(t)
	secret, userID := approvalSecret(t, result.ConfirmURL)

	require.NoError(t, f.service.Approve(ctx, userID, secret, auth.Client{}))

	// Idempotent for an already approved request.
	require.NoError(t, f.service.Approve(ctx, userID, secret, auth.Client{}))
}

func TestApproveRejectsWrongSecret(t *testing.T) {
	f := setupTestFixture(t)

	result := f.login(t)
	_, userID := approvalSecret(t, result.ConfirmURL)

	err := f.service.Approve(context.Background(), userID, "wrong-secret", auth.Client{})
	require.ErrorIs(t, err, auth.ErrInvalidLogin)
}

func TestApproveRejectsUnknownUser(t *testing.T) {
	f := setupTestFixture(t)

	err := f.service.Approve(context.Background(), "no-such-user", "secret", auth.Client{})
	require.ErrorIs(t, err, auth.ErrInvalidLogin)
}

func TestApproveRejectsMissingParams(t *testing.T) {
	f := setupTestFixture(t)

	err := f.service.Approve(context.Background(), "", "", auth.Client{})
	require.ErrorIs(t, err, auth.ErrValidation)
}

func TestApproveRejectsExpiredRequest(t *testing.T) {
	f := setupTestFixture(t)

	result := f.login(t)
	secret, userID := approvalSecret(t, result.ConfirmURL)

	f.advance(3 * time.Hour)

	err := f.service.Approve(context.Background(), userID, secret, auth.Client{})
	require.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestConfirmBeforeApproval(t *testing.T) {
	f := setupTestFixture(t)

	result := f.login(t)

	_, err := f.service.Confirm(context.Background(), result.Cookie.Encoded, auth.Client{})
	require.ErrorIs(t, err, auth.ErrLoginNotApproved)
}

func TestConfirmMintsFirstGeneration(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	result := f.completeLogin(t)
	require.True(t, result.Advanced)
	require.Equal(t, testEmail, result.User.Email)

	// Refresh cookie verifies as a refresh token for the session.
	claims, err := f.factory.Verify(result.Cookie.Encoded, token.KindRefresh)
	require.NoError(t, err)
	sessionID, err := token.SessionID(claims)
	require.NoError(t, err)
	require.Equal(t, result.SessionID, sessionID)

	// Access token carries the user's resolved roles.
	accessClaims, err := f.factory.Verify(result.AccessToken.Encoded, token.KindAccess)
	require.NoError(t, err)
	require.Equal(t, result.User.ID, accessClaims[token.ClaimUserID])
	require.Equal(t, []any{"user", "self"}, accessClaims[token.ClaimAllowedRoles])

	// First generation has no previous value.
	record, err := f.sessionRepo.GetRefreshToken(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, result.Cookie.Encoded, record.Value)
	require.Empty(t, record.LastValue)

	// Consumed login token is gone and the login is stamped.
	_, err = f.sessionRepo.GetLoginToken(ctx, sessionID)
	require.ErrorIs(t, err, sessions.ErrNotFound)

	user, err := f.userRepo.GetByID(ctx, result.User.ID)
	require.NoError(t, err)
	require.Equal(t, f.nowTime(), user.LastLogin)
}

func TestConfirmRejectsRefreshCookie(t *testing.T) {
	f := setupTestFixture(t)

	result := f.completeLogin(t)

	_, err := f.service.Confirm(context.Background(), result.Cookie.Encoded, auth.Client{})
	require.ErrorIs(t, err, auth.ErrInvalidLogin)
}

func TestConfirmRejectsExpiredLoginToken(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	result := f.login(t)
	secret, userID := approvalSecret(t, result.ConfirmURL)
	require.NoError(t, f.service.Approve(ctx, userID, secret, auth.Client{}))

	f.advance(3 * time.Hour)

	_, err := f.service.Confirm(ctx, result.Cookie.Encoded, auth.Client{})
	require.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestConfirmRejectsGarbageCookie(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Confirm(context.Background(), "not-a-token", auth.Client{})
	require.ErrorIs(t, err, auth.ErrInvalidLogin)
}

func TestRefreshAdvancesGeneration(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first := f.completeLogin(t)
	f.advance(time.Minute)

	second, err := f.service.Refresh(ctx, first.Cookie.Encoded, auth.Client{})
	require.NoError(t, err)
	require.True(t, second.Advanced)
	require.NotEqual(t, first.Cookie.Encoded, second.Cookie.Encoded)

	record, err := f.sessionRepo.GetRefreshToken(ctx, first.SessionID)
	require.NoError(t, err)
	require.Equal(t, second.Cookie.Encoded, record.Value)
	require.Equal(t, first.Cookie.Encoded, record.LastValue)
}

func TestRefreshReplaysPreviousGeneration(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first := f.completeLogin(t)
	f.advance(time.Minute)

	second, err := f.service.Refresh(ctx, first.Cookie.Encoded, auth.Client{})
	require.NoError(t, err)

	before, err := f.sessionRepo.GetRefreshToken(ctx, first.SessionID)
	require.NoError(t, err)

	// Presenting the previous generation again re-emits the current value
	// without touching the stored record.
	replay, err := f.service.Refresh(ctx, first.Cookie.Encoded, auth.Client{})
	require.NoError(t, err)
	require.False(t, replay.Advanced)
	require.Equal(t, second.Cookie.Encoded, replay.Cookie.Encoded)

	after, err := f.sessionRepo.GetRefreshToken(ctx, first.SessionID)
	require.NoError(t, err)
	require.Equal(t, before, after)

	// Replay is idempotent.
	again, err := f.service.Refresh(ctx, first.Cookie.Encoded, auth.Client{})
	require.NoError(t, err)
	require.Equal(t, replay.Cookie.Encoded, again.Cookie.Encoded)
}

func TestRefreshRejectsStaleGeneration(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first := f.completeLogin(t)
	f.advance(time.Minute)

	second, err := f.service.Refresh(ctx, first.Cookie.Encoded, auth.Client{})
	require.NoError(t, err)
	f.advance(time.Minute)

	_, err = f.service.Refresh(ctx, second.Cookie.Encoded, auth.Client{})
	require.NoError(t, err)

	before, err := f.sessionRepo.GetRefreshToken(ctx, first.SessionID)
	require.NoError(t, err)

	// first is now two generations behind: neither current nor previous.
	_, err = f.service.Refresh(ctx, first.Cookie.Encoded, auth.Client{})
	require.ErrorIs(t, err, auth.ErrTokenReplayMismatch)

	after, err := f.sessionRepo.GetRefreshToken(ctx, first.SessionID)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRefreshExpiredRecordBeatsMismatch(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first := f.completeLogin(t)
	f.advance(time.Minute)

	second, err := f.service.Refresh(ctx, first.Cookie.Encoded, auth.Client{})
	require.NoError(t, err)
	f.advance(time.Minute)
	_, err = f.service.Refresh(ctx, second.Cookie.Encoded, auth.Client{})
	require.NoError(t, err)

	// Force the stored record past its expiry without touching the clock,
	// so the presented token itself still verifies.
	record, err := f.sessionRepo.GetRefreshToken(ctx, first.SessionID)
	require.NoError(t, err)
	expired := *record
	expired.Expires = f.nowTime().Add(-time.Hour)
	require.NoError(t, f.sessionRepo.UpsertRefreshToken(ctx, &expired, record.Value))

	// Even a stale generation reports expiry, not mismatch.
	_, err = f.service.Refresh(ctx, first.Cookie.Encoded, auth.Client{})
	require.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestRefreshRejectsUnknownSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	result := f.completeLogin(t)

	cookie, err := f.factory.BuildRefreshToken("no-such-session", result.User)
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, cookie.Encoded, auth.Client{})
	require.ErrorIs(t, err, auth.ErrInvalidLogin)
}

func TestConcurrentRefreshExactlyOneAdvances(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first := f.completeLogin(t)
	f.advance(time.Minute)

	var wg sync.WaitGroup
	results := make([]*auth.RotationResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.service.Refresh(ctx, first.Cookie.Encoded, auth.Client{})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	advanced := 0
	for _, r := range results {
		if r.Advanced {
			advanced++
		}
	}
	require.Equal(t, 1, advanced)

	// Both callers end up holding the same current generation.
	record, err := f.sessionRepo.GetRefreshToken(ctx, first.SessionID)
	require.NoError(t, err)
	require.Equal(t, record.Value, results[0].Cookie.Encoded)
	require.Equal(t, record.Value, results[1].Cookie.Encoded)
	require.Equal(t, first.Cookie.Encoded, record.LastValue)
}
