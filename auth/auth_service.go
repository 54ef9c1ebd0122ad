package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/jrsteele09/go-magic-auth/email"
	"github.com/jrsteele09/go-magic-auth/internal/config"
	"github.com/jrsteele09/go-magic-auth/sessions"
	"github.com/jrsteele09/go-magic-auth/token"
	"github.com/jrsteele09/go-magic-auth/users"
)

// ApprovePath is the route the emailed confirmation link points at. The
// server registers its approval handler on the same path.
const ApprovePath = "/api/login/approve"

// Client holds some information about the requesting client.
type Client struct {
	IP        string
	UserAgent string
}

// Repos holds all repository dependencies for the Service.
type Repos struct {
	Users    users.UserRepo // Repository for user data
	Sessions sessions.Repo  // Repository for login-token and refresh-token records
}

// Service implements the magic-link login protocol: requesting a login by
// email, approving it out-of-band, completing it, and rotating the refresh
// credential on every subsequent refresh call.
type Service struct {
	repos        Repos
	factory      *token.Factory
	sender       email.Sender
	baseURL      string
	siteName     string
	loginExpiry  time.Duration
	secretLength int
	nowTime      func() time.Time // nowTime function (injectable for testing)
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// NewService initializes a new Service with required dependencies.
func NewService(
	repos Repos,
	factory *token.Factory,
	sender email.Sender,
	cfg config.Config,
	options ...ServiceOption,
) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewService] Sessions repo is required")
	}
	if factory == nil {
		return nil, errors.New("[NewService] token factory is required")
	}
	if sender == nil {
		return nil, errors.New("[NewService] email sender is required")
	}

	service := &Service{
		repos:        repos,
		factory:      factory,
		sender:       sender,
		baseURL:      strings.TrimSuffix(cfg.GetBaseURL(), "/"),
		siteName:     cfg.GetAppName(),
		loginExpiry:  cfg.GetLoginTokenExpiry(),
		secretLength: cfg.GetLoginSecretLength(),
		nowTime:      time.Now,
	}

	for _, opt := range options {
		opt(service)
	}

	return service, nil
}

// LoginResult is returned by Login. Cookie carries the signed login token
// the client must present when confirming.
type LoginResult struct {
	Email      string
	Cookie     token.SignedToken
	ConfirmURL string
}

// Login starts a passwordless login: it upserts the user for the email,
// stores a pending login token (secret hashed at rest) and emails the
// confirmation link. A second login request for the same user replaces the
// pending one.
func (s *Service) Login(ctx context.Context, address string, client Client) (*LoginResult, error) {
	address, err := ValidateEmail(address)
	if err != nil {
		return nil, err
	}

	user, err := s.repos.Users.UpsertByEmail(ctx, address)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] UpsertByEmail")
	}

	secret, err := generateSecret(s.secretLength)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] generateSecret")
	}

	// Only the bcrypt hash is persisted; the raw secret travels in the
	// emailed link alone.
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] bcrypt")
	}

	now := s.nowTime()
	loginToken := &sessions.LoginToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Value:     string(hash),
		Created:   now,
		Expires:   now.Add(s.loginExpiry),
		IP:        client.IP,
		UserAgent: client.UserAgent,
	}
	if err := s.repos.Sessions.UpsertLoginToken(ctx, loginToken); err != nil {
		return nil, errors.Wrap(err, "[Service.Login] UpsertLoginToken")
	}

	cookie, err := s.factory.BuildLoginToken(loginToken.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] BuildLoginToken")
	}

	confirmURL := fmt.Sprintf("%s%s?token=%s&userId=%s",
		s.baseURL, ApprovePath, url.QueryEscape(secret), url.QueryEscape(user.ID))

	msg, err := email.LoginMessage(email.Params{
		Email:      address,
		SiteName:   s.siteName,
		ConfirmURL: confirmURL,
		Expiration: s.loginExpiry,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] LoginMessage")
	}
	if err := s.sender.Send(ctx, address, msg); err != nil {
		return nil, errors.Wrap(err, "[Service.Login] sender.Send")
	}

	return &LoginResult{Email: address, Cookie: cookie, ConfirmURL: confirmURL}, nil
}

// Approve consumes the emailed secret and flips the pending login token's
// approved flag. Idempotent for an already-approved token.
func (s *Service) Approve(ctx context.Context, userID, secret string, client Client) error {
	if userID == "" || secret == "" {
		return errors.Wrap(ErrValidation, "token and userId are required")
	}

	loginToken, err := s.repos.Sessions.GetLoginTokenByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return ErrInvalidLogin
		}
		return errors.Wrap(err, "[Service.Approve] GetLoginTokenByUser")
	}

	if s.nowTime().After(loginToken.Expires) {
		return ErrTokenExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(loginToken.Value), []byte(secret)) != nil {
		return ErrInvalidLogin
	}
	if loginToken.Approved {
		return nil
	}

	if err := s.repos.Sessions.ApproveLoginToken(ctx, loginToken.ID); err != nil {
		return errors.Wrap(err, "[Service.Approve] ApproveLoginToken")
	}
	return nil
}

// Confirm completes an approved login: it verifies the login cookie, checks
// the persisted record is approved and unexpired, and performs the first
// rotation, minting the session's initial refresh and access tokens. The
// consumed login token is deleted. Until the out-of-band approval has
// happened it fails with ErrLoginNotApproved, which makes Confirm a safe
// polling target.
func (s *Service) Confirm(ctx context.Context, cookieValue string, client Client) (*RotationResult, error) {
	claims, err := s.factory.Verify(cookieValue, token.KindLogin)
	if err != nil {
		return nil, mapVerifyError(err)
	}
	sessionID, err := token.SessionID(claims)
	if err != nil {
		return nil, ErrInvalidLogin
	}

	loginToken, err := s.repos.Sessions.GetLoginToken(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, errors.Wrap(err, "[Service.Confirm] GetLoginToken")
	}

	if s.nowTime().After(loginToken.Expires) {
		return nil, ErrTokenExpired
	}
	if !loginToken.Approved {
		return nil, ErrLoginNotApproved
	}

	// A login token converts into a refresh token at most once.
	if _, err := s.repos.Sessions.GetRefreshToken(ctx, sessionID); err == nil {
		return nil, ErrInvalidLogin
	} else if !errors.Is(err, sessions.ErrNotFound) {
		return nil, errors.Wrap(err, "[Service.Confirm] GetRefreshToken")
	}

	user, err := s.repos.Users.GetByID(ctx, loginToken.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Confirm] GetByID")
	}

	result, err := s.rotate(ctx, "", nil, sessionID, user, client)
	if err != nil {
		return nil, err
	}

	// Best effort cleanup; a leftover record is unusable once the refresh
	// record exists and expires on its own schedule.
	_ = s.repos.Sessions.DeleteLoginToken(ctx, sessionID)
	_ = s.repos.Users.SetLastLogin(ctx, user.ID, s.nowTime())

	return result, nil
}

// Refresh rotates a session's refresh credential and mints a fresh access
// token, applying the two-generation replay window.
func (s *Service) Refresh(ctx context.Context, cookieValue string, client Client) (*RotationResult, error) {
	claims, err := s.factory.Verify(cookieValue, token.KindRefresh)
	if err != nil {
		return nil, mapVerifyError(err)
	}
	sessionID, err := token.SessionID(claims)
	if err != nil {
		return nil, ErrInvalidLogin
	}

	record, err := s.repos.Sessions.GetRefreshToken(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, errors.Wrap(err, "[Service.Refresh] GetRefreshToken")
	}

	user, err := s.repos.Users.GetByID(ctx, record.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] GetByID")
	}

	return s.rotate(ctx, cookieValue, record, sessionID, user, client)
}

func mapVerifyError(err error) error {
	if errors.Is(err, token.ErrExpired) {
		return ErrTokenExpired
	}
	return ErrInvalidLogin
}

// generateSecret creates a random base64url string
func generateSecret(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
