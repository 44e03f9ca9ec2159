package auth

import (
	"context"
	"sync"
	"time"
)

// dummyPassword is hashed once and verified against when the username is
// unknown so that both failure paths pay for a hash comparison.
const dummyPassword = "dummy-password-for-unknown-users"

// fallbackDummyHash is a well formed cost 12 hash used when the configured
// hasher cannot produce one, so the unknown user path never skips the work.
const fallbackDummyHash = bcryptSHA256Prefix + "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// SessionIssuer verifies credentials and mints tokens
type SessionIssuer struct {
	users  Users
	hasher PasswordHasher
	tokens *TokenService
	sink   ActivitySink
	logger Logger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// IssuerOption configures a SessionIssuer
type IssuerOption func(*SessionIssuer)

// WithIssuerActivitySink records login attempts
func WithIssuerActivitySink(sink ActivitySink) IssuerOption {
	return func(s *SessionIssuer) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithIssuerLogger overrides the logger
func WithIssuerLogger(logger Logger) IssuerOption {
	return func(s *SessionIssuer) {
		s.logger = normalizeLogger(logger)
	}
}

// WithIssuerClock sets the clock used for last_login
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(s *SessionIssuer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionIssuer creates a SessionIssuer
func NewSessionIssuer(users Users, hasher PasswordHasher, tokens *TokenService, opts ...IssuerOption) *SessionIssuer {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}

	s := &SessionIssuer{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		sink:   noopActivitySink{},
		logger: defLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Login checks username and password and returns a signed token with its
// expiration. Unknown users and wrong passwords both return
// ErrInvalidCredentials.
func (s *SessionIssuer) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil && !IsUserNotFound(err) {
		s.logger.Error("Login user lookup failed", "error", err)
		return "", time.Time{}, repositoryUnavailable(err)
	}

	if err != nil || user == nil {
		s.hasher.Verify(password, s.fallbackHash())
		s.loginFailed(ctx, username, "")
		return "", time.Time{}, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.loginFailed(ctx, username, user.ID.String())
		return "", time.Time{}, ErrInvalidCredentials
	}

	principal := user.Principal()
	token, expiresAt, err := s.tokens.Encode(NewClaims(principal.Username, principal.Roles...))
	if err != nil {
		s.logger.Error("Login failed to encode token", "error", err)
		return "", time.Time{}, err
	}

	if _, err := s.users.UpdateFields(ctx, user.ID, map[string]any{
		FieldLastLogin: s.now().UTC(),
	}); err != nil {
		s.logger.Warn("Login failed to update last login", "username", username, "error", err)
	}

	recordActivity(ctx, s.sink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Username:  principal.Username,
		UserID:    principal.ID.String(),
	})

	return token, expiresAt, nil
}

func (s *SessionIssuer) loginFailed(ctx context.Context, username, userID string) {
	recordActivity(ctx, s.sink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Username:  username,
		UserID:    userID,
		Reason:    TextCodeInvalidCredentials,
	})
}

func (s *SessionIssuer) fallbackHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash = fallbackDummyHash
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil || hash == "" {
			s.logger.Error("Login failed to build fallback hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
