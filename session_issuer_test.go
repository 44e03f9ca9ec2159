package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-gate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newIssuer(users auth.Users, opts ...auth.IssuerOption) (*auth.SessionIssuer, *auth.TokenService) {
	ts := newTestTokenService()
	base := []auth.IssuerOption{
		auth.WithIssuerLogger(auth.NopLogger()),
		auth.WithIssuerClock(fixedClock),
	}
	return auth.NewSessionIssuer(users, auth.NewBcryptHasher(bcrypt.MinCost), ts, append(base, opts...)...), ts
}

func TestLoginSuccess(t *testing.T) {
	users := newMemUsers()
	users.add(newUser("alice", "correct-horse", "user", "admin"))

	sink := &recordingSink{}
	issuer, ts := newIssuer(users, auth.WithIssuerActivitySink(sink))

	token, expiresAt, err := issuer.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, fixedNow.Add(30*time.Minute), expiresAt)

	claims, err := ts.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject())
	assert.Equal(t, []string{"user", "admin"}, claims.Roles)

	stored := users.get("alice")
	require.NotNil(t, stored.LastLogin)
	assert.True(t, stored.LastLogin.Equal(fixedNow))

	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginSuccess}, sink.types())
}

func TestLoginInvalidCredentialsAreIndistinguishable(t *testing.T) {
	users := newMemUsers()
	users.add(newUser("alice", "correct-horse"))

	sink := &recordingSink{}
	issuer, _ := newIssuer(users, auth.WithIssuerActivitySink(sink))

	token, _, wrongPassword := issuer.Login(context.Background(), "alice", "wrongpass")
	assert.Empty(t, token)

	token, _, unknownUser := issuer.Login(context.Background(), "nouser", "anything")
	assert.Empty(t, token)

	assert.ErrorIs(t, wrongPassword, auth.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, auth.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.Equal(t, auth.Classify(wrongPassword), auth.Classify(unknownUser))
	assert.Equal(t, auth.HTTPStatus(wrongPassword), auth.HTTPStatus(unknownUser))

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventLoginFailure,
		auth.ActivityEventLoginFailure,
	}, sink.types())

	assert.Nil(t, users.get("alice").LastLogin)
}

func TestLoginUnknownUserRunsDummyVerify(t *testing.T) {
	users := new(MockUsers)
	users.On("FindByUsername", mock.Anything, "ghost").Return(nil, auth.ErrUserNotFound)

	hasher := &countingHasher{PasswordHasher: auth.NewBcryptHasher(bcrypt.MinCost)}
	issuer := auth.NewSessionIssuer(users, hasher, newTestTokenService(), auth.WithIssuerLogger(auth.NopLogger()))

	for i := 0; i < 3; i++ {
		_, _, err := issuer.Login(context.Background(), "ghost", "whatever")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}

	assert.Equal(t, 1, hasher.hashes)
	assert.Equal(t, 3, hasher.verifies)
	users.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginRepositoryFailure(t *testing.T) {
	users := new(MockUsers)
	users.On("FindByUsername", mock.Anything, "alice").Return(nil, errors.New("connection reset by peer"))

	issuer, _ := newIssuer(users)

	_, _, err := issuer.Login(context.Background(), "alice", "correct-horse")
	assert.True(t, auth.IsRepositoryUnavailable(err))
	assert.False(t, auth.IsInvalidCredentials(err))
}

func TestLoginLastLoginFailureIsIgnored(t *testing.T) {
	user := newUser("alice", "correct-horse")
	user.ID = uuid.New()

	users := new(MockUsers)
	users.On("FindByUsername", mock.Anything, "alice").Return(user, nil)
	users.On("UpdateFields", mock.Anything, user.ID, mock.MatchedBy(func(fields map[string]any) bool {
		_, ok := fields[auth.FieldLastLogin]
		return ok && len(fields) == 1
	})).Return(int64(0), errors.New("read-only replica"))

	logger := new(MockLogger)
	logger.On("Warn", "Login failed to update last login", mock.Anything).Once()

	issuer, _ := newIssuer(users, auth.WithIssuerLogger(logger))

	token, _, err := issuer.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	users.AssertExpectations(t)
	logger.AssertExpectations(t)
}

func TestLoginDoesNotCheckDisabled(t *testing.T) {
	users := newMemUsers()
	u := newUser("alice", "correct-horse")
	u.Disabled = true
	users.add(u)

	issuer, _ := newIssuer(users)
	token, _, err := issuer.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

type countingHasher struct {
	auth.PasswordHasher
	hashes   int
	verifies int
}

func (c *countingHasher) Hash(password string) (string, error) {
	c.hashes++
	return c.PasswordHasher.Hash(password)
}

func (c *countingHasher) Verify(password, hash string) bool {
	c.verifies++
	return c.PasswordHasher.Verify(password, hash)
}

func TestLoginNilUserIsInvalidCredentials(t *testing.T) {
	users := new(MockUsers)
	users.On("FindByUsername", mock.Anything, "alice").Return(nil, nil)

	issuer, _ := newIssuer(users)

	assert.NotPanics(t, func() {
		_, _, err := issuer.Login(context.Background(), "alice", "correct-horse")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
	users.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
}

// brokenHasher cannot hash but still verifies, remembering the hashes it saw
type brokenHasher struct {
	auth.PasswordHasher
	seen []string
}

func (b *brokenHasher) Hash(string) (string, error) {
	return "", errors.New("entropy source unavailable")
}

func (b *brokenHasher) Verify(password, hash string) bool {
	b.seen = append(b.seen, hash)
	return b.PasswordHasher.Verify(password, hash)
}

func TestLoginUnknownUserStillVerifiesWhenDummyHashFails(t *testing.T) {
	hasher := &brokenHasher{PasswordHasher: auth.NewBcryptHasher(bcrypt.MinCost)}
	issuer := auth.NewSessionIssuer(newMemUsers(), hasher, newTestTokenService(), auth.WithIssuerLogger(auth.NopLogger()))

	for i := 0; i < 2; i++ {
		_, _, err := issuer.Login(context.Background(), "ghost", "whatever")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}

	require.Len(t, hasher.seen, 2)
	for _, hash := range hasher.seen {
		assert.True(t, strings.HasPrefix(hash, "$bcrypt-sha256$$2a$12$"), hash)
	}
}
