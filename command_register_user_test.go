package auth_test

import (
	"context"
	"strings"
	"testing"

	auth "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newRegisterHandler(users auth.Users) *auth.RegisterUserHandler {
	return auth.NewRegisterUserHandler(users, auth.NewBcryptHasher(bcrypt.MinCost)).
		WithLogger(auth.NopLogger())
}

func TestRegisterUser(t *testing.T) {
	users := newMemUsers()
	sink := &recordingSink{}
	handler := newRegisterHandler(users).WithActivitySink(sink)

	principal, err := handler.Execute(context.Background(), auth.RegisterUserMessage{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "wonderland",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", principal.Username)
	assert.Equal(t, []string{auth.DefaultRole}, principal.Roles)
	assert.NotEqual(t, uuid.Nil, principal.ID)

	stored := users.get("alice")
	require.NotNil(t, stored)
	assert.NotEqual(t, "wonderland", stored.PasswordHash)
	assert.True(t, auth.VerifyPassword("wonderland", stored.PasswordHash))

	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventUserRegistered}, sink.types())

	_, err = handler.Execute(context.Background(), auth.RegisterUserMessage{
		Username: "alice",
		Email:    "second@example.com",
		Password: "wonderland",
	})
	assert.ErrorIs(t, err, auth.ErrUserExists)
}

func TestRegisterUserMultiBytePassword(t *testing.T) {
	users := newMemUsers()
	password := strings.Repeat("🔐", 20)

	_, err := newRegisterHandler(users).Execute(context.Background(), auth.RegisterUserMessage{
		Username: "alice",
		Email:    "alice@example.com",
		Password: password,
	})
	require.NoError(t, err)

	stored := users.get("alice")
	require.NotNil(t, stored)
	assert.True(t, auth.VerifyPassword(password, stored.PasswordHash))
	assert.False(t, auth.VerifyPassword(strings.Repeat("🔐", 18), stored.PasswordHash))

	a := newTestAuther(t, users)
	token, _, err := a.Login(context.Background(), "alice", password)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestRegisterUserValidation(t *testing.T) {
	handler := newRegisterHandler(newMemUsers())

	tests := []struct {
		name    string
		message auth.RegisterUserMessage
		field   string
	}{
		{
			name:    "username not alphanumeric",
			message: auth.RegisterUserMessage{Username: "al ice!", Email: "alice@example.com", Password: "wonderland"},
			field:   "username",
		},
		{
			name:    "bad email",
			message: auth.RegisterUserMessage{Username: "alice", Email: "not-an-email", Password: "wonderland"},
			field:   "email",
		},
		{
			name:    "short password",
			message: auth.RegisterUserMessage{Username: "alice", Email: "alice@example.com", Password: "short"},
			field:   "password",
		},
		{
			name:    "long password",
			message: auth.RegisterUserMessage{Username: "alice", Email: "alice@example.com", Password: "012345678901234567890123456789012"},
			field:   "password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Execute(context.Background(), tt.message)
			require.Error(t, err)
			assert.Equal(t, auth.TextCodeInvalidInput, auth.Classify(err))
			assert.Equal(t, 400, auth.HTTPStatus(err))
			assert.Contains(t, err.Error(), "invalid request payload")
		})
	}
}

func TestRegisterUserHashid(t *testing.T) {
	users := new(MockUsers)
	expected, err := hashid.NewUUID("alice@example.com")
	require.NoError(t, err)

	users.On("Insert", mock.Anything, mock.MatchedBy(func(u *auth.User) bool {
		return u.ID == expected && u.Username == "alice"
	})).Return(expected, nil).Once()

	principal, err := newRegisterHandler(users).Execute(context.Background(), auth.RegisterUserMessage{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "wonderland",
		UseHashid: true,
	})
	require.NoError(t, err)
	assert.Equal(t, expected, principal.ID)
	users.AssertExpectations(t)
}

func TestRegisterUserDeterministicIDs(t *testing.T) {
	users := newMemUsers()
	expected, err := hashid.NewUUID("alice@example.com")
	require.NoError(t, err)

	principal, err := newRegisterHandler(users).
		WithDeterministicIDs(true).
		Execute(context.Background(), auth.RegisterUserMessage{
			Username: "alice",
			Email:    "alice@example.com",
			Password: "wonderland",
		})
	require.NoError(t, err)
	assert.Equal(t, expected, principal.ID)
	assert.Equal(t, expected, users.get("alice").ID)
}

func TestRegisterUserCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRegisterHandler(newMemUsers()).Execute(ctx, auth.RegisterUserMessage{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "wonderland",
	})
	assert.Error(t, err)
}
