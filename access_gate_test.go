package auth_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	auth "github.com/goliatone/go-auth-gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleSet(t *testing.T) {
	set := auth.NewRoleSet("user", "", "admin", "user")

	assert.True(t, set.Has("user"))
	assert.True(t, set.Has("admin"))
	assert.False(t, set.Has(""))
	assert.Equal(t, []string{"admin", "user"}, set.Slice())

	assert.True(t, set.Intersects(auth.NewRoleSet("admin", "moderator")))
	assert.False(t, set.Intersects(auth.NewRoleSet("moderator")))
	assert.False(t, set.Intersects(auth.NewRoleSet()))
	assert.False(t, auth.NewRoleSet().Intersects(set))
}

func TestRoleSetTrimsNames(t *testing.T) {
	set := auth.NewRoleSet(" admin", "user ", "   ")

	assert.Equal(t, []string{"admin", "user"}, set.Slice())
	assert.True(t, set.Has("admin"))
	assert.True(t, set.Has(" admin "))

	users := newMemUsers()
	users.add(newUser("boss", "secret-pass", "admin"))
	resolver, ts := newResolver(users)
	tok, _, err := ts.Encode(auth.NewClaims("boss"))
	require.NoError(t, err)

	principal, err := auth.NewGate(resolver, []string{" admin "}).Authorize(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "boss", principal.Username)
}

func TestGateAuthorize(t *testing.T) {
	users := newMemUsers()
	users.add(newUser("plain", "secret-pass", "user"))
	users.add(newUser("boss", "secret-pass", "user", "admin"))
	users.add(newUser("mod", "secret-pass", "moderator"))
	off := newUser("off", "secret-pass", "admin")
	off.Disabled = true
	users.add(off)

	resolver, ts := newResolver(users)
	token := func(username string) string {
		tok, _, err := ts.Encode(auth.NewClaims(username, "admin"))
		require.NoError(t, err)
		return tok
	}

	tests := []struct {
		name     string
		roles    []string
		username string
		wantErr  error
	}{
		{name: "user denied admin", roles: []string{"admin"}, username: "plain", wantErr: auth.ErrAccessDenied},
		{name: "admin allowed", roles: []string{"admin"}, username: "boss"},
		{name: "any of roles", roles: []string{"moderator", "admin"}, username: "mod"},
		{name: "no hierarchy", roles: []string{"moderator"}, username: "boss", wantErr: auth.ErrAccessDenied},
		{name: "default role", roles: []string{auth.DefaultRole}, username: "plain"},
		{name: "empty required set", roles: nil, username: "boss", wantErr: auth.ErrAccessDenied},
		{name: "disabled before roles", roles: []string{"admin"}, username: "off", wantErr: auth.ErrAccountDisabled},
		{name: "unknown user", roles: []string{"user"}, username: "ghost", wantErr: auth.ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := auth.NewGate(resolver, tt.roles, auth.WithGateLogger(auth.NopLogger()))
			principal, err := gate.Authorize(context.Background(), token(tt.username))

			if tt.wantErr != nil {
				assert.Nil(t, principal)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.username, principal.Username)
		})
	}
}

func TestGateDistinctStatuses(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, auth.HTTPStatus(auth.ErrUnauthenticated))
	assert.Equal(t, http.StatusForbidden, auth.HTTPStatus(auth.ErrAccessDenied))
	assert.Equal(t, http.StatusBadRequest, auth.HTTPStatus(auth.ErrAccountDisabled))
}

func TestGateRecordsDenials(t *testing.T) {
	users := newMemUsers()
	users.add(newUser("plain", "secret-pass"))

	resolver, ts := newResolver(users)
	sink := &recordingSink{}
	gate := auth.NewGate(resolver, []string{"admin"},
		auth.WithGateActivitySink(sink),
		auth.WithGateLogger(auth.NopLogger()),
	)

	tok, _, err := ts.Encode(auth.NewClaims("plain"))
	require.NoError(t, err)

	_, err = gate.Authorize(context.Background(), tok)
	assert.ErrorIs(t, err, auth.ErrAccessDenied)
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventAccessDenied}, sink.types())
	assert.Equal(t, []string{"admin"}, gate.Roles())
}

func TestGateConcurrentUse(t *testing.T) {
	users := newMemUsers()
	users.add(newUser("boss", "secret-pass", "admin"))
	users.add(newUser("plain", "secret-pass"))

	resolver, ts := newResolver(users)
	gate := auth.NewGate(resolver, []string{"admin"}, auth.WithGateLogger(auth.NopLogger()))

	bossToken, _, err := ts.Encode(auth.NewClaims("boss"))
	require.NoError(t, err)
	plainToken, _, err := ts.Encode(auth.NewClaims("plain"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := gate.Authorize(context.Background(), bossToken); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := gate.Authorize(context.Background(), plainToken); !auth.IsAccessDenied(err) {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected result: %v", err)
	}
}
