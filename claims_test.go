package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-auth-gate"
	"github.com/stretchr/testify/assert"
)

func TestNewClaims(t *testing.T) {
	roles := []string{"user", "admin"}
	claims := auth.NewClaims("alice", roles...)

	roles[0] = "changed"

	assert.Equal(t, "alice", claims.Subject())
	assert.Equal(t, []string{"user", "admin"}, claims.Roles)
	assert.True(t, claims.Expires().IsZero())
	assert.True(t, claims.IssuedAt().IsZero())
	assert.Empty(t, claims.TokenID())
}

func TestClaimsAccessors(t *testing.T) {
	now := time.Unix(1700000000, 0)
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "bob",
			ID:        "token-id",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}

	assert.Equal(t, "bob", claims.Subject())
	assert.Equal(t, "token-id", claims.TokenID())
	assert.True(t, claims.IssuedAt().Equal(now))
	assert.True(t, claims.Expires().Equal(now.Add(time.Minute)))
}
