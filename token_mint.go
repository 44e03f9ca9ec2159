package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type issueOptions struct {
	ttl time.Duration
}

// IssueOption customizes a single Encode call
type IssueOption func(*issueOptions)

// WithTTL overrides the configured token lifetime. A zero TTL is honored and
// produces a token that is already expired.
func WithTTL(ttl time.Duration) IssueOption {
	return func(o *issueOptions) {
		o.ttl = ttl
	}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil || claims.ID != "" {
		return
	}
	claims.ID = uuid.NewString()
}
