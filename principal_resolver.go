package auth

import (
	"context"
	"strings"
)

// PrincipalResolver turns a token into the principal stored in the
// repository. It never caches: every call reads live state.
type PrincipalResolver struct {
	tokens *TokenService
	users  Users
	logger Logger
}

// ResolverOption configures a PrincipalResolver
type ResolverOption func(*PrincipalResolver)

// WithResolverLogger overrides the logger
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *PrincipalResolver) {
		r.logger = normalizeLogger(logger)
	}
}

// NewPrincipalResolver creates a resolver
func NewPrincipalResolver(tokens *TokenService, users Users, opts ...ResolverOption) *PrincipalResolver {
	r := &PrincipalResolver{
		tokens: tokens,
		users:  users,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve decodes token and loads its subject. Token failures, a missing
// subject and unknown users all return ErrUnauthenticated. Store failures
// return ErrRepositoryUnavailable.
func (r *PrincipalResolver) Resolve(ctx context.Context, token string) (*Principal, error) {
	claims, err := r.tokens.Decode(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	subject := strings.TrimSpace(claims.Subject())
	if subject == "" {
		r.logger.Debug("resolve rejected token without subject", "jti", claims.TokenID())
		return nil, ErrUnauthenticated
	}

	user, err := r.users.FindByUsername(ctx, subject)
	if err != nil {
		if IsUserNotFound(err) {
			r.logger.Debug("resolve subject not found", "jti", claims.TokenID())
			return nil, ErrUnauthenticated
		}
		r.logger.Error("resolve user lookup failed", "error", err)
		return nil, repositoryUnavailable(err)
	}

	if user == nil {
		return nil, ErrUnauthenticated
	}

	return user.Principal(), nil
}

// ResolveActive is Resolve plus a check on the disabled flag
func (r *PrincipalResolver) ResolveActive(ctx context.Context, token string) (*Principal, error) {
	principal, err := r.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	if principal.Disabled {
		return nil, ErrAccountDisabled
	}

	return principal, nil
}
