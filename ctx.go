package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var principalCtxKey = &contextKey{"principal"}

// PrincipalLocalsKey is the router locals key holding the Principal
const PrincipalLocalsKey = "principal"

type contextKey struct {
	name string
}

// WithPrincipal sets the Principal in the given context
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, principal)
}

// PrincipalFromContext finds the principal from the context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*Principal)
	return raw, ok && raw != nil
}

// PrincipalFromRouterContext returns the principal stored by the auth
// middleware. Router locals are checked first, then the request context.
func PrincipalFromRouterContext(ctx router.Context) (*Principal, bool) {
	if raw, ok := ctx.Locals(PrincipalLocalsKey).(*Principal); ok && raw != nil {
		return raw, true
	}
	return PrincipalFromContext(ctx.Context())
}

func setRouterPrincipal(ctx router.Context, principal *Principal) {
	ctx.Locals(PrincipalLocalsKey, principal)
	ctx.SetContext(WithPrincipal(ctx.Context(), principal))
}
