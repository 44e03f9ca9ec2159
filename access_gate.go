package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// Gate authorizes a token against a fixed set of roles. A principal passes
// when it is active and holds at least one of the roles. A gate built
// without roles denies everyone.
type Gate struct {
	resolver *PrincipalResolver
	required RoleSet
	sink     ActivitySink
	logger   Logger
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithGateActivitySink records denied requests
func WithGateActivitySink(sink ActivitySink) GateOption {
	return func(g *Gate) {
		g.sink = normalizeActivitySink(sink)
	}
}

// WithGateLogger overrides the logger
func WithGateLogger(logger Logger) GateOption {
	return func(g *Gate) {
		g.logger = normalizeLogger(logger)
	}
}

// NewGate creates a gate requiring any of roles
func NewGate(resolver *PrincipalResolver, roles []string, opts ...GateOption) *Gate {
	g := &Gate{
		resolver: resolver,
		required: NewRoleSet(roles...),
		sink:     noopActivitySink{},
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Roles returns the required roles, sorted
func (g *Gate) Roles() []string {
	return g.required.Slice()
}

// Authorize resolves the active principal for token and checks its roles.
// Resolver errors are returned unchanged.
func (g *Gate) Authorize(ctx context.Context, token string) (*Principal, error) {
	principal, err := g.resolver.ResolveActive(ctx, token)
	if err != nil {
		return nil, err
	}

	if !NewRoleSet(principal.Roles...).Intersects(g.required) {
		g.logger.Debug("access denied", "username", principal.Username, "required", g.Roles())
		recordActivity(ctx, g.sink, g.logger, ActivityEvent{
			EventType: ActivityEventAccessDenied,
			Username:  principal.Username,
			UserID:    principal.ID.String(),
			Reason:    TextCodeAccessDenied,
			Metadata: map[string]any{
				"required": g.Roles(),
			},
		})
		return nil, ErrAccessDenied
	}

	return principal, nil
}

// Middleware authorizes the bearer token of each request and stores the
// principal in the router locals and the request context.
func (g *Gate) Middleware(opts ...MiddlewareOption) router.MiddlewareFunc {
	return newAuthMiddleware(g.Authorize, opts...)
}
