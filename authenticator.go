package auth

import (
	"context"
	"time"
)

// Auther wires the hasher, token service, resolver and issuer together and
// exposes the operations used by the surrounding service.
type Auther struct {
	config       Config
	users        Users
	hasher       PasswordHasher
	logger       Logger
	activitySink ActivitySink
	clock        func() time.Time

	tokenService *TokenService
	resolver     *PrincipalResolver
	issuer       *SessionIssuer
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator. The configuration is
// validated and must not change afterwards.
func NewAuthenticator(users Users, opts Config) (*Auther, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	a := &Auther{
		config:       opts,
		users:        users,
		hasher:       NewPasswordHasher(opts.GetHashAlgorithm(), opts.HashCost),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		clock:        time.Now,
	}

	if err := a.build(); err != nil {
		return nil, err
	}

	return a, nil
}

func (s *Auther) build() error {
	tokens, err := NewTokenServiceFromConfig(s.config,
		WithTokenLogger(s.logger),
		WithTokenClock(s.clock),
	)
	if err != nil {
		return err
	}

	s.tokenService = tokens
	s.resolver = NewPrincipalResolver(tokens, s.users, WithResolverLogger(s.logger))
	s.issuer = NewSessionIssuer(s.users, s.hasher, tokens,
		WithIssuerLogger(s.logger),
		WithIssuerActivitySink(s.activitySink),
		WithIssuerClock(s.clock),
	)
	return nil
}

func (s *Auther) mustBuild() *Auther {
	if err := s.build(); err != nil {
		s.logger.Error("Auther rebuild failed", "error", err)
	}
	return s
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s.mustBuild()
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s.mustBuild()
}

// WithPasswordHasher replaces the configured hasher
func (s *Auther) WithPasswordHasher(hasher PasswordHasher) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s.mustBuild()
}

// WithClock injects a custom clock (useful for tests).
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now != nil {
		s.clock = now
	}
	return s.mustBuild()
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() *TokenService {
	return s.tokenService
}

// Resolver returns the PrincipalResolver used by this Authenticator
func (s *Auther) Resolver() *PrincipalResolver {
	return s.resolver
}

// Config returns the configuration the Authenticator was built with
func (s *Auther) Config() Config {
	return s.config
}

func (s *Auther) HashPassword(password string) (string, error) {
	return s.hasher.Hash(password)
}

func (s *Auther) VerifyPassword(password, hash string) bool {
	return s.hasher.Verify(password, hash)
}

func (s *Auther) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	return s.issuer.Login(ctx, username, password)
}

// Authenticate returns the principal for token, active or not
func (s *Auther) Authenticate(ctx context.Context, token string) (*Principal, error) {
	return s.resolver.Resolve(ctx, token)
}

// AuthenticateActive returns the principal for token if its account is enabled
func (s *Auther) AuthenticateActive(ctx context.Context, token string) (*Principal, error) {
	return s.resolver.ResolveActive(ctx, token)
}

// Authorize checks token against roles, any of them grants access
func (s *Auther) Authorize(ctx context.Context, token string, roles ...string) (*Principal, error) {
	return s.RequireAnyRole(roles...).Authorize(ctx, token)
}

// RequireAnyRole builds a reusable Gate for roles
func (s *Auther) RequireAnyRole(roles ...string) *Gate {
	return NewGate(s.resolver, roles,
		WithGateLogger(s.logger),
		WithGateActivitySink(s.activitySink),
	)
}
