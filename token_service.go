package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// SigningAlgorithm is the symmetric JWS algorithm used to sign tokens
type SigningAlgorithm string

const (
	HS256 SigningAlgorithm = "HS256"
	HS384 SigningAlgorithm = "HS384"
	HS512 SigningAlgorithm = "HS512"
)

// ParseSigningAlgorithm accepts the JWS names, case insensitive.
// An empty string maps to HS256.
func ParseSigningAlgorithm(name string) (SigningAlgorithm, error) {
	switch SigningAlgorithm(strings.ToUpper(strings.TrimSpace(name))) {
	case "", HS256:
		return HS256, nil
	case HS384:
		return HS384, nil
	case HS512:
		return HS512, nil
	}
	return "", goerrors.New(fmt.Sprintf("unsupported signing algorithm %q", name), goerrors.CategoryValidation).
		WithTextCode(TextCodeInvalidConfig)
}

func (a SigningAlgorithm) method() jwt.SigningMethod {
	switch a {
	case HS384:
		return jwt.SigningMethodHS384
	case HS512:
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodHS256
	}
}

// TokenService encodes and decodes signed, expiring claims. It is immutable
// after construction and safe for concurrent use.
type TokenService struct {
	signingKey []byte
	algorithm  SigningAlgorithm
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	now        func() time.Time
	logger     Logger
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithTokenIssuer sets the iss claim and requires it on decode
func WithTokenIssuer(issuer string) TokenServiceOption {
	return func(ts *TokenService) {
		ts.issuer = issuer
	}
}

// WithTokenAudience sets the aud claim and requires it on decode
func WithTokenAudience(audience ...string) TokenServiceOption {
	return func(ts *TokenService) {
		if len(audience) == 0 {
			ts.audience = nil
			return
		}
		ts.audience = append(jwt.ClaimStrings(nil), audience...)
	}
}

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger overrides the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		ts.logger = normalizeLogger(logger)
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, algorithm SigningAlgorithm, ttl time.Duration, opts ...TokenServiceOption) *TokenService {
	if algorithm == "" {
		algorithm = HS256
	}

	ts := &TokenService{
		signingKey: append([]byte(nil), signingKey...),
		algorithm:  algorithm,
		ttl:        ttl,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// NewTokenServiceFromConfig builds a TokenService from Config
func NewTokenServiceFromConfig(cfg Config, opts ...TokenServiceOption) (*TokenService, error) {
	alg, err := ParseSigningAlgorithm(cfg.GetSigningMethod())
	if err != nil {
		return nil, err
	}

	base := []TokenServiceOption{
		WithTokenIssuer(cfg.GetIssuer()),
		WithTokenAudience(cfg.GetAudience()...),
	}

	return NewTokenService([]byte(cfg.GetSigningKey()), alg, cfg.GetTokenTTL(), append(base, opts...)...), nil
}

// Algorithm returns the configured signing algorithm
func (ts *TokenService) Algorithm() SigningAlgorithm {
	return ts.algorithm
}

// TTL returns the default token lifetime
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Encode signs claims and returns the compact token and its expiration.
// iat, exp and jti are always assigned here; values present in claims are
// overwritten.
func (ts *TokenService) Encode(claims Claims, opts ...IssueOption) (string, time.Time, error) {
	issue := issueOptions{ttl: ts.ttl}
	for _, opt := range opts {
		if opt != nil {
			opt(&issue)
		}
	}

	if issue.ttl < 0 {
		return "", time.Time{}, goerrors.New("token TTL must be non-negative", goerrors.CategoryBadInput)
	}

	if strings.TrimSpace(claims.Subject()) == "" {
		return "", time.Time{}, goerrors.New("token subject is required", goerrors.CategoryBadInput)
	}

	issuedAt := ts.now()
	expiresAt := issuedAt.Add(issue.ttl)

	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	claims.RegisteredClaims.NotBefore = nil
	claims.RegisteredClaims.Issuer = ts.issuer
	claims.RegisteredClaims.Audience = nil
	if len(ts.audience) > 0 {
		claims.RegisteredClaims.Audience = append(jwt.ClaimStrings(nil), ts.audience...)
	}
	claims.RegisteredClaims.ID = ""
	ensureTokenID(&claims.RegisteredClaims)
	claims.Roles = append([]string(nil), claims.Roles...)

	token := jwt.NewWithClaims(ts.algorithm.method(), &claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, claims.Expires(), nil
}

// Decode parses and validates a token string. Every failure, whatever its
// cause, is reported as ErrInvalidToken.
func (ts *TokenService) Decode(tokenString string) (*Claims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ts.algorithm.method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return ts.signingKey, nil
	}, parserOptions...)
	if err != nil {
		ts.logger.Debug("token decode rejected", "error", err)
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		ts.logger.Debug("token decode rejected", "error", "token not valid")
		return nil, ErrInvalidToken
	}

	// exp is second precision, a token minted with a zero TTL is expired
	// from the moment it is issued.
	if !claims.Expires().After(ts.now()) {
		ts.logger.Debug("token decode rejected", "error", "token expired")
		return nil, ErrInvalidToken
	}

	return claims, nil
}
