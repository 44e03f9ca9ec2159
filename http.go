package auth

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

const headerAuthorization = "Authorization"

// AuthorizeFunc resolves a principal from a raw token
type AuthorizeFunc func(ctx context.Context, token string) (*Principal, error)

type middlewareConfig struct {
	authScheme   string
	optional     bool
	logger       Logger
	errorHandler router.ErrorHandler
}

// MiddlewareOption configures the auth middleware
type MiddlewareOption func(*middlewareConfig)

// WithAuthScheme sets the expected Authorization scheme, Bearer by default
func WithAuthScheme(scheme string) MiddlewareOption {
	return func(c *middlewareConfig) {
		if scheme != "" {
			c.authScheme = scheme
		}
	}
}

// WithOptionalAuth lets requests without a token through. A token that is
// present but invalid still fails.
func WithOptionalAuth(optional bool) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.optional = optional
	}
}

// WithMiddlewareLogger overrides the logger
func WithMiddlewareLogger(logger Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.logger = normalizeLogger(logger)
	}
}

// WithErrorHandler replaces the default JSON error writer
func WithErrorHandler(handler router.ErrorHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// Authenticated requires a valid token for an active account, roles are not
// checked.
func Authenticated(a *Auther, opts ...MiddlewareOption) router.MiddlewareFunc {
	base := []MiddlewareOption{
		WithAuthScheme(a.Config().GetAuthScheme()),
		WithMiddlewareLogger(a.logger),
	}
	return newAuthMiddleware(a.AuthenticateActive, append(base, opts...)...)
}

func newAuthMiddleware(authorize AuthorizeFunc, opts ...MiddlewareOption) router.MiddlewareFunc {
	cfg := &middlewareConfig{
		authScheme: DefaultAuthScheme,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.errorHandler == nil {
		logger := cfg.logger
		cfg.errorHandler = func(ctx router.Context, err error) error {
			return WriteError(ctx, err, logger)
		}
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			header := ctx.GetString(headerAuthorization, "")

			token, err := BearerToken(header, cfg.authScheme)
			if err != nil {
				if cfg.optional && strings.TrimSpace(header) == "" {
					return next(ctx)
				}
				return cfg.errorHandler(ctx, err)
			}

			principal, err := authorize(ctx.Context(), token)
			if err != nil {
				return cfg.errorHandler(ctx, err)
			}

			setRouterPrincipal(ctx, principal)
			return next(ctx)
		}
	}
}

// BearerToken extracts the token from an Authorization header value. An
// empty header or a different scheme returns ErrUnauthenticated.
func BearerToken(header, authScheme string) (string, error) {
	authScheme = strings.TrimSpace(authScheme)
	if authScheme == "" {
		authScheme = DefaultAuthScheme
	}

	header = strings.TrimSpace(header)
	l := len(authScheme)
	if len(header) > l+1 && header[l] == ' ' && strings.EqualFold(header[:l], authScheme) {
		if token := strings.TrimSpace(header[l:]); token != "" {
			return token, nil
		}
	}
	return "", ErrUnauthenticated
}

// ErrorResponse is the JSON body written for failed requests
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes err as JSON with the status from HTTPStatus. Errors not
// produced by this package are reported as a generic internal error.
func WriteError(ctx router.Context, err error, logger Logger) error {
	logger = normalizeLogger(logger)
	status := HTTPStatus(err)

	body := ErrorResponse{
		Error:   Classify(err),
		Message: http.StatusText(status),
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && body.Error != "" {
		body.Message = richErr.Message
		logger.Debug("request rejected",
			"text_code", richErr.TextCode,
			"category", richErr.Category,
			"path", ctx.OriginalURL(),
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
	} else {
		body.Error = "INTERNAL_ERROR"
		logger.Error("request failed", "error", err, "path", ctx.OriginalURL())
	}

	if status == http.StatusUnauthorized {
		ctx.SetHeader("WWW-Authenticate", DefaultAuthScheme)
	}
	return ctx.JSON(status, body)
}
