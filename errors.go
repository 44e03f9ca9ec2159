package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodeInvalidToken          = "INVALID_TOKEN"
	TextCodeUnauthenticated       = "UNAUTHENTICATED"
	TextCodeAccountDisabled       = "ACCOUNT_DISABLED"
	TextCodeAccessDenied          = "ACCESS_DENIED"
	TextCodeRepositoryUnavailable = "REPOSITORY_UNAVAILABLE"
	TextCodeUserNotFound          = "USER_NOT_FOUND"
	TextCodeUserExists            = "USER_EXISTS"
	TextCodeMismatchedPassword    = "MISMATCHED_PASSWORD"
	TextCodeInvalidConfig         = "INVALID_CONFIG"
	TextCodeInvalidInput          = "INVALID_INPUT"
)

// ErrInvalidCredentials is returned by Login for an unknown user or a wrong
// password. Both cases share the same value.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidToken covers malformed, forged and expired tokens.
var ErrInvalidToken = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated is returned when no principal can be resolved from a token.
var ErrUnauthenticated = goerrors.New("could not validate credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountDisabled is returned for a valid principal whose account is deactivated.
var ErrAccountDisabled = goerrors.New("inactive user", goerrors.CategoryBadInput).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(goerrors.CodeBadRequest)

// ErrAccessDenied is returned when an active principal lacks every required role.
var ErrAccessDenied = goerrors.New("you don't have permission for this operation", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAccessDenied).
	WithCode(goerrors.CodeForbidden)

// ErrRepositoryUnavailable marks infrastructure failures of the user store.
var ErrRepositoryUnavailable = goerrors.New("user repository unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeRepositoryUnavailable).
	WithCode(http.StatusServiceUnavailable)

// ErrUserNotFound is the repository level not found error.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUserExists is returned on a username or email conflict.
var ErrUserExists = goerrors.New("username or email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeUserExists).
	WithCode(goerrors.CodeConflict)

// ErrMismatchedHashAndPassword is returned by ComparePasswordAndHash
var ErrMismatchedHashAndPassword = goerrors.New("password does not match hash", goerrors.CategoryAuth).
	WithTextCode(TextCodeMismatchedPassword).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidConfig is returned by Config.Validate
var ErrInvalidConfig = goerrors.New("invalid auth configuration", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidConfig).
	WithCode(goerrors.CodeBadRequest)

// repositoryUnavailable wraps an infrastructure error so callers can tell
// outages apart from authentication failures.
func repositoryUnavailable(err error) error {
	if err == nil {
		return nil
	}
	if IsRepositoryUnavailable(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, ErrRepositoryUnavailable.Message).
		WithTextCode(TextCodeRepositoryUnavailable).
		WithCode(http.StatusServiceUnavailable)
}

// Classify returns the stable text code for errors produced by this package,
// or an empty string for anything else.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}

	return ""
}

// HTTPStatus maps an error to the status code the surrounding service should use.
func HTTPStatus(err error) int {
	switch Classify(err) {
	case "":
		if err == nil {
			return http.StatusOK
		}
		return http.StatusInternalServerError
	case TextCodeInvalidCredentials, TextCodeInvalidToken, TextCodeUnauthenticated:
		return http.StatusUnauthorized
	case TextCodeAccountDisabled, TextCodeInvalidInput:
		return http.StatusBadRequest
	case TextCodeAccessDenied:
		return http.StatusForbidden
	case TextCodeRepositoryUnavailable:
		return http.StatusServiceUnavailable
	case TextCodeUserNotFound:
		return http.StatusNotFound
	case TextCodeUserExists:
		return http.StatusConflict
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code >= 400 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}

func IsInvalidCredentials(err error) bool { return Classify(err) == TextCodeInvalidCredentials }

func IsInvalidToken(err error) bool { return Classify(err) == TextCodeInvalidToken }

func IsUnauthenticated(err error) bool { return Classify(err) == TextCodeUnauthenticated }

func IsAccountDisabled(err error) bool { return Classify(err) == TextCodeAccountDisabled }

func IsAccessDenied(err error) bool { return Classify(err) == TextCodeAccessDenied }

func IsRepositoryUnavailable(err error) bool {
	return Classify(err) == TextCodeRepositoryUnavailable
}

func IsUserNotFound(err error) bool { return Classify(err) == TextCodeUserNotFound }

func IsUserExists(err error) bool { return Classify(err) == TextCodeUserExists }
