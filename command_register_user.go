package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

type RegisterUserMessage struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	FullName  *string `json:"full_name,omitempty"`
	Password  string  `json:"password"`
	UseHashid bool    `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Username, validation.Required, validation.Length(3, 50), is.Alphanumeric),
		validation.Field(&e.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&e.FullName, validation.RuneLength(1, 200)),
		validation.Field(&e.Password, validation.Required, validation.RuneLength(8, 32)),
	)
}

// RegisterUserHandler creates accounts. New users always get DefaultRole.
type RegisterUserHandler struct {
	users   Users
	hasher  PasswordHasher
	sink    ActivitySink
	logger  Logger
	timeout time.Duration

	deterministicIDs bool
}

func NewRegisterUserHandler(users Users, hasher PasswordHasher) *RegisterUserHandler {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &RegisterUserHandler{
		users:   users,
		hasher:  hasher,
		sink:    noopActivitySink{},
		logger:  defLogger{},
		timeout: DefaultRequestTimeout,
	}
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *RegisterUserHandler) WithTimeout(timeout time.Duration) *RegisterUserHandler {
	if timeout > 0 {
		h.timeout = timeout
	}
	return h
}

// WithDeterministicIDs derives every new user id from the email with hashid,
// as if each message had UseHashid set.
func (h *RegisterUserHandler) WithDeterministicIDs(enabled bool) *RegisterUserHandler {
	h.deterministicIDs = enabled
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*Principal, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*Principal, error) {
	event.Username = strings.TrimSpace(event.Username)
	event.Email = strings.TrimSpace(event.Email)

	if err := event.Validate(); err != nil {
		return nil, validationError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	hash, err := h.hasher.Hash(event.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Username:     event.Username,
		Email:        event.Email,
		FullName:     event.FullName,
		PasswordHash: hash,
		Roles:        []string{DefaultRole},
	}

	if event.UseHashid || h.deterministicIDs {
		id, err := hashid.NewUUID(event.Email)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive user id")
		}
		user.ID = id
	}

	id, err := h.users.Insert(ctx, user)
	if err != nil {
		if !IsUserExists(err) {
			h.logger.Error("register user failed", "error", err)
		}
		return nil, err
	}
	user.ID = id

	recordActivity(ctx, h.sink, h.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Username:  user.Username,
		UserID:    id.String(),
	})

	return user.Principal(), nil
}

// validationError turns ozzo validation errors into an INVALID_INPUT error
// carrying the field messages as metadata.
func validationError(err error) error {
	fields := map[string]any{}
	if errs, ok := err.(validation.Errors); ok {
		for field, fieldErr := range errs {
			fields[field] = fieldErr.Error()
		}
	}

	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid request payload").
		WithTextCode(TextCodeInvalidInput).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(fields)
}
