package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// UpdateUserMessage is a partial update, nil fields are left unchanged
type UpdateUserMessage struct {
	Username string    `json:"-"`
	Email    *string   `json:"email,omitempty"`
	FullName *string   `json:"full_name,omitempty"`
	Password *string   `json:"password,omitempty"`
	Disabled *bool     `json:"disabled,omitempty"`
	Roles    *[]string `json:"roles,omitempty"`
}

func (e UpdateUserMessage) Type() string { return "user.update" }

// Validate will run validation rules
func (e UpdateUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Username, validation.Required),
		validation.Field(&e.Email, validation.Length(6, 100), is.Email),
		validation.Field(&e.FullName, validation.RuneLength(1, 200)),
		validation.Field(&e.Password, validation.RuneLength(8, 32)),
	)
}

// Empty reports whether the message changes nothing
func (e UpdateUserMessage) Empty() bool {
	return e.Email == nil && e.FullName == nil && e.Password == nil &&
		e.Disabled == nil && e.Roles == nil
}

// UpdateUserHandler applies profile and administrative changes
type UpdateUserHandler struct {
	users   Users
	hasher  PasswordHasher
	sink    ActivitySink
	logger  Logger
	timeout time.Duration
}

func NewUpdateUserHandler(users Users, hasher PasswordHasher) *UpdateUserHandler {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &UpdateUserHandler{
		users:   users,
		hasher:  hasher,
		sink:    noopActivitySink{},
		logger:  defLogger{},
		timeout: DefaultRequestTimeout,
	}
}

func (h *UpdateUserHandler) WithLogger(logger Logger) *UpdateUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *UpdateUserHandler) WithActivitySink(sink ActivitySink) *UpdateUserHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *UpdateUserHandler) WithTimeout(timeout time.Duration) *UpdateUserHandler {
	if timeout > 0 {
		h.timeout = timeout
	}
	return h
}

func (h *UpdateUserHandler) Execute(ctx context.Context, event UpdateUserMessage) (*Principal, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateUserHandler) execute(ctx context.Context, event UpdateUserMessage) (*Principal, error) {
	if event.Email != nil {
		email := strings.TrimSpace(*event.Email)
		event.Email = &email
	}

	if err := event.Validate(); err != nil {
		return nil, validationError(err)
	}

	if event.Email != nil && *event.Email == "" {
		return nil, invalidInput("email can not be empty")
	}

	if event.Password != nil && *event.Password == "" {
		return nil, invalidInput("password can not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	user, err := h.users.FindByUsername(ctx, event.Username)
	if err != nil {
		return nil, err
	}

	if event.Empty() {
		return user.Principal(), nil
	}

	fields := map[string]any{}

	if event.Email != nil && *event.Email != user.Email {
		other, err := h.users.FindByEmail(ctx, *event.Email)
		switch {
		case err == nil && other.ID != user.ID:
			return nil, ErrUserExists
		case err != nil && !IsUserNotFound(err):
			return nil, err
		}
		fields[FieldEmail] = *event.Email
	}

	if event.FullName != nil {
		fields[FieldFullName] = *event.FullName
	}

	if event.Password != nil {
		hash, err := h.hasher.Hash(*event.Password)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
		fields[FieldPasswordHash] = hash
	}

	if event.Disabled != nil {
		fields[FieldDisabled] = *event.Disabled
	}

	if event.Roles != nil {
		fields[FieldRoles] = NormalizeRoles(*event.Roles)
	}

	if len(fields) > 0 {
		if _, err := h.users.UpdateFields(ctx, user.ID, fields); err != nil {
			h.logger.Error("update user failed", "username", user.Username, "error", err)
			return nil, err
		}
	}

	updated, err := h.users.FindByUsername(ctx, user.Username)
	if err != nil {
		return nil, err
	}

	changed := make([]string, 0, len(fields))
	for name := range fields {
		changed = append(changed, name)
	}
	recordActivity(ctx, h.sink, h.logger, ActivityEvent{
		EventType: ActivityEventUserUpdated,
		Username:  updated.Username,
		UserID:    updated.ID.String(),
		Metadata: map[string]any{
			"fields": changed,
		},
	})

	return updated.Principal(), nil
}
