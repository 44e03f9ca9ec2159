package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

const maxRequestBody = 1 << 20

type AuthControllerRoutes struct {
	Token string
	Users string
	Me    string
	Admin string
}

type AuthController struct {
	Debug    bool
	Logger   Logger
	Auther   *Auther
	Register *RegisterUserHandler
	Update   *UpdateUserHandler
	Routes   *AuthControllerRoutes
	Timeout  time.Duration
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

// NewAuthController wires the handlers used by the routes. The auther and
// users store are required.
func NewAuthController(auther *Auther, users Users, opts ...AuthControllerOption) *AuthController {
	if auther == nil {
		panic("Missing Auther in auth controller...")
	}

	if users == nil {
		panic("Missing Users in auth controller...")
	}

	c := &AuthController{
		Logger:  defLogger{},
		Auther:  auther,
		Timeout: auther.Config().GetRequestTimeout(),
		Routes: &AuthControllerRoutes{
			Token: "/token",
			Users: "/users",
			Me:    "/users/me",
			Admin: "/admin/users/:username",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	c.Register = NewRegisterUserHandler(users, auther.hasher).
		WithLogger(c.Logger).
		WithActivitySink(auther.activitySink).
		WithTimeout(c.Timeout).
		WithDeterministicIDs(auther.Config().GetDeterministicIDs())
	c.Update = NewUpdateUserHandler(users, auther.hasher).
		WithLogger(c.Logger).
		WithActivitySink(auther.activitySink).
		WithTimeout(c.Timeout)

	return c
}

// RegisterAuthRoutes mounts the controller on app
func RegisterAuthRoutes[T any](app router.Router[T], controller *AuthController) {
	authenticated := Authenticated(controller.Auther, WithMiddlewareLogger(controller.Logger))
	admin := controller.Auther.RequireAnyRole(RoleAdmin).Middleware(
		WithAuthScheme(controller.Auther.Config().GetAuthScheme()),
		WithMiddlewareLogger(controller.Logger),
	)

	app.Post(controller.Routes.Token, controller.TokenPost).
		SetName("token.post")
	app.Post(controller.Routes.Users, controller.RegistrationCreate).
		SetName("users.post")
	app.Get(controller.Routes.Me, controller.MeGet, authenticated).
		SetName("me.get")
	app.Patch(controller.Routes.Me, controller.MePatch, authenticated).
		SetName("me.patch")
	app.Patch(controller.Routes.Admin, controller.AdminPatch, admin).
		SetName("admin-users.patch")
}

// LoginRequest payload
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// TokenResponse is returned by the token endpoint
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (a *AuthController) TokenPost(ctx router.Context) error {
	payload := LoginRequest{}

	if isJSONRequest(ctx) {
		if err := decodeJSON(ctx, &payload); err != nil {
			return WriteError(ctx, err, a.Logger)
		}
	} else if err := ctx.Bind(&payload); err != nil {
		return WriteError(ctx, invalidInput("failed to parse form"), a.Logger)
	}

	if err := payload.Validate(); err != nil {
		return WriteError(ctx, validationError(err), a.Logger)
	}

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	token, expiresAt, err := a.Auther.Login(reqCtx, payload.Username, payload.Password)
	if err != nil {
		return WriteError(ctx, err, a.Logger)
	}

	ctx.SetHeader("Cache-Control", "no-store")
	return ctx.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

// RegistrationCreatePayload is the registration payload
type RegistrationCreatePayload struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	FullName *string `json:"full_name,omitempty"`
	Password string  `json:"password"`
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := RegistrationCreatePayload{}
	if err := decodeJSON(ctx, &payload); err != nil {
		return WriteError(ctx, err, a.Logger)
	}

	if a.Debug {
		a.Logger.Debug("register user", "payload", print.MaybePrettyJSON(map[string]any{
			"username": payload.Username,
			"email":    payload.Email,
		}))
	}

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	principal, err := a.Register.Execute(reqCtx, RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		FullName: payload.FullName,
		Password: payload.Password,
	})
	if err != nil {
		return WriteError(ctx, err, a.Logger)
	}

	return ctx.JSON(http.StatusCreated, principal)
}

func (a *AuthController) MeGet(ctx router.Context) error {
	principal, ok := PrincipalFromRouterContext(ctx)
	if !ok {
		return WriteError(ctx, ErrUnauthenticated, a.Logger)
	}
	return ctx.JSON(http.StatusOK, principal)
}

// ProfileUpdatePayload holds the fields a user can change on its own account
type ProfileUpdatePayload struct {
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Password *string `json:"password,omitempty"`
}

func (a *AuthController) MePatch(ctx router.Context) error {
	principal, ok := PrincipalFromRouterContext(ctx)
	if !ok {
		return WriteError(ctx, ErrUnauthenticated, a.Logger)
	}

	payload := ProfileUpdatePayload{}
	if err := decodeJSON(ctx, &payload); err != nil {
		return WriteError(ctx, err, a.Logger)
	}

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	updated, err := a.Update.Execute(reqCtx, UpdateUserMessage{
		Username: principal.Username,
		Email:    payload.Email,
		FullName: payload.FullName,
		Password: payload.Password,
	})
	if err != nil {
		return WriteError(ctx, err, a.Logger)
	}

	return ctx.JSON(http.StatusOK, updated)
}

// AdminUpdatePayload holds the administrative fields of an account
type AdminUpdatePayload struct {
	Roles    *[]string `json:"roles,omitempty"`
	Disabled *bool     `json:"disabled,omitempty"`
}

func (a *AuthController) AdminPatch(ctx router.Context) error {
	payload := AdminUpdatePayload{}
	if err := decodeJSON(ctx, &payload); err != nil {
		return WriteError(ctx, err, a.Logger)
	}

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	updated, err := a.Update.Execute(reqCtx, UpdateUserMessage{
		Username: ctx.Param("username"),
		Roles:    payload.Roles,
		Disabled: payload.Disabled,
	})
	if err != nil {
		return WriteError(ctx, err, a.Logger)
	}

	return ctx.JSON(http.StatusOK, updated)
}

func (a *AuthController) requestContext(ctx router.Context) (context.Context, context.CancelFunc) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return context.WithTimeout(ctx.Context(), timeout)
}

func isJSONRequest(ctx router.Context) bool {
	mediaType, _, err := mime.ParseMediaType(ctx.GetString("Content-Type", ""))
	if err != nil {
		return false
	}
	return strings.EqualFold(mediaType, "application/json")
}

// decodeJSON rejects oversized bodies and unknown fields
func decodeJSON(ctx router.Context, dst any) error {
	body := ctx.Body()
	if len(body) > maxRequestBody {
		return invalidInput("request body too large")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidInput("failed to parse request body")
	}
	return nil
}
