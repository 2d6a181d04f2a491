package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-folio-auth/middleware/jwtware"
	"github.com/goliatone/go-print"
)

// RegisterAuthRoutes mounts the auth API on app.
func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Get(controller.Routes.Health, controller.Health).Name("healthz")

	api := app.Group(controller.Routes.Prefix)
	api.Post(controller.Routes.Login, controller.LoginPost).Name("auth.login")
	api.Post(controller.Routes.Register, controller.RegistrationCreate).Name("auth.register")

	api.Get(controller.Routes.Me,
		controller.protected(),
		controller.Me,
	).Name("auth.me")

	api.Get(controller.Routes.Users,
		controller.protected(),
		jwtware.RequireRolesWithKey(contextKeyFrom(controller.Config), RoleAdmin),
		controller.ListUsers,
	).Name("auth.users")

	return controller
}

type AuthControllerRoutes struct {
	Prefix   string
	Login    string
	Register string
	Me       string
	Users    string
	Health   string
}

// HTTPAuthenticator is what the controller needs from Auther.
type HTTPAuthenticator interface {
	Login(ctx context.Context, identifier, password string) (LoginResult, error)
	Register(ctx context.Context, req RegisterRequest) (LoginResult, error)
}

type AuthController struct {
	Debug     bool
	Logger    Logger
	Config    Config
	Users     Users
	Routes    *AuthControllerRoutes
	Auther    HTTPAuthenticator
	Validator TokenValidator
	// Listeners run on every protected route after the token verifies.
	Listeners []ValidationListener
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Logger = normalizeLogger(logger)
		return ac
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Debug = debug
		return ac
	}
}

// WithAuther sets the authenticator. Its validator is used unless
// WithValidator is also given.
func WithAuther(auther *Auther) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		if auther == nil {
			return ac
		}
		ac.Auther = auther
		if ac.Validator == nil {
			ac.Validator = auther.Validator()
		}
		return ac
	}
}

func WithValidator(validator TokenValidator) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Validator = validator
		return ac
	}
}

func WithValidationListeners(listeners ...ValidationListener) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Listeners = append(ac.Listeners, listeners...)
		return ac
	}
}

func WithUsers(users Users) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Users = users
		return ac
	}
}

func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Config = cfg
		return ac
	}
}

func WithRoutes(routes AuthControllerRoutes) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Routes = &routes
		return ac
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Prefix:   "/api/auth",
			Login:    "/login",
			Register: "/register",
			Me:       "/me",
			Users:    "/users",
			Health:   "/healthz",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Validator == nil {
		panic("Missing TokenValidator in auth controller...")
	}

	if c.Config == nil {
		c.Config = DefaultOptions()
	}

	return c
}

func (a *AuthController) protected(roles ...string) fiber.Handler {
	return protectedRoute(a.Config, a.Validator, a.Listeners, roles...)
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		a.logError("login parse payload", err)
		return errorResponse(c, validationError(fmt.Errorf("invalid request body")))
	}

	if err := payload.Validate(); err != nil {
		return errorResponse(c, validationError(err))
	}

	if a.Debug {
		a.Logger.Debug("login request for %s", print.MaybePrettyJSON(map[string]string{
			"username": payload.Username,
		}))
	}

	res, err := a.Auther.Login(c.UserContext(), payload.Username, payload.Password)
	if err != nil {
		a.logError("login", err)
		return a.resultError(c, res, err)
	}

	return c.Status(http.StatusOK).JSON(res)
}

func (a *AuthController) RegistrationCreate(c *fiber.Ctx) error {
	payload := new(RegisterRequest)
	if err := c.BodyParser(payload); err != nil {
		a.logError("register parse payload", err)
		return errorResponse(c, validationError(fmt.Errorf("invalid request body")))
	}

	res, err := a.Auther.Register(c.UserContext(), *payload)
	if err != nil {
		a.logError("register", err)
		return a.resultError(c, res, err)
	}

	if a.Debug {
		a.Logger.Debug("registered %s", print.MaybePrettyJSON(map[string]any{
			"userId":   res.UserID,
			"userName": res.UserName,
			"roles":    res.Roles,
		}))
	}

	return c.Status(http.StatusOK).JSON(res)
}

// ClaimsView is the identity returned by the me endpoint.
type ClaimsView struct {
	Success   bool      `json:"success"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	Roles     []string  `json:"roles"`
	TokenID   string    `json:"tokenId,omitempty"`
	IssuedAt  time.Time `json:"issuedAt,omitzero"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

func (a *AuthController) Me(c *fiber.Ctx) error {
	claims, ok := GetFiberClaims(c, contextKeyFrom(a.Config))
	if !ok {
		return errorResponse(c, jwtware.ErrJWTMissingOrMalformed)
	}

	return c.JSON(ClaimsView{
		Success:   true,
		UserID:    claims.UserID(),
		UserName:  claims.Username(),
		Email:     claims.Email(),
		Role:      claims.Role(),
		Roles:     claims.Roles(),
		TokenID:   claims.TokenID(),
		IssuedAt:  claims.IssuedAt(),
		ExpiresAt: claims.Expires(),
	})
}

// UserView is a user without credentials.
type UserView struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Roles      []string   `json:"roles"`
	LoggedInAt *time.Time `json:"loggedInAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt,omitzero"`
}

func (a *AuthController) ListUsers(c *fiber.Ctx) error {
	if a.Users == nil {
		return c.Status(http.StatusNotImplemented).JSON(ErrorBody{Message: "user listing is not enabled"})
	}

	records, err := a.Users.List(c.UserContext())
	if err != nil {
		a.logError("list users", err)
		return errorResponse(c, err)
	}

	out := make([]UserView, 0, len(records))
	for _, u := range records {
		out = append(out, UserView{
			ID:         u.ID.String(),
			Username:   u.Username,
			Email:      u.Email,
			Roles:      u.RoleNames(),
			LoggedInAt: u.LoggedInAt,
			CreatedAt:  u.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"users":   out,
	})
}

func (a *AuthController) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// resultError writes the failed LoginResult with the status of err, adding
// the error code and field messages.
func (a *AuthController) resultError(c *fiber.Ctx, res LoginResult, err error) error {
	body := ErrorBody{
		Success: false,
		Message: res.Message,
	}

	status := http.StatusInternalServerError
	var rich *errors.Error
	if errors.As(err, &rich) {
		body.Code = rich.TextCode
		if rich.Code >= http.StatusBadRequest {
			status = rich.Code
		}
		if fields, ok := rich.Metadata["fields"].(map[string]any); ok {
			body.Fields = fields
		}
		if body.Message == "" {
			body.Message = rich.Message
		}
	}

	return c.Status(status).JSON(body)
}
