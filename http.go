package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-folio-auth/middleware/jwtware"
	"github.com/goliatone/go-folio-auth/token"
	"github.com/goliatone/go-print"
)

// GateConfig returns the authorization gate configuration for cfg. Verified
// claims are stored under the configured context key and in the request
// user context.
func GateConfig(cfg Config, validator TokenValidator) jwtware.Config {
	return jwtware.Config{
		ContextKey:      contextKeyFrom(cfg),
		TokenValidator:  gateValidator(validator),
		ContextEnricher: ContextEnricherAdapter,
		ErrorHandler:    errorResponse,
	}
}

// ProtectedRoute returns middleware that requires a valid bearer token and,
// when roles are given, at least one of them.
func ProtectedRoute(cfg Config, validator TokenValidator, roles ...string) fiber.Handler {
	return protectedRoute(cfg, validator, nil, roles...)
}

func protectedRoute(cfg Config, validator TokenValidator, listeners []ValidationListener, roles ...string) fiber.Handler {
	gate := GateConfig(cfg, validator)
	gate.RequiredRoles = roles
	RegisterValidationListeners(&gate, listeners...)
	return jwtware.New(gate)
}

// OptionalRoute lets anonymous requests through and still rejects invalid tokens.
func OptionalRoute(cfg Config, validator TokenValidator) fiber.Handler {
	gate := GateConfig(cfg, validator)
	gate.Optional = true
	return jwtware.New(gate)
}

func gateValidator(validator TokenValidator) jwtware.TokenValidator {
	return jwtware.ValidatorFunc(func(raw string) (jwtware.AuthClaims, error) {
		claims, err := validator.Validate(raw)
		if err != nil {
			return nil, err
		}
		return claims, nil
	})
}

func contextKeyFrom(cfg Config) string {
	if cfg == nil || cfg.GetContextKey() == "" {
		return DefaultContextKey
	}
	return cfg.GetContextKey()
}

// ErrorBody is the JSON shape of every failed API response.
type ErrorBody struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func errorResponse(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	status := richErr.Code
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}

	body := ErrorBody{
		Success: false,
		Message: richErr.Message,
		Code:    richErr.TextCode,
	}

	if fields, ok := richErr.Metadata["fields"].(map[string]any); ok {
		body.Fields = fields
	}

	return c.Status(status).JSON(body)
}

func (a *AuthController) logError(op string, err error) {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		a.Logger.Error("%s: %v", op, err)
		return
	}

	if a.Debug {
		a.Logger.Debug("%s: %s [%s] %s", op, richErr.Message, richErr.TextCode, print.MaybePrettyJSON(richErr.Metadata))
		return
	}

	if richErr.Category == errors.CategoryInternal {
		a.Logger.Error("%s: %s", op, richErr.Error())
		return
	}
	a.Logger.Info("%s: %s [%s]", op, richErr.Message, token.KindOf(err))
}
