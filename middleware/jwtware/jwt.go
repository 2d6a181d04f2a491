package jwtware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-folio-auth/token"
)

const (
	defaultContextKey  = "user"
	defaultTokenLookup = "header:" + fiber.HeaderAuthorization
	defaultAuthScheme  = "Bearer"
)

// ErrJWTMissingOrMalformed is returned when no token could be extracted.
var ErrJWTMissingOrMalformed = token.WithMessage(token.ErrMalformedToken, "missing or malformed JWT")

// errTokenAbsent is returned by extractors whose source is empty. It
// renders like ErrJWTMissingOrMalformed; only Optional tells them apart.
var errTokenAbsent = token.WithMessage(token.ErrMalformedToken, "missing or malformed JWT")

// TokenValidator interface for validating tokens without import cycles
// This mirrors the TokenService.Validate method from the auth package
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// ValidatorFunc adapts a function to TokenValidator.
type ValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate implements TokenValidator.
func (f ValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	return f(tokenString)
}

// AuthClaims interface for structured claims without import cycles
// This mirrors the AuthClaims interface from the auth package
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	Roles() []string
	HasRole(role string) bool
	HasAnyRole(roles ...string) bool
}

// ValidationListener is invoked after a token has been validated but before authorization checks.
type ValidationListener func(c *fiber.Ctx, claims AuthClaims) error

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	ContextKey     string
	TokenLookup    string
	AuthScheme     string
	// TokenValidator is required for token validation
	TokenValidator TokenValidator

	// Optional lets requests without a token through as anonymous. A token
	// that is present but invalid is still rejected.
	Optional bool

	// RequiredRoles rejects verified callers that hold none of the roles with 403.
	RequiredRoles []string
	// RoleChecker replaces the default intersection check for RequiredRoles.
	RoleChecker func(claims AuthClaims, roles []string) bool

	// ContextEnricher is an optional function to propagate claims to the standard
	// Go context. If provided, it will be called after successful token validation.
	ContextEnricher func(c context.Context, claims AuthClaims) context.Context

	// ValidationListeners are invoked after token validation succeeds.
	ValidationListeners []ValidationListener
}

// New returns the authorization gate middleware.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawToken(c, extractors)
		if err != nil {
			if cfg.Optional && goerrors.Is(err, errTokenAbsent) {
				return c.Next()
			}
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.TokenValidator.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if err := cfg.runValidationListeners(c, claims); err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if err := performAuthorizationChecks(claims, cfg); err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, claims)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), claims))
		}

		return cfg.SuccessHandler(c)
	}
}

// RequireRoles rejects requests without verified claims with 401 and verified
// callers holding none of roles with 403. It must run after New.
func RequireRoles(roles ...string) fiber.Handler {
	return RequireRolesWithKey(defaultContextKey, roles...)
}

// RequireRolesWithKey is RequireRoles for a custom locals key.
func RequireRolesWithKey(key string, roles ...string) fiber.Handler {
	if key == "" {
		key = defaultContextKey
	}
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(key).(AuthClaims)
		if !ok || claims == nil {
			return defaultErrorHandler(c, ErrJWTMissingOrMalformed)
		}
		if !claims.HasAnyRole(roles...) {
			return defaultErrorHandler(c, forbidden(roles))
		}
		return c.Next()
	}
}

// performAuthorizationChecks performs RBAC authorization checks using the configured options
func performAuthorizationChecks(claims AuthClaims, cfg Config) error {
	if len(cfg.RequiredRoles) == 0 {
		return nil
	}

	allowed := claims.HasAnyRole(cfg.RequiredRoles...)
	if cfg.RoleChecker != nil {
		allowed = cfg.RoleChecker(claims, cfg.RequiredRoles)
	}

	if !allowed {
		return forbidden(cfg.RequiredRoles)
	}
	return nil
}

func forbidden(roles []string) error {
	return token.WithCause(token.ErrForbidden, nil, map[string]any{
		"required_roles": roles,
	})
}

// ExtractRawToken returns the first token found by extractors. A source
// holding something unusable takes precedence over empty ones in the error.
func ExtractRawToken(c *fiber.Ctx, extractors []JWTExtractor) (string, error) {
	err := error(errTokenAbsent)

	for _, extractor := range extractors {
		raw, xerr := extractor(c)
		if raw != "" && xerr == nil {
			return raw, nil
		}
		if xerr != nil && !goerrors.Is(xerr, errTokenAbsent) {
			err = xerr
		}
	}

	return "", err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.TokenValidator == nil {
		panic("AUTH: JWT middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = defaultContextKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = defaultAuthScheme
	}

	return cfg
}

// defaultErrorHandler writes the error kind and message with the status
// attached to err.
func defaultErrorHandler(c *fiber.Ctx, err error) error {
	return c.Status(token.StatusCode(err)).JSON(fiber.Map{
		"success": false,
		"message": errorMessage(err),
		"code":    string(token.KindOf(err)),
	})
}

func errorMessage(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Message != "" {
		return rich.Message
	}
	return "invalid or expired token"
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(c *fiber.Ctx, claims AuthClaims) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(c, claims); err != nil {
			return err
		}
	}
	return nil
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := defaultAuthScheme
	if len(authSchemes) > 0 {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	// header:Authorization,cookie:jwt,query:auth_token,param:token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, jwtFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, jwtFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(parts[1]))
		}
	}

	return extractors
}

type JWTExtractor func(c *fiber.Ctx) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := strings.TrimSpace(c.Get(header))
		if a == "" {
			return "", errTokenAbsent
		}
		l := len(authScheme)
		if l == 0 {
			return "", ErrJWTMissingOrMalformed
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if raw := strings.TrimSpace(a[l:]); raw != "" {
				return raw, nil
			}
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		raw := c.Query(param)
		if raw == "" {
			return "", errTokenAbsent
		}
		return raw, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		raw := c.Params(param)
		if raw == "" {
			return "", errTokenAbsent
		}
		return raw, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		raw := c.Cookies(name)
		if raw == "" {
			return "", errTokenAbsent
		}
		return raw, nil
	}
}
