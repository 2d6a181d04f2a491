package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// DefaultContextKey is the fiber locals key used by the JWT middleware.
const DefaultContextKey = "user"

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok && raw != nil
}

// GetFiberClaims extracts the AuthClaims from fiber locals, falling back to
// the request user context.
func GetFiberClaims(c *fiber.Ctx, key string) (AuthClaims, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	if claims, ok := c.Locals(key).(AuthClaims); ok && claims != nil {
		return claims, true
	}
	return GetClaims(c.UserContext())
}

// HasRole is a convenience function to check roles directly from the standard context
func HasRole(ctx context.Context, roles ...string) bool {
	claims, ok := GetClaims(ctx)
	if !ok {
		return false
	}
	return claims.HasAnyRole(roles...)
}
