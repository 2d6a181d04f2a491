package auth

import (
	"time"

	"github.com/goliatone/go-folio-auth/token"
)

// AuthClaims is the verified view of a token handed to handlers
type AuthClaims interface {
	Subject() string
	UserID() string
	Username() string
	Email() string
	Role() string
	Roles() []string
	TokenID() string
	HasRole(role string) bool
	HasAnyRole(roles ...string) bool
	Expires() time.Time
	IssuedAt() time.Time
	ClaimSet() token.ClaimSet
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	Set token.ClaimSet
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// NewJWTClaims wraps a claim set.
func NewJWTClaims(set token.ClaimSet) *JWTClaims {
	return &JWTClaims{Set: set}
}

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.Set.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	return c.Set.Subject
}

func (c *JWTClaims) Username() string {
	return c.Set.Name
}

func (c *JWTClaims) Email() string {
	return c.Set.Email
}

// Role returns the primary role
func (c *JWTClaims) Role() string {
	return c.Set.PrimaryRole()
}

// Roles returns a copy of every role claim
func (c *JWTClaims) Roles() []string {
	return append([]string(nil), c.Set.Roles...)
}

func (c *JWTClaims) TokenID() string {
	return c.Set.TokenID
}

// HasRole checks if the user has a specific role
func (c *JWTClaims) HasRole(role string) bool {
	return c.Set.HasRole(role)
}

// HasAnyRole checks for an intersection with roles. No roles means any
// authenticated caller matches.
func (c *JWTClaims) HasAnyRole(roles ...string) bool {
	return c.Set.HasAnyRole(roles...)
}

// SetExtra adds an unprotected claim.
func (c *JWTClaims) SetExtra(key, value string) {
	if c.Set.Extra == nil {
		c.Set.Extra = map[string]string{}
	}
	c.Set.Extra[key] = value
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	return c.Set.ExpiresAt
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	return c.Set.IssuedAt
}

// ClaimSet returns a copy of the underlying claims
func (c *JWTClaims) ClaimSet() token.ClaimSet {
	return c.Set.Clone()
}
