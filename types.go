package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated account
type Identity interface {
	ID() string
	Username() string
	Email() string
	// Role is the primary role, Roles holds every assigned role name
	Role() string
	Roles() []string
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenTTL() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetDefaultRole() string
	GetMinPasswordLength() int
	GetContextKey() string
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// AccountRegisterer creates new accounts with the default role assigned
type AccountRegisterer interface {
	RegisterUser(ctx context.Context, email, username, password string) (Identity, error)
}

// TokenService signs and validates identity tokens
type TokenService interface {
	NewClaims(identity Identity) *JWTClaims
	Generate(identity Identity) (string, error)
	SignClaims(claims *JWTClaims) (string, error)
	TokenValidator
}

// TokenValidator verifies a raw token and returns its claims
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// LoginResult is returned by Login and Register. On failure only Success and
// Message are set.
type LoginResult struct {
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	Token         string    `json:"token,omitempty"`
	UserID        string    `json:"userId,omitempty"`
	UserName      string    `json:"userName,omitempty"`
	Email         string    `json:"email,omitempty"`
	Role          string    `json:"role,omitempty"`
	Roles         []string  `json:"roles,omitempty"`
	SubjectRoleID string    `json:"subjectRoleId,omitempty"`
	ExpiresAt     time.Time `json:"expiresAt,omitzero"`
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
