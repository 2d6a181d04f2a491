package client

import (
	"slices"
	"time"

	"github.com/goliatone/go-folio-auth/token"
)

// Identity is the client side view of who is signed in. The zero value is
// the anonymous identity. Identities are values; copies never share state.
type Identity struct {
	Authenticated bool      `json:"authenticated"`
	UserID        string    `json:"userId,omitempty"`
	UserName      string    `json:"userName,omitempty"`
	Email         string    `json:"email,omitempty"`
	Role          string    `json:"role,omitempty"`
	Roles         []string  `json:"roles,omitempty"`
	SessionID     string    `json:"sessionId,omitempty"`
	ExpiresAt     time.Time `json:"expiresAt,omitzero"`
}

// IdentityFromClaims builds an authenticated identity from decoded claims.
func IdentityFromClaims(claims token.ClaimSet) (Identity, error) {
	if claims.Subject == "" {
		return Identity{}, token.WithCause(token.ErrClaimsInvalid, nil, map[string]any{
			"claim": token.ClaimSubject,
		})
	}

	return Identity{
		Authenticated: true,
		UserID:        claims.Subject,
		UserName:      claims.Name,
		Email:         claims.Email,
		Role:          claims.PrimaryRole(),
		Roles:         slices.Clone(claims.Roles),
		SessionID:     claims.TokenID,
		ExpiresAt:     claims.ExpiresAt,
	}, nil
}

func (i Identity) IsAnonymous() bool {
	return !i.Authenticated
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// HasAnyRole reports whether any of roles is held. An empty list matches.
func (i Identity) HasAnyRole(roles ...string) bool {
	return len(roles) == 0 || slices.ContainsFunc(roles, i.HasRole)
}

// Expired reports whether the identity carries an expiry at or before now.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !i.ExpiresAt.After(now)
}

// Equal compares two identities field by field.
func (i Identity) Equal(o Identity) bool {
	return i.Authenticated == o.Authenticated &&
		i.UserID == o.UserID &&
		i.UserName == o.UserName &&
		i.Email == o.Email &&
		i.Role == o.Role &&
		slices.Equal(i.Roles, o.Roles) &&
		i.SessionID == o.SessionID &&
		i.ExpiresAt.Equal(o.ExpiresAt)
}

func (i Identity) clone() Identity {
	i.Roles = slices.Clone(i.Roles)
	return i
}
