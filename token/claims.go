package token

import (
	"slices"
	"time"
)

// Canonical claim names.
const (
	ClaimSubject   = "sub"
	ClaimName      = "name"
	ClaimEmail     = "email"
	ClaimRole      = "role"
	ClaimTokenID   = "jti"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
	ClaimNotBefore = "nbf"
	ClaimIssuer    = "iss"
	ClaimAudience  = "aud"
)

// claimAliases maps long-form claim URIs emitted by other identity stacks to
// the canonical short names.
var claimAliases = map[string]string{
	"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier": ClaimSubject,
	"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name":           ClaimName,
	"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress":   ClaimEmail,
	"http://schemas.microsoft.com/ws/2008/06/identity/claims/role":         ClaimRole,
	"nameid":      ClaimSubject,
	"unique_name": ClaimName,
	"roles":       ClaimRole,
}

// CanonicalName returns the short claim name for key.
func CanonicalName(key string) string {
	if short, ok := claimAliases[key]; ok {
		return short
	}
	return key
}

// ClaimSet is the typed payload of a signed token. Claims the codec does not
// recognize are kept verbatim in Extra.
type ClaimSet struct {
	Subject   string
	Name      string
	Email     string
	Roles     []string
	TokenID   string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	NotBefore time.Time
	Extra     map[string]string
}

// HasRole reports whether role is present.
func (c ClaimSet) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// HasAnyRole reports whether any of roles is present. An empty list matches.
func (c ClaimSet) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// PrimaryRole returns the first role or an empty string.
func (c ClaimSet) PrimaryRole() string {
	if len(c.Roles) == 0 {
		return ""
	}
	return c.Roles[0]
}

// Expired reports whether the claim set has an expiry at or before now.
func (c ClaimSet) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now)
}

// Get returns a claim by canonical name, looking at typed fields first.
func (c ClaimSet) Get(name string) (string, bool) {
	switch CanonicalName(name) {
	case ClaimSubject:
		return c.Subject, c.Subject != ""
	case ClaimName:
		return c.Name, c.Name != ""
	case ClaimEmail:
		return c.Email, c.Email != ""
	case ClaimTokenID:
		return c.TokenID, c.TokenID != ""
	case ClaimIssuer:
		return c.Issuer, c.Issuer != ""
	}
	v, ok := c.Extra[name]
	return v, ok
}

// Clone returns a deep copy.
func (c ClaimSet) Clone() ClaimSet {
	out := c
	out.Roles = slices.Clone(c.Roles)
	out.Audience = slices.Clone(c.Audience)
	if c.Extra != nil {
		out.Extra = make(map[string]string, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
