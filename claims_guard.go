package auth

import (
	"fmt"
	"slices"
	"time"
)

type immutableClaimsSnapshot struct {
	subject   string
	name      string
	email     string
	tokenID   string
	issuer    string
	audience  []string
	roles     []string
	issuedAt  time.Time
	expiresAt time.Time
	notBefore time.Time
}

func captureImmutableClaims(claims *JWTClaims) immutableClaimsSnapshot {
	set := claims.Set
	return immutableClaimsSnapshot{
		subject:   set.Subject,
		name:      set.Name,
		email:     set.Email,
		tokenID:   set.TokenID,
		issuer:    set.Issuer,
		audience:  slices.Clone(set.Audience),
		roles:     slices.Clone(set.Roles),
		issuedAt:  set.IssuedAt,
		expiresAt: set.ExpiresAt,
		notBefore: set.NotBefore,
	}
}

func (snap immutableClaimsSnapshot) validate(claims *JWTClaims) error {
	set := claims.Set

	checks := []struct {
		claim string
		equal bool
	}{
		{"sub", set.Subject == snap.subject},
		{"name", set.Name == snap.name},
		{"email", set.Email == snap.email},
		{"jti", set.TokenID == snap.tokenID},
		{"iss", set.Issuer == snap.issuer},
		{"aud", slices.Equal(set.Audience, snap.audience)},
		{"role", slices.Equal(set.Roles, snap.roles)},
		{"iat", set.IssuedAt.Equal(snap.issuedAt)},
		{"exp", set.ExpiresAt.Equal(snap.expiresAt)},
		{"nbf", set.NotBefore.Equal(snap.notBefore)},
	}

	for _, check := range checks {
		if !check.equal {
			return immutableClaimViolation(check.claim)
		}
	}

	return nil
}

func immutableClaimViolation(field string) error {
	clone := ErrImmutableClaimMutation.Clone()
	if clone == nil {
		return ErrImmutableClaimMutation
	}
	clone.Message = fmt.Sprintf("immutable claim mutated: %s", field)
	clone.Source = ErrImmutableClaimMutation
	return clone.WithMetadata(map[string]any{"claim": field})
}
