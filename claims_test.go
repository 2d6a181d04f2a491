package auth

import (
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-folio-auth/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTClaimsAccessors(t *testing.T) {
	iat := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	claims := NewJWTClaims(token.ClaimSet{
		Subject:   "user123",
		Name:      "alice",
		Email:     "alice@example.com",
		Roles:     []string{RoleAdmin, RoleUser},
		TokenID:   "jti-1",
		IssuedAt:  iat,
		ExpiresAt: iat.Add(time.Hour),
	})

	assert.Equal(t, "user123", claims.Subject())
	assert.Equal(t, "user123", claims.UserID())
	assert.Equal(t, "alice", claims.Username())
	assert.Equal(t, "alice@example.com", claims.Email())
	assert.Equal(t, RoleAdmin, claims.Role())
	assert.Equal(t, "jti-1", claims.TokenID())
	assert.Equal(t, iat, claims.IssuedAt())
	assert.Equal(t, iat.Add(time.Hour), claims.Expires())

	roles := claims.Roles()
	roles[0] = "Root"
	assert.Equal(t, RoleAdmin, claims.Role(), "Roles returns a copy")

	set := claims.ClaimSet()
	set.Roles[0] = "Root"
	assert.Equal(t, RoleAdmin, claims.Role(), "ClaimSet returns a copy")
}

func TestJWTClaimsSetExtra(t *testing.T) {
	claims := NewJWTClaims(token.ClaimSet{Subject: "user123"})
	claims.SetExtra("tenant", "folio")
	assert.Equal(t, "folio", claims.Set.Extra["tenant"])
}

func TestImmutableClaimsGuard(t *testing.T) {
	base := func() *JWTClaims {
		now := time.Now().Truncate(time.Second)
		return NewJWTClaims(token.ClaimSet{
			Subject:   "user123",
			Name:      "alice",
			Email:     "alice@example.com",
			Roles:     []string{RoleUser},
			TokenID:   "jti-1",
			Issuer:    "folio-auth",
			Audience:  []string{"folio-web"},
			IssuedAt:  now,
			ExpiresAt: now.Add(time.Hour),
		})
	}

	mutations := map[string]func(*JWTClaims){
		"sub":   func(c *JWTClaims) { c.Set.Subject = "x" },
		"name":  func(c *JWTClaims) { c.Set.Name = "x" },
		"email": func(c *JWTClaims) { c.Set.Email = "x" },
		"jti":   func(c *JWTClaims) { c.Set.TokenID = "x" },
		"iss":   func(c *JWTClaims) { c.Set.Issuer = "x" },
		"aud":   func(c *JWTClaims) { c.Set.Audience = []string{"x"} },
		"role":  func(c *JWTClaims) { c.Set.Roles = []string{RoleAdmin} },
		"iat":   func(c *JWTClaims) { c.Set.IssuedAt = c.Set.IssuedAt.Add(-time.Minute) },
		"exp":   func(c *JWTClaims) { c.Set.ExpiresAt = c.Set.ExpiresAt.Add(time.Minute) },
		"nbf":   func(c *JWTClaims) { c.Set.NotBefore = time.Now() },
	}

	for claim, mutate := range mutations {
		t.Run(claim, func(t *testing.T) {
			claims := base()
			snapshot := captureImmutableClaims(claims)
			mutate(claims)

			err := snapshot.validate(claims)
			require.Error(t, err)
			assert.Equal(t, ErrImmutableClaimMutation.TextCode, string(token.KindOf(err)))

			var rich *errors.Error
			require.True(t, errors.As(err, &rich))
			assert.Equal(t, claim, rich.Metadata["claim"])
		})
	}

	t.Run("extra claims are allowed", func(t *testing.T) {
		claims := base()
		snapshot := captureImmutableClaims(claims)
		claims.SetExtra("tenant", "folio")
		assert.NoError(t, snapshot.validate(claims))
	})
}

func TestSortRoles(t *testing.T) {
	in := []string{"Editor", RoleUser, RoleAdmin, RoleUser}
	assert.Equal(t, []string{RoleAdmin, RoleUser, "Editor"}, SortRoles(in))
	assert.Equal(t, []string{"Editor", RoleUser, RoleAdmin, RoleUser}, in)
	assert.Equal(t, RoleAdmin, PrimaryRole(in))
	assert.Equal(t, "", PrimaryRole(nil))
}
