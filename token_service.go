package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-folio-auth/token"
	"github.com/google/uuid"
)

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   []string
	logger     Logger
	now        func() time.Time
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, ttl time.Duration, issuer string, audience []string, logger Logger) *TokenServiceImpl {
	return &TokenServiceImpl{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		audience:   append([]string(nil), audience...),
		logger:     normalizeLogger(logger),
		now:        time.Now,
	}
}

// NewTokenServiceFromConfig builds a TokenService from Config.
func NewTokenServiceFromConfig(cfg Config, logger Logger) *TokenServiceImpl {
	return NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetTokenTTL(), cfg.GetIssuer(), cfg.GetAudience(), logger)
}

// WithClock replaces the time source used for issuing and validating.
func (ts *TokenServiceImpl) WithClock(now func() time.Time) *TokenServiceImpl {
	if now != nil {
		ts.now = now
	}
	return ts
}

// TTL is the lifetime of issued tokens.
func (ts *TokenServiceImpl) TTL() time.Duration {
	return ts.ttl
}

// NewClaims builds the protected claims for identity. The token id is fresh
// on every call.
func (ts *TokenServiceImpl) NewClaims(identity Identity) *JWTClaims {
	issuedAt := ts.now().Truncate(time.Second)

	return NewJWTClaims(token.ClaimSet{
		Subject:   identity.ID(),
		Name:      identity.Username(),
		Email:     identity.Email(),
		Roles:     SortRoles(identity.Roles()),
		TokenID:   uuid.NewString(),
		Issuer:    ts.issuer,
		Audience:  append([]string(nil), ts.audience...),
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ts.ttl),
	})
}

// Generate creates a signed token for identity
func (ts *TokenServiceImpl) Generate(identity Identity) (string, error) {
	if identity == nil {
		return "", errors.New("identity must not be nil", errors.CategoryInternal)
	}
	return ts.SignClaims(ts.NewClaims(identity))
}

// SignClaims signs claims using the configured signing key. The expiry in
// claims is kept when set, otherwise the service TTL applies.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	set := claims.Set
	if set.IssuedAt.IsZero() {
		set.IssuedAt = ts.now()
	}
	set.IssuedAt = set.IssuedAt.Truncate(time.Second)

	ttl := ts.ttl
	if !set.ExpiresAt.IsZero() {
		ttl = set.ExpiresAt.Sub(set.IssuedAt)
	}

	return token.Encode(set, ts.signingKey, ttl)
}

// Validate verifies signature, algorithm, issuer, audience and expiry and
// returns the typed claims. No leeway is applied.
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	mc := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, mc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		mapped := mapValidationError(err)
		ts.logger.Debug("token validation failed: %s: %v", token.KindOf(mapped), err)
		return nil, mapped
	}

	set, err := token.FromMap(mc)
	if err != nil {
		return nil, err
	}

	if set.Subject == "" {
		return nil, token.WithMessage(token.ErrClaimsInvalid, "token has no subject")
	}

	return NewJWTClaims(set), nil
}

func mapValidationError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return token.WithCause(token.ErrMalformedToken, err, nil)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return token.WithCause(token.ErrSignatureInvalid, err, nil)
	case errors.Is(err, jwt.ErrTokenExpired):
		return token.WithCause(token.ErrTokenExpired, err, nil)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return token.WithCause(token.ErrClaimsInvalid, err, nil)
	default:
		return token.WithCause(token.ErrMalformedToken, err, nil)
	}
}
