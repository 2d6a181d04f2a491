package auth

import "github.com/goliatone/go-folio-auth/token"

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(tokenString)
}

// MultiTokenValidator tries validators in order until one succeeds.
// A signature mismatch moves on to the next validator; any other failure
// is returned as is.
type MultiTokenValidator struct {
	validators []TokenValidator
}

// NewMultiTokenValidator filters nil validators and returns a composite validator.
func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	filtered := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &MultiTokenValidator{validators: filtered}
}

// Validate satisfies the TokenValidator interface.
func (m *MultiTokenValidator) Validate(tokenString string) (AuthClaims, error) {
	var lastErr error
	for _, v := range m.validators {
		claims, err := v.Validate(tokenString)
		if err == nil {
			return claims, nil
		}
		if token.IsKind(err, token.KindSignatureInvalid) {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrSignatureInvalid
}

// NewRotatingValidator accepts tokens signed with the current key or with
// any of the retired keys. Issuer, audience, clock and TTL come from current.
// Tokens are only ever issued with the current key.
func NewRotatingValidator(current *TokenServiceImpl, retiredKeys ...string) TokenValidator {
	if len(retiredKeys) == 0 {
		return current
	}

	validators := []TokenValidator{current}
	for _, key := range retiredKeys {
		if key == "" {
			continue
		}
		validators = append(validators,
			NewTokenService([]byte(key), current.ttl, current.issuer, current.audience, current.logger).
				WithClock(current.now),
		)
	}
	return NewMultiTokenValidator(validators...)
}
