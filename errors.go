package auth

import (
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-folio-auth/token"
)

// Boundary errors shared with the client side.
var (
	ErrCredentialInvalid = token.ErrCredentialInvalid
	ErrValidationFailed  = token.ErrValidationFailed
	ErrTokenMalformed    = token.ErrMalformedToken
	ErrSignatureInvalid  = token.ErrSignatureInvalid
	ErrTokenExpired      = token.ErrTokenExpired
	ErrClaimsInvalid     = token.ErrClaimsInvalid
	ErrForbidden         = token.ErrForbidden
)

// ErrAccountTaken is returned when the username or email is already registered.
var ErrAccountTaken = token.WithMessage(token.ErrValidationFailed, "username or email already taken")

// ErrUserNotFound is the repository miss. It never leaves the package as is;
// login turns it into ErrCredentialInvalid.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode("USER_NOT_FOUND").
	WithCode(http.StatusNotFound)

// ErrRoleNotFound is returned when assigning a role that was never seeded.
var ErrRoleNotFound = errors.New("role not found", errors.CategoryNotFound).
	WithTextCode("ROLE_NOT_FOUND").
	WithCode(http.StatusInternalServerError)

// ErrMismatchedHashAndPassword is returned by ComparePasswordAndHash.
var ErrMismatchedHashAndPassword = errors.New("password does not match", errors.CategoryAuth).
	WithTextCode("PASSWORD_MISMATCH").
	WithCode(http.StatusUnauthorized)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryBadInput).
	WithTextCode("EMPTY_PASSWORD").
	WithCode(http.StatusBadRequest)

// ErrImmutableClaimMutation is returned when a claims decorator touches a protected claim.
var ErrImmutableClaimMutation = errors.New("immutable claim mutated", errors.CategoryInternal).
	WithTextCode("IMMUTABLE_CLAIM_MUTATION").
	WithCode(http.StatusInternalServerError)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return token.IsKind(err, token.KindTokenExpired)
}

// IsMalformedError reports whether err is a malformed or undecodable token.
func IsMalformedError(err error) bool {
	kind := token.KindOf(err)
	return kind == token.KindMalformedToken || kind == token.KindPayloadDecode
}
