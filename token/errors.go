package token

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Kind identifies a failure at the authentication boundary. It is carried as the
// text code of the rich error so callers can dispatch without reading messages.
type Kind string

const (
	KindNone               Kind = ""
	KindCredentialInvalid  Kind = "CREDENTIAL_INVALID"
	KindValidationFailed   Kind = "VALIDATION_FAILED"
	KindMalformedToken     Kind = "TOKEN_MALFORMED"
	KindPayloadDecode      Kind = "PAYLOAD_DECODE"
	KindSignatureInvalid   Kind = "SIGNATURE_INVALID"
	KindTokenExpired       Kind = "TOKEN_EXPIRED"
	KindClaimsInvalid      Kind = "CLAIMS_INVALID"
	KindForbidden          Kind = "FORBIDDEN"
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
	KindNetworkFailure     Kind = "NETWORK_FAILURE"
)

// ErrCredentialInvalid covers both unknown users and password mismatches.
var ErrCredentialInvalid = goerrors.New("invalid username or password", goerrors.CategoryAuth).
	WithTextCode(string(KindCredentialInvalid)).
	WithCode(http.StatusUnauthorized)

// ErrValidationFailed is returned for input shape problems.
var ErrValidationFailed = goerrors.New("validation failed", goerrors.CategoryValidation).
	WithTextCode(string(KindValidationFailed)).
	WithCode(http.StatusBadRequest)

// ErrMalformedToken is returned when a token does not have the expected segments.
var ErrMalformedToken = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(string(KindMalformedToken)).
	WithCode(http.StatusUnauthorized)

// ErrPayloadDecode is returned when the payload segment is not base64url JSON.
var ErrPayloadDecode = goerrors.New("unable to decode token payload", goerrors.CategoryAuth).
	WithTextCode(string(KindPayloadDecode)).
	WithCode(http.StatusUnauthorized)

// ErrSignatureInvalid is returned when the HMAC does not verify.
var ErrSignatureInvalid = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(string(KindSignatureInvalid)).
	WithCode(http.StatusUnauthorized)

// ErrTokenExpired is returned when exp is not after the current time.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(string(KindTokenExpired)).
	WithCode(http.StatusUnauthorized)

// ErrClaimsInvalid is returned for issuer/audience mismatches and missing required claims.
var ErrClaimsInvalid = goerrors.New("token claims are invalid", goerrors.CategoryAuth).
	WithTextCode(string(KindClaimsInvalid)).
	WithCode(http.StatusUnauthorized)

// ErrForbidden is returned when a verified identity lacks a required role.
var ErrForbidden = goerrors.New("insufficient role", goerrors.CategoryAuthz).
	WithTextCode(string(KindForbidden)).
	WithCode(http.StatusForbidden)

// ErrStorageUnavailable is returned when the durable token storage cannot be used.
var ErrStorageUnavailable = goerrors.New("token storage unavailable", goerrors.CategoryInternal).
	WithTextCode(string(KindStorageUnavailable)).
	WithCode(http.StatusInternalServerError)

// ErrNetworkFailure is returned when a call to the auth server does not complete.
var ErrNetworkFailure = goerrors.New("unable to reach authentication server", goerrors.CategoryOperation).
	WithTextCode(string(KindNetworkFailure)).
	WithCode(http.StatusServiceUnavailable)

// KindOf returns the Kind carried by err, or KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		return Kind(rich.TextCode)
	}
	return KindNone
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return kind != KindNone && KindOf(err) == kind
}

// StatusCode returns the HTTP status attached to err, defaulting to 500.
func StatusCode(err error) int {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil && rich.Code > 0 {
		return rich.Code
	}
	return http.StatusInternalServerError
}

// WithCause clones base, records cause as its source and attaches metadata.
func WithCause(base *goerrors.Error, cause error, metadata map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = cause
	if len(metadata) > 0 {
		return clone.WithMetadata(metadata)
	}
	return clone
}

// WithMessage clones base replacing its user facing message.
func WithMessage(base *goerrors.Error, message string) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Message = message
	return clone
}

var byKind = map[Kind]*goerrors.Error{
	KindCredentialInvalid:  ErrCredentialInvalid,
	KindValidationFailed:   ErrValidationFailed,
	KindMalformedToken:     ErrMalformedToken,
	KindPayloadDecode:      ErrPayloadDecode,
	KindSignatureInvalid:   ErrSignatureInvalid,
	KindTokenExpired:       ErrTokenExpired,
	KindClaimsInvalid:      ErrClaimsInvalid,
	KindForbidden:          ErrForbidden,
	KindStorageUnavailable: ErrStorageUnavailable,
	KindNetworkFailure:     ErrNetworkFailure,
}

// FromKind returns the sentinel for kind. Unknown kinds yield nil, false.
// Used to rebuild typed errors from a text code received over the wire.
func FromKind(kind Kind) (*goerrors.Error, bool) {
	err, ok := byKind[kind]
	return err, ok
}
