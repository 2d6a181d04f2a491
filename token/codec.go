package token

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

var errSegmentLength = errors.New("invalid base64url segment length")

// Encode signs claims with HMAC-SHA256. The expiry is always IssuedAt + ttl;
// a zero IssuedAt is replaced with the current time. Timestamps have second
// precision on the wire.
func Encode(claims ClaimSet, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", goerrors.New("signing secret is required", goerrors.CategoryBadInput)
	}

	if ttl <= 0 {
		return "", goerrors.New("token TTL must be positive", goerrors.CategoryBadInput)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return "", WithMessage(ErrClaimsInvalid, "subject claim is required")
	}

	issuedAt := claims.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	issuedAt = issuedAt.Truncate(time.Second)

	mc := jwt.MapClaims{}
	for k, v := range claims.Extra {
		mc[k] = v
	}

	mc[ClaimSubject] = claims.Subject
	mc[ClaimIssuedAt] = issuedAt.Unix()
	mc[ClaimExpiresAt] = issuedAt.Add(ttl).Unix()

	if claims.Name != "" {
		mc[ClaimName] = claims.Name
	}
	if claims.Email != "" {
		mc[ClaimEmail] = claims.Email
	}
	if len(claims.Roles) > 0 {
		mc[ClaimRole] = append([]string(nil), claims.Roles...)
	}
	if claims.TokenID != "" {
		mc[ClaimTokenID] = claims.TokenID
	}
	if claims.Issuer != "" {
		mc[ClaimIssuer] = claims.Issuer
	}
	if len(claims.Audience) > 0 {
		mc[ClaimAudience] = append([]string(nil), claims.Audience...)
	}
	if !claims.NotBefore.IsZero() {
		mc[ClaimNotBefore] = claims.NotBefore.Unix()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(secret)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

// Decode reads the payload of raw without verifying its signature. The result
// is only fit for display; authorization must go through a verifying validator.
func Decode(raw string) (ClaimSet, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) < 2 {
		return ClaimSet{}, WithCause(ErrMalformedToken, nil, map[string]any{
			"segments": len(parts),
		})
	}

	payload, err := DecodeSegment(parts[1])
	if err != nil {
		return ClaimSet{}, WithCause(ErrPayloadDecode, err, nil)
	}

	values := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return ClaimSet{}, WithCause(ErrPayloadDecode, err, nil)
	}

	return FromMap(values)
}

// DecodeSegment base64url-decodes seg, restoring stripped padding.
func DecodeSegment(seg string) ([]byte, error) {
	switch len(seg) % 4 {
	case 1:
		return nil, errSegmentLength
	case 2:
		seg += "=="
	case 3:
		seg += "="
	}
	return base64.URLEncoding.DecodeString(seg)
}

// FromMap builds a ClaimSet from a flat claim map. Long-form claim URIs are
// folded into their short names; a short name always wins over its alias.
func FromMap(values map[string]any) (ClaimSet, error) {
	var cs ClaimSet

	for key, raw := range values {
		name := CanonicalName(key)
		alias := name != key

		switch name {
		case ClaimSubject, ClaimName, ClaimEmail, ClaimTokenID, ClaimIssuer:
			s, ok := scalarString(raw)
			if !ok {
				return ClaimSet{}, decodeError(key)
			}
			assignString(fieldFor(&cs, name), s, alias)
		case ClaimRole:
			roles, ok := stringList(raw)
			if !ok {
				return ClaimSet{}, decodeError(key)
			}
			cs.Roles = appendUnique(cs.Roles, roles...)
		case ClaimAudience:
			aud, ok := stringList(raw)
			if !ok {
				return ClaimSet{}, decodeError(key)
			}
			cs.Audience = appendUnique(cs.Audience, aud...)
		case ClaimIssuedAt, ClaimExpiresAt, ClaimNotBefore:
			ts, ok := numericTime(raw)
			if !ok {
				return ClaimSet{}, decodeError(key)
			}
			switch name {
			case ClaimIssuedAt:
				cs.IssuedAt = ts
			case ClaimExpiresAt:
				cs.ExpiresAt = ts
			default:
				cs.NotBefore = ts
			}
		default:
			if cs.Extra == nil {
				cs.Extra = map[string]string{}
			}
			if s, ok := scalarString(raw); ok {
				cs.Extra[key] = s
				continue
			}
			compact, err := json.Marshal(raw)
			if err != nil {
				return ClaimSet{}, decodeError(key)
			}
			cs.Extra[key] = string(compact)
		}
	}

	return cs, nil
}

func fieldFor(cs *ClaimSet, name string) *string {
	switch name {
	case ClaimSubject:
		return &cs.Subject
	case ClaimName:
		return &cs.Name
	case ClaimEmail:
		return &cs.Email
	case ClaimTokenID:
		return &cs.TokenID
	default:
		return &cs.Issuer
	}
}

func assignString(dst *string, val string, alias bool) {
	if !alias || *dst == "" {
		*dst = val
	}
}

func decodeError(claim string) error {
	return WithCause(ErrPayloadDecode, nil, map[string]any{"claim": claim})
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case json.Number:
		return canonicalNumber(string(t)), true
	case float64:
		return formatFloat(t), true
	case float32:
		return formatFloat(float64(t)), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	default:
		return "", false
	}
}

func stringList(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := scalarString(item)
			if !ok {
				return nil, false
			}
			if s != "" {
				out = append(out, s)
			}
		}
		return out, true
	default:
		s, ok := scalarString(v)
		if !ok {
			return nil, false
		}
		if s == "" {
			return nil, true
		}
		return []string{s}, true
	}
}

func numericTime(v any) (time.Time, bool) {
	s, ok := scalarString(v)
	if !ok || s == "" {
		return time.Time{}, ok
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)), true
}

func canonicalNumber(s string) string {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return formatFloat(f)
	}
	return s
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		seen := false
		for _, d := range dst {
			if d == v {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, v)
		}
	}
	return dst
}
