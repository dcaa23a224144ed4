package pairauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the authenticated identity claim carried by the access token.
// UserID is always present; Extra holds any additional application fields
// (role, plan, etc.) declared in the manager's ShortNames.
type Session struct {
	UserID string
	Extra  map[string]any
}

// ShortNames maps long session field names to compact JWT claim names.
// The "userId" entry is required; its claim name is also used as the
// token's subject.
type ShortNames map[string]string

// DefaultShortNames maps the user id to the standard "sub" claim.
var DefaultShortNames = ShortNames{"userId": "sub"}

const userIDField = "userId"

// claimMapper holds the forward and backward lookup between long field
// names and short claim names. Built once at construction; the constructor
// rejects mappings where two long names share a short name.
type claimMapper struct {
	toShort map[string]string
	toLong  map[string]string
}

func newClaimMapper(names ShortNames) (*claimMapper, error) {
	if len(names) == 0 {
		names = DefaultShortNames
	}
	if _, ok := names[userIDField]; !ok {
		return nil, fmt.Errorf("short names must include %q", userIDField)
	}
	m := &claimMapper{
		toShort: make(map[string]string, len(names)),
		toLong:  make(map[string]string, len(names)),
	}
	for long, short := range names {
		if short == "" {
			return nil, fmt.Errorf("short name for %q is empty", long)
		}
		if prev, dup := m.toLong[short]; dup {
			return nil, fmt.Errorf("short names must be unique: %q used by both %q and %q", short, prev, long)
		}
		m.toShort[long] = short
		m.toLong[short] = long
	}
	return m, nil
}

// claimsFromSession converts a session to its short-named claim set.
// Extra fields without a declared short name are rejected rather than
// silently dropped.
func (m *claimMapper) claimsFromSession(s Session) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{m.toShort[userIDField]: s.UserID}
	for field, value := range s.Extra {
		short, ok := m.toShort[field]
		if !ok {
			return nil, fmt.Errorf("session field %q has no short name", field)
		}
		claims[short] = value
	}
	return claims, nil
}

// sessionFromClaims rebuilds a session from verified claims, inverting the
// short-name mapping. Claims without a registered long name (iss, aud, exp,
// iat, jti) are ignored. In strict mode every declared field must be
// present.
func (m *claimMapper) sessionFromClaims(claims jwt.MapClaims, strict bool) (*Session, error) {
	s := &Session{}
	for short, long := range m.toLong {
		value, ok := claims[short]
		if !ok {
			if strict {
				return nil, fmt.Errorf("session missing expected field: %s", long)
			}
			continue
		}
		if long == userIDField {
			id, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("session field %s is not a string", long)
			}
			s.UserID = id
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]any)
		}
		s.Extra[long] = value
	}
	return s, nil
}

// signToken signs claims with HS256, the only method the codec accepts.
func (m *SessionManager) signToken(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
}

func (m *SessionManager) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return []byte(m.config.Secret), nil
}

// verifyToken parses and fully validates a token: signature, expiration,
// and the configured issuer/audience. Expired tokens return
// jwt.ErrTokenExpired via the wrapped error chain; callers reclassify.
func (m *SessionManager) verifyToken(tokenString string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(m.config.Audience))
	}
	claims := jwt.MapClaims{}
	if _, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, m.keyFunc); err != nil {
		return nil, err
	}
	return claims, nil
}

// verifySignatureOnly checks a token's signature and returns its claims
// without validating expiration or any other registered claim. Used during
// refresh, where the access token is usually already expired but its claims
// are still the authoritative session payload.
func (m *SessionManager) verifySignatureOnly(tokenString string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithoutClaimsValidation(),
	)
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, m.keyFunc); err != nil {
		return nil, err
	}
	return claims, nil
}

// isTokenExpired reports whether a jwt parse failure was (only) expiry.
func isTokenExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

func claimString(claims jwt.MapClaims, name string) string {
	v, _ := claims[name].(string)
	return v
}

// unixTime converts a time for the iat/exp claims.
func unixTime(t time.Time) *jwt.NumericDate { return jwt.NewNumericDate(t) }
