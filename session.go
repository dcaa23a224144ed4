package pairauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Mode values for SessionConfig. Production gates the Secure cookie flag;
// development enables strict validation of decoded session fields.
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

// Default token lifetimes.
const (
	DefaultExpiration           = 12 * time.Hour
	DefaultRefreshTokenDuration = 14 * 24 * time.Hour
)

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	// Secret signs both tokens. Required.
	Secret string

	// CookieName holds the access token. Defaults to "session".
	CookieName string

	// RefreshTokenCookieName holds the refresh token. Defaults to
	// "refreshToken".
	RefreshTokenCookieName string

	// RefreshPath is the request path the refresh token cookie is limited
	// to, so it is not sent with every request. Defaults to "/refresh".
	RefreshPath string

	// Expiration bounds the access token. Defaults to 12 hours.
	Expiration time.Duration

	// RefreshTokenDuration bounds the refresh token and both cookies.
	// Defaults to 14 days.
	RefreshTokenDuration time.Duration

	Issuer   string
	Audience string

	// Mode is ModeProduction or ModeDevelopment.
	Mode string

	// SameSite applies to every cookie the manager sets. Defaults to Lax.
	SameSite http.SameSite

	// CookieDomain optionally sets the cookie Domain attribute, e.g. to
	// share cookies with the root domain from a subdomain.
	CookieDomain string

	// Partitioned marks the refresh cookie as partitioned (CHIPS).
	// Defaults to true when SameSite is None.
	Partitioned bool

	// ShortNames maps session fields to claim names. Defaults to
	// DefaultShortNames.
	ShortNames ShortNames

	// CreateSession builds the Session for a user id after authentication
	// succeeds. Required.
	CreateSession func(ctx context.Context, userID string) (Session, error)
}

// SessionManager owns the access/refresh token pair: minting, cookie
// serialization, verification, and the rotation protocol. Session state
// lives entirely in the signed tokens; nothing is persisted server-side.
type SessionManager struct {
	config SessionConfig
	mapper *claimMapper

	// now is replaceable in tests.
	now func() time.Time
}

// NewSessionManager validates the config and builds the claim mapping.
func NewSessionManager(config SessionConfig) (*SessionManager, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if config.CreateSession == nil {
		return nil, fmt.Errorf("CreateSession callback is required")
	}
	if config.CookieName == "" {
		config.CookieName = "session"
	}
	if config.RefreshTokenCookieName == "" {
		config.RefreshTokenCookieName = "refreshToken"
	}
	if config.RefreshPath == "" {
		config.RefreshPath = "/refresh"
	}
	if config.Expiration <= 0 {
		config.Expiration = DefaultExpiration
	}
	if config.RefreshTokenDuration <= 0 {
		config.RefreshTokenDuration = DefaultRefreshTokenDuration
	}
	if config.SameSite == 0 {
		config.SameSite = http.SameSiteLaxMode
	}
	if config.SameSite == http.SameSiteNoneMode {
		config.Partitioned = true
	}
	mapper, err := newClaimMapper(config.ShortNames)
	if err != nil {
		return nil, err
	}
	return &SessionManager{
		config: config,
		mapper: mapper,
		now:    time.Now,
	}, nil
}

// CreateSession delegates to the configured session constructor.
func (m *SessionManager) CreateSession(ctx context.Context, userID string) (Session, error) {
	return m.config.CreateSession(ctx, userID)
}

// AccessToken returns the raw access token from the request cookie, or ""
// if absent.
func (m *SessionManager) AccessToken(r *http.Request) string {
	c, err := r.Cookie(m.config.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// RefreshToken returns the raw refresh token from the request cookie, or
// "" if absent. Only requests to the refresh path carry this cookie.
func (m *SessionManager) RefreshToken(r *http.Request) string {
	c, err := r.Cookie(m.config.RefreshTokenCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// IssueTokens mints a fresh access/refresh pair sharing one rotation id
// and sets both cookies on the response. Any previously issued refresh
// token stops matching the new access token's rotation id, so issuance is
// also invalidation.
func (m *SessionManager) IssueTokens(w http.ResponseWriter, session Session) error {
	claims, err := m.mapper.claimsFromSession(session)
	if err != nil {
		return err
	}

	now := m.now()
	jti := uuid.NewString()
	refreshExpiry := now.Add(m.config.RefreshTokenDuration)

	claims["sub"] = session.UserID
	claims["jti"] = jti
	claims["iat"] = unixTime(now)
	claims["exp"] = unixTime(now.Add(m.config.Expiration))
	m.setIssuerAudience(claims)

	accessToken, err := m.signToken(claims)
	if err != nil {
		return fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshClaims := jwt.MapClaims{
		"jti": jti,
		"iat": unixTime(now),
		"exp": unixTime(refreshExpiry),
	}
	m.setIssuerAudience(refreshClaims)

	refreshToken, err := m.signToken(refreshClaims)
	if err != nil {
		return fmt.Errorf("failed to sign refresh token: %w", err)
	}

	// The access cookie outlives its own token on purpose: presenting an
	// expired access token tells the server "refresh me", while a missing
	// cookie means fully logged out.
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    accessToken,
		Path:     "/",
		Domain:   m.config.CookieDomain,
		HttpOnly: true,
		SameSite: m.config.SameSite,
		Secure:   m.config.Mode == ModeProduction,
		Expires:  refreshExpiry,
	})
	http.SetCookie(w, &http.Cookie{
		Name:        m.config.RefreshTokenCookieName,
		Value:       refreshToken,
		Path:        m.config.RefreshPath,
		Domain:      m.config.CookieDomain,
		HttpOnly:    true,
		SameSite:    m.config.SameSite,
		Secure:      m.config.Mode == ModeProduction,
		Expires:     refreshExpiry,
		Partitioned: m.config.Partitioned,
	})
	return nil
}

// GetSession reads and verifies the access token cookie. Returns
// (nil, nil) when no cookie is present: absence of a session is not an
// error. Expired tokens fail with ErrSessionExpired; any other
// verification failure is ErrInvalidSession.
func (m *SessionManager) GetSession(r *http.Request) (*Session, error) {
	token := m.AccessToken(r)
	if token == "" {
		return nil, nil
	}
	return m.VerifySessionToken(token)
}

// VerifySessionToken fully validates an access token and rebuilds its
// Session. Exposed for non-HTTP transports (e.g. the grpc interceptors)
// that carry the token outside a cookie.
func (m *SessionManager) VerifySessionToken(token string) (*Session, error) {
	claims, err := m.verifyToken(token)
	if err != nil {
		if isTokenExpired(err) {
			return nil, ErrSessionExpired.WithCause(err)
		}
		return nil, ErrInvalidSession.WithCause(err)
	}
	session, err := m.mapper.sessionFromClaims(claims, m.config.Mode == ModeDevelopment)
	if err != nil {
		return nil, ErrInvalidSession.WithCause(err)
	}
	return session, nil
}

// RefreshSession rotates the token pair. The refresh token must verify in
// full; the access token only needs a valid signature (it is expected to
// be expired) and its rotation id must equal the refresh token's. On
// success a new pair with a fresh rotation id is issued, which invalidates
// the presented refresh token.
func (m *SessionManager) RefreshSession(w http.ResponseWriter, r *http.Request) error {
	accessToken := m.AccessToken(r)
	refreshToken := m.RefreshToken(r)

	if accessToken == "" {
		return ErrInvalidSession
	}
	if refreshToken == "" {
		return ErrInvalidRefreshToken
	}

	refreshClaims, err := m.verifyToken(refreshToken)
	if err != nil {
		if isTokenExpired(err) {
			return ErrRefreshTokenExpired.WithCause(err)
		}
		return ErrInvalidRefreshToken.WithCause(err)
	}

	accessClaims, err := m.verifySignatureOnly(accessToken)
	if err != nil {
		return ErrInvalidRefreshToken.WithCause(err)
	}

	jti := claimString(accessClaims, "jti")
	if jti == "" || claimString(refreshClaims, "jti") != jti {
		return ErrInvalidRefreshToken
	}

	session, err := m.mapper.sessionFromClaims(accessClaims, false)
	if err != nil {
		return ErrInvalidRefreshToken.WithCause(err)
	}

	return m.IssueTokens(w, *session)
}

// ClearSession expires both cookies on their respective paths.
func (m *SessionManager) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.config.CookieDomain,
		HttpOnly: true,
		SameSite: m.config.SameSite,
		Secure:   m.config.Mode == ModeProduction,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	http.SetCookie(w, &http.Cookie{
		Name:        m.config.RefreshTokenCookieName,
		Value:       "",
		Path:        m.config.RefreshPath,
		Domain:      m.config.CookieDomain,
		HttpOnly:    true,
		SameSite:    m.config.SameSite,
		Secure:      m.config.Mode == ModeProduction,
		MaxAge:      -1,
		Expires:     time.Unix(0, 0),
		Partitioned: m.config.Partitioned,
	})
}

// SameSite exposes the configured policy so the return-to/app-state
// helpers can match it.
func (m *SessionManager) SameSite() http.SameSite {
	return m.config.SameSite
}

func (m *SessionManager) setIssuerAudience(claims jwt.MapClaims) {
	if m.config.Issuer != "" {
		claims["iss"] = m.config.Issuer
	}
	if m.config.Audience != "" {
		claims["aud"] = m.config.Audience
	}
}
