package pairauth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type envConfig struct {
	Secret                 string        `env:"SECRET"`
	CookieName             string        `env:"COOKIE_NAME"`
	RefreshTokenCookieName string        `env:"REFRESH_COOKIE_NAME"`
	RefreshPath            string        `env:"REFRESH_PATH"`
	Expiration             time.Duration `env:"EXPIRATION"`
	RefreshTokenDuration   time.Duration `env:"REFRESH_DURATION"`
	Issuer                 string        `env:"ISSUER"`
	Audience               string        `env:"AUDIENCE"`
	Mode                   string        `env:"MODE" envDefault:"development"`
	SameSite               string        `env:"SAMESITE" envDefault:"lax"`
	CookieDomain           string        `env:"COOKIE_DOMAIN"`
}

// ConfigFromEnv builds a SessionConfig from PAIRAUTH_* environment
// variables (PAIRAUTH_SECRET, PAIRAUTH_MODE, PAIRAUTH_SAMESITE, and so
// on). Durations use Go syntax, e.g. PAIRAUTH_EXPIRATION=12h. The caller
// still fills the code-only pieces, notably CreateSession, before handing
// the config to NewSessionManager.
func ConfigFromEnv() (SessionConfig, error) {
	var ec envConfig
	if err := env.ParseWithOptions(&ec, env.Options{Prefix: "PAIRAUTH_"}); err != nil {
		return SessionConfig{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	sameSite, err := ParseSameSite(ec.SameSite)
	if err != nil {
		return SessionConfig{}, err
	}
	return SessionConfig{
		Secret:                 ec.Secret,
		CookieName:             ec.CookieName,
		RefreshTokenCookieName: ec.RefreshTokenCookieName,
		RefreshPath:            ec.RefreshPath,
		Expiration:             ec.Expiration,
		RefreshTokenDuration:   ec.RefreshTokenDuration,
		Issuer:                 ec.Issuer,
		Audience:               ec.Audience,
		Mode:                   ec.Mode,
		SameSite:               sameSite,
		CookieDomain:           ec.CookieDomain,
	}, nil
}

// ParseSameSite maps the usual cookie attribute spellings ("lax",
// "strict", "none") to http.SameSite. Empty means Lax.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(s) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("invalid SameSite value %q", s)
	}
}
