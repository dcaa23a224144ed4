package pairauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T, mutate func(*SessionConfig)) *SessionManager {
	t.Helper()
	config := SessionConfig{
		Secret: "test-secret",
		CreateSession: func(_ context.Context, userID string) (Session, error) {
			return Session{UserID: userID}, nil
		},
	}
	if mutate != nil {
		mutate(&config)
	}
	m, err := NewSessionManager(config)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return m
}

// issue mints a token pair and returns the cookies that were set.
func issue(t *testing.T, m *SessionManager, session Session) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	if err := m.IssueTokens(w, session); err != nil {
		t.Fatalf("IssueTokens: %v", err)
	}
	return w.Result().Cookies()
}

func requestWithCookies(cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func cookieByName(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestNewSessionManagerValidation(t *testing.T) {
	_, err := NewSessionManager(SessionConfig{})
	if err == nil {
		t.Fatal("expected error for missing secret")
	}
	_, err = NewSessionManager(SessionConfig{Secret: "s"})
	if err == nil {
		t.Fatal("expected error for missing CreateSession")
	}
}

func TestIssueTokensSetsCookies(t *testing.T) {
	m := newTestManager(t, nil)
	base := time.Now()
	m.now = func() time.Time { return base }

	cookies := issue(t, m, Session{UserID: "u1"})

	access := cookieByName(t, cookies, "session")
	if access.Path != "/" {
		t.Errorf("access cookie path = %q, want /", access.Path)
	}
	if !access.HttpOnly {
		t.Error("access cookie is not httpOnly")
	}
	if access.SameSite != http.SameSiteLaxMode {
		t.Errorf("access cookie SameSite = %v, want Lax", access.SameSite)
	}
	if access.Secure {
		t.Error("access cookie is Secure outside production mode")
	}

	refresh := cookieByName(t, cookies, "refreshToken")
	if refresh.Path != "/refresh" {
		t.Errorf("refresh cookie path = %q, want /refresh", refresh.Path)
	}
	if !refresh.HttpOnly {
		t.Error("refresh cookie is not httpOnly")
	}

	// Both cookies must survive as long as the refresh token so an
	// expired access token still reaches the server.
	wantExpiry := base.Add(DefaultRefreshTokenDuration)
	for _, c := range []*http.Cookie{access, refresh} {
		if diff := c.Expires.Sub(wantExpiry); diff < -2*time.Second || diff > 2*time.Second {
			t.Errorf("%s cookie expires %v, want about %v", c.Name, c.Expires, wantExpiry)
		}
	}
}

func TestProductionModeSetsSecure(t *testing.T) {
	m := newTestManager(t, func(c *SessionConfig) { c.Mode = ModeProduction })
	cookies := issue(t, m, Session{UserID: "u1"})
	if !cookieByName(t, cookies, "session").Secure {
		t.Error("access cookie not Secure in production mode")
	}
	if !cookieByName(t, cookies, "refreshToken").Secure {
		t.Error("refresh cookie not Secure in production mode")
	}
}

func TestSameSiteNonePartitionsRefreshCookie(t *testing.T) {
	m := newTestManager(t, func(c *SessionConfig) { c.SameSite = http.SameSiteNoneMode })
	w := httptest.NewRecorder()
	if err := m.IssueTokens(w, Session{UserID: "u1"}); err != nil {
		t.Fatalf("IssueTokens: %v", err)
	}
	found := false
	for _, raw := range w.Header().Values("Set-Cookie") {
		if strings.HasPrefix(raw, "refreshToken=") && strings.Contains(raw, "Partitioned") {
			found = true
		}
	}
	if !found {
		t.Error("refresh cookie not Partitioned with SameSite=None")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	m := newTestManager(t, nil)
	cookies := issue(t, m, Session{UserID: "123"})

	session, err := m.GetSession(requestWithCookies(cookies))
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session == nil || session.UserID != "123" {
		t.Fatalf("session = %+v, want userID 123", session)
	}
}

func TestSessionRoundTripExtraFields(t *testing.T) {
	m := newTestManager(t, func(c *SessionConfig) {
		c.ShortNames = ShortNames{"userId": "sub", "role": "r", "plan": "p"}
	})
	cookies := issue(t, m, Session{
		UserID: "u1",
		Extra:  map[string]any{"role": "admin", "plan": "pro"},
	})

	session, err := m.GetSession(requestWithCookies(cookies))
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.Extra["role"] != "admin" || session.Extra["plan"] != "pro" {
		t.Fatalf("extra fields = %v", session.Extra)
	}
}

func TestGetSessionNoCookie(t *testing.T) {
	m := newTestManager(t, nil)
	session, err := m.GetSession(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session != nil {
		t.Fatalf("session = %+v, want nil", session)
	}
}

func TestExpiredAccessToken(t *testing.T) {
	m := newTestManager(t, func(c *SessionConfig) { c.Expiration = time.Hour })
	base := time.Now()
	m.now = func() time.Time { return base }
	cookies := issue(t, m, Session{UserID: "123"})

	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err := m.GetSession(requestWithCookies(cookies))
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	m := newTestManager(t, nil)
	other := newTestManager(t, func(c *SessionConfig) { c.Secret = "other-secret" })
	cookies := issue(t, other, Session{UserID: "123"})

	_, err := m.GetSession(requestWithCookies(cookies))
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("err = %v, want ErrInvalidSession", err)
	}
}

func TestIssuerAudienceValidated(t *testing.T) {
	m := newTestManager(t, func(c *SessionConfig) {
		c.Issuer = "issuer-a"
		c.Audience = "aud-a"
	})
	cookies := issue(t, m, Session{UserID: "123"})
	if _, err := m.GetSession(requestWithCookies(cookies)); err != nil {
		t.Fatalf("GetSession with matching issuer/audience: %v", err)
	}

	other := newTestManager(t, func(c *SessionConfig) {
		c.Issuer = "issuer-b"
		c.Audience = "aud-a"
	})
	if _, err := other.GetSession(requestWithCookies(cookies)); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("err = %v, want ErrInvalidSession for issuer mismatch", err)
	}
}

func TestDevModeRequiresDeclaredFields(t *testing.T) {
	// Token minted with only the user id, verified by a manager that
	// declares a role field. Development mode treats the gap as an error.
	minter := newTestManager(t, nil)
	cookies := issue(t, minter, Session{UserID: "123"})

	strict := newTestManager(t, func(c *SessionConfig) {
		c.Mode = ModeDevelopment
		c.ShortNames = ShortNames{"userId": "sub", "role": "r"}
	})
	if _, err := strict.GetSession(requestWithCookies(cookies)); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("err = %v, want ErrInvalidSession for missing field", err)
	}

	relaxed := newTestManager(t, func(c *SessionConfig) {
		c.ShortNames = ShortNames{"userId": "sub", "role": "r"}
	})
	if _, err := relaxed.GetSession(requestWithCookies(cookies)); err != nil {
		t.Fatalf("non-dev mode should tolerate missing fields: %v", err)
	}
}

// refreshWith runs RefreshSession with the given cookies on the refresh
// path and returns the rotated cookies (if any) and the error.
func refreshWith(t *testing.T, m *SessionManager, cookies []*http.Cookie) ([]*http.Cookie, error) {
	t.Helper()
	r := httptest.NewRequest("POST", "/refresh", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	err := m.RefreshSession(w, r)
	return w.Result().Cookies(), err
}

func TestRefreshRecoversExpiredSession(t *testing.T) {
	m := newTestManager(t, func(c *SessionConfig) { c.Expiration = time.Hour })
	base := time.Now()
	m.now = func() time.Time { return base }
	cookies := issue(t, m, Session{UserID: "123"})

	// Two hours later the access token is expired but the refresh token
	// is still good.
	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := m.GetSession(requestWithCookies(cookies)); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("precondition: err = %v, want ErrSessionExpired", err)
	}

	rotated, err := refreshWith(t, m, cookies)
	if err != nil {
		t.Fatalf("RefreshSession: %v", err)
	}

	session, err := m.GetSession(requestWithCookies(rotated))
	if err != nil {
		t.Fatalf("GetSession after refresh: %v", err)
	}
	if session.UserID != "123" {
		t.Fatalf("session.UserID = %q, want 123", session.UserID)
	}
}

func TestRefreshRotatesTokenPair(t *testing.T) {
	m := newTestManager(t, nil)
	cookies := issue(t, m, Session{UserID: "123"})

	rotated, err := refreshWith(t, m, cookies)
	if err != nil {
		t.Fatalf("RefreshSession: %v", err)
	}

	// The old refresh token must not pair with the new access token: the
	// rotation ids no longer match.
	oldRefresh := cookieByName(t, cookies, "refreshToken")
	newAccess := cookieByName(t, rotated, "session")
	_, err = refreshWith(t, m, []*http.Cookie{newAccess, oldRefresh})
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("err = %v, want ErrInvalidRefreshToken for retired refresh token", err)
	}
}

func TestRefreshMissingTokens(t *testing.T) {
	m := newTestManager(t, nil)
	cookies := issue(t, m, Session{UserID: "123"})
	access := cookieByName(t, cookies, "session")
	refresh := cookieByName(t, cookies, "refreshToken")

	if _, err := refreshWith(t, m, []*http.Cookie{refresh}); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("missing access token: err = %v, want ErrInvalidSession", err)
	}
	if _, err := refreshWith(t, m, []*http.Cookie{access}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("missing refresh token: err = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRefreshExpiredRefreshToken(t *testing.T) {
	m := newTestManager(t, nil)
	base := time.Now()
	m.now = func() time.Time { return base }
	cookies := issue(t, m, Session{UserID: "123"})

	m.now = func() time.Time { return base.Add(DefaultRefreshTokenDuration + time.Hour) }
	_, err := refreshWith(t, m, cookies)
	if !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("err = %v, want ErrRefreshTokenExpired", err)
	}
}

func TestRefreshMismatchedPair(t *testing.T) {
	m := newTestManager(t, nil)
	first := issue(t, m, Session{UserID: "123"})
	second := issue(t, m, Session{UserID: "123"})

	// Access token from one issuance with the refresh token from another:
	// both verify individually but their rotation ids differ.
	mixed := []*http.Cookie{
		cookieByName(t, first, "session"),
		cookieByName(t, second, "refreshToken"),
	}
	_, err := refreshWith(t, m, mixed)
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("err = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRefreshTamperedAccessToken(t *testing.T) {
	m := newTestManager(t, nil)
	other := newTestManager(t, func(c *SessionConfig) { c.Secret = "other-secret" })
	cookies := issue(t, m, Session{UserID: "123"})
	foreign := issue(t, other, Session{UserID: "123"})

	mixed := []*http.Cookie{
		cookieByName(t, foreign, "session"),
		cookieByName(t, cookies, "refreshToken"),
	}
	_, err := refreshWith(t, m, mixed)
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("err = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestClearSession(t *testing.T) {
	m := newTestManager(t, nil)
	w := httptest.NewRecorder()
	m.ClearSession(w)

	cookies := w.Result().Cookies()
	access := cookieByName(t, cookies, "session")
	refresh := cookieByName(t, cookies, "refreshToken")
	if access.MaxAge != -1 || refresh.MaxAge != -1 {
		t.Error("cleared cookies should have MaxAge -1")
	}
	if access.Path != "/" || refresh.Path != "/refresh" {
		t.Errorf("cleared cookie paths = %q, %q", access.Path, refresh.Path)
	}
}
