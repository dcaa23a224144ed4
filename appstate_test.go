package pairauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReturnToCookieBeatsQueryParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/?returnTo=/from-query", nil)
	if got := GetReturnTo(r); got != "/from-query" {
		t.Errorf("GetReturnTo = %q, want /from-query", got)
	}

	r.AddCookie(&http.Cookie{Name: ReturnToCookie, Value: "/from-cookie"})
	if got := GetReturnTo(r); got != "/from-cookie" {
		t.Errorf("GetReturnTo = %q, want /from-cookie", got)
	}
}

func TestAppStateRoundTrip(t *testing.T) {
	w := httptest.NewRecorder()
	SetAppState(w, "opaque-state", http.SameSiteLaxMode)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != AppStateCookie {
		t.Fatalf("cookies = %v", cookies)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(cookies[0])
	if got := GetAppState(r); got != "opaque-state" {
		t.Errorf("GetAppState = %q", got)
	}
}

func TestSetAppStateSkipsEmpty(t *testing.T) {
	w := httptest.NewRecorder()
	SetAppState(w, "", http.SameSiteLaxMode)
	if cookies := w.Result().Cookies(); len(cookies) != 0 {
		t.Errorf("cookies = %v, want none for empty app state", cookies)
	}
}
