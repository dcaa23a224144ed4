package pairauth

import (
	"net/http"
	"time"
)

// Cookie names for the short-lived client-steering values carried through
// an auth flow. Neither is authoritative: return-to is re-validated against
// the configured origin before use, and app-state is opaque to the server.
const (
	ReturnToCookie = "return-to"
	AppStateCookie = "app-state"
)

// steeringCookieTTL bounds how long a flow has between starting (e.g. the
// redirect to a provider) and landing back on the callback.
const steeringCookieTTL = 30 * time.Second

// GetReturnTo reads the destination path from the return-to cookie, or
// falls back to the returnTo query parameter.
func GetReturnTo(r *http.Request) string {
	if c, err := r.Cookie(ReturnToCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("returnTo")
}

// SetReturnTo stores the destination path for the duration of the flow.
func SetReturnTo(w http.ResponseWriter, returnTo string, sameSite http.SameSite) {
	http.SetCookie(w, &http.Cookie{
		Name:     ReturnToCookie,
		Value:    returnTo,
		Path:     "/",
		HttpOnly: true,
		SameSite: sameSite,
		Expires:  time.Now().Add(steeringCookieTTL),
	})
}

// GetAppState reads the opaque client state from the app-state cookie, or
// falls back to the appState query parameter.
func GetAppState(r *http.Request) string {
	if c, err := r.Cookie(AppStateCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("appState")
}

// SetAppState round-trips opaque client state through the flow. Empty
// values are not stored.
func SetAppState(w http.ResponseWriter, appState string, sameSite http.SameSite) {
	if appState == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AppStateCookie,
		Value:    appState,
		Path:     "/",
		HttpOnly: true,
		SameSite: sameSite,
		Expires:  time.Now().Add(steeringCookieTTL),
	})
}
