package pairauth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// AuthError is the error type surfaced by session operations and request
// handlers. The message doubles as a stable identifier: responses carry its
// kebab-cased form in the x-auth-error header so clients can react to
// specific failures (e.g. session-expired) without parsing bodies.
type AuthError struct {
	Message    string
	StatusCode int
	cause      error
}

// Predeclared errors, matched with errors.Is. Use WithCause to attach an
// underlying error without losing identity.
var (
	ErrInvalidPassword     = &AuthError{Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrUserAlreadyExists   = &AuthError{Message: "User already exists", StatusCode: http.StatusConflict}
	ErrCodeExpired         = &AuthError{Message: "Code expired", StatusCode: http.StatusBadRequest}
	ErrInvalidCode         = &AuthError{Message: "Invalid code", StatusCode: http.StatusBadRequest}
	ErrInvalidEmail        = &AuthError{Message: "Invalid email", StatusCode: http.StatusBadRequest}
	ErrInvalidName         = &AuthError{Message: "Invalid name", StatusCode: http.StatusBadRequest}
	ErrMissingPassword     = &AuthError{Message: "Missing password", StatusCode: http.StatusBadRequest}
	ErrMissingEmail        = &AuthError{Message: "Missing email", StatusCode: http.StatusBadRequest}
	ErrMissingCode         = &AuthError{Message: "Missing code", StatusCode: http.StatusBadRequest}
	ErrSessionExpired      = &AuthError{Message: "Session expired", StatusCode: http.StatusUnauthorized}
	ErrInternal            = &AuthError{Message: "Internal error", StatusCode: http.StatusInternalServerError}
	ErrInvalidSession      = &AuthError{Message: "Invalid session", StatusCode: http.StatusBadRequest}
	ErrInvalidRefreshToken = &AuthError{Message: "Invalid refresh token", StatusCode: http.StatusBadRequest}
	ErrRefreshTokenExpired = &AuthError{Message: "Refresh token expired", StatusCode: http.StatusUnauthorized}
	ErrUserNotFound        = &AuthError{Message: "User not found", StatusCode: http.StatusNotFound}
	ErrInvalidReturnTo     = &AuthError{Message: "Invalid returnTo. Full URLs are not supported, only paths", StatusCode: http.StatusBadRequest}
)

func (e *AuthError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.cause }

// Is matches any AuthError carrying the same message, so wrapped copies
// produced by WithCause still compare equal to the predeclared values.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) {
		return false
	}
	return e.Message == other.Message
}

// WithCause returns a copy of the error carrying an underlying cause.
func (e *AuthError) WithCause(cause error) *AuthError {
	return &AuthError{Message: e.Message, StatusCode: e.StatusCode, cause: cause}
}

// WithStatus returns a copy of the error with a different HTTP status.
// Identity (the message) is unchanged, so errors.Is still matches.
func (e *AuthError) WithStatus(status int) *AuthError {
	return &AuthError{Message: e.Message, StatusCode: status, cause: e.cause}
}

// Slug returns the kebab-cased message, used in the x-auth-error header.
func (e *AuthError) Slug() string {
	return strings.ToLower(strings.ReplaceAll(e.Message, " ", "-"))
}

// asAuthError resolves any error to an AuthError, collapsing unknown
// failures into ErrInternal so downstream errors never leak to clients.
func asAuthError(err error) *AuthError {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return ErrInternal.WithCause(err)
}

// WriteError writes the error's status and message along with the
// x-auth-error header. Used by browser-facing flows where the body is
// plain text; API flows use writeJSONError instead.
func WriteError(w http.ResponseWriter, err error) {
	ae := asAuthError(err)
	w.Header().Set("x-auth-error", ae.Slug())
	http.Error(w, ae.Message, ae.StatusCode)
}

// writeJSONError writes {"ok": false} with the error's status and slug
// header, the shape API-facing flows (refresh, session) respond with.
func writeJSONError(w http.ResponseWriter, err error) {
	ae := asAuthError(err)
	w.Header().Set("x-auth-error", ae.Slug())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.StatusCode)
	json.NewEncoder(w).Encode(map[string]any{"ok": false})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
