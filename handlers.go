package pairauth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
)

// Verification codes expire after 36 hours, long enough to finish signup
// from another device.
const verificationCodeTTL = 36 * time.Hour

// oauthStateCookie guards the OAuth callback against CSRF. Short-lived:
// it only needs to survive the round trip to the provider.
const (
	oauthStateCookie = "oauthstate"
	oauthStateTTL    = 10 * time.Minute
)

// Handlers orchestrates providers, storage, email, and the session
// manager into complete login/signup/reset/refresh flows. Each handler is
// an independent request-scoped function; the only state shared between
// requests lives in the storage backend.
type Handlers struct {
	Providers map[string]Provider
	DB        AuthDB
	Sessions  *SessionManager

	// Email enables the email verification and password reset flows.
	// Requires DB to implement EmailAuthDB.
	Email *EmailService

	// ReturnToOrigin is the only origin login flows will redirect back
	// to. Required.
	ReturnToOrigin string

	// DefaultReturnToPath is used when a flow carries no returnTo value.
	// Defaults to "/".
	DefaultReturnToPath string

	// GetPublicSession adapts what the session endpoint exposes. By
	// default the whole session is returned.
	GetPublicSession func(session Session) map[string]any

	// AddProvidersToExistingUsers controls what happens when a login
	// arrives for an email that already has a user under a different
	// provider: link the new provider, or fail with UserAlreadyExists.
	// Off by default; silently merging identities is opt-in.
	AddProvidersToExistingUsers bool
}

// Router mounts all handler routes. The session manager's RefreshPath
// must point at this router's /refresh route, including any prefix the
// caller mounts the router under.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/logout", h.HandleLogout).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/session", h.HandleSession).Methods(http.MethodGet)
	r.HandleFunc("/refresh", h.HandleRefreshSession).Methods(http.MethodPost)
	r.HandleFunc("/send-email-verification", h.HandleSendEmailVerification).Methods(http.MethodPost)
	r.HandleFunc("/verify-email", h.HandleVerifyEmail).Methods(http.MethodPost)
	r.HandleFunc("/email-login", h.HandleEmailLogin).Methods(http.MethodPost)
	r.HandleFunc("/reset-password", h.HandleResetPassword).Methods(http.MethodPost)
	r.HandleFunc("/verify-password-reset", h.HandleVerifyPasswordReset).Methods(http.MethodPost)
	r.HandleFunc("/{provider}/login", func(w http.ResponseWriter, req *http.Request) {
		h.HandleOAuthLogin(w, req, mux.Vars(req)["provider"])
	}).Methods(http.MethodGet)
	r.HandleFunc("/{provider}/callback", func(w http.ResponseWriter, req *http.Request) {
		h.HandleOAuthCallback(w, req, mux.Vars(req)["provider"])
	}).Methods(http.MethodGet)
	return r
}

// Handler returns the router as a plain http.Handler.
func (h *Handlers) Handler() http.Handler {
	return h.Router()
}

// emailDB asserts that storage supports the email flows.
func (h *Handlers) emailDB() (EmailAuthDB, error) {
	db, ok := h.DB.(EmailAuthDB)
	if !ok {
		return nil, fmt.Errorf("storage does not support email flows: implement EmailAuthDB")
	}
	return db, nil
}

// resolveReturnTo validates a return-to value and resolves it against the
// configured origin. Anything carrying its own scheme or host is rejected
// outright; return-to may only steer within the allowed origin.
func (h *Handlers) resolveReturnTo(path string) (string, error) {
	if path != "" {
		u, err := url.Parse(path)
		if err != nil {
			return "", ErrInvalidReturnTo.WithCause(err)
		}
		if u.Scheme != "" || u.Host != "" {
			return "", ErrInvalidReturnTo
		}
	}
	if path == "" {
		path = h.DefaultReturnToPath
	}
	if path == "" {
		path = "/"
	}
	base, err := url.Parse(h.ReturnToOrigin)
	if err != nil {
		return "", fmt.Errorf("invalid ReturnToOrigin: %w", err)
	}
	dest, err := base.Parse(path)
	if err != nil {
		return "", ErrInvalidReturnTo.WithCause(err)
	}
	return dest.String(), nil
}

// validateReturnTo rejects bad return-to values without resolving them.
// Flows that store or forward the raw value check it up front so the
// failure surfaces before any state is written; resolution happens later
// in redirectBack.
func (h *Handlers) validateReturnTo(path string) error {
	_, err := h.resolveReturnTo(path)
	return err
}

type redirectOptions struct {
	returnTo string
	appState string
	message  string
}

// redirectBack sends the user to wherever the flow started, appending the
// optional human-readable message and the round-tripped app state. Session
// cookies must already be set on the response by the caller.
func (h *Handlers) redirectBack(w http.ResponseWriter, r *http.Request, opts redirectOptions) {
	returnTo := opts.returnTo
	if returnTo == "" {
		returnTo = GetReturnTo(r)
	}
	resolved, err := h.resolveReturnTo(returnTo)
	if err != nil {
		WriteError(w, err)
		return
	}
	dest, err := url.Parse(resolved)
	if err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}
	q := dest.Query()
	if opts.message != "" {
		q.Add("message", opts.message)
	}
	appState := opts.appState
	if appState == "" {
		appState = GetAppState(r)
	}
	if appState != "" {
		q.Add("appState", appState)
	}
	dest.RawQuery = q.Encode()
	http.Redirect(w, r, dest.String(), http.StatusFound)
}

// HandleOAuthLogin starts an OAuth flow: remembers where to return, sets
// the CSRF state cookie, and redirects to the provider.
func (h *Handlers) HandleOAuthLogin(w http.ResponseWriter, r *http.Request, providerName string) {
	provider, ok := h.Providers[providerName]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown provider: %s", providerName), http.StatusNotFound)
		return
	}

	state, err := GenerateSecureToken()
	if err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}

	sameSite := h.Sessions.SameSite()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: sameSite,
		Expires:  time.Now().Add(oauthStateTTL),
	})

	returnTo := r.URL.Query().Get("returnTo")
	if returnTo == "" {
		returnTo = h.DefaultReturnToPath
	}
	SetReturnTo(w, returnTo, sameSite)
	SetAppState(w, r.URL.Query().Get("appState"), sameSite)

	http.Redirect(w, r, provider.LoginURL(state), http.StatusFound)
}

// HandleOAuthCallback finishes an OAuth flow: validates state, exchanges
// the code, resolves or creates the user and account, mints a session, and
// redirects back.
func (h *Handlers) HandleOAuthCallback(w http.ResponseWriter, r *http.Request, providerName string) {
	provider, ok := h.Providers[providerName]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown provider: %s", providerName), http.StatusNotFound)
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/", MaxAge: -1})
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		WriteError(w, ErrMissingCode)
		return
	}

	ctx := r.Context()
	tokens, err := provider.ExchangeCode(ctx, code)
	if err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}
	profile, err := provider.Profile(ctx, tokens.AccessToken)
	if err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}

	account, err := h.DB.GetAccountByProviderAccountID(ctx, providerName, profile.ID)
	if err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}

	var userID string
	if account != nil {
		userID = account.UserID
	} else {
		user, err := h.DB.GetUserByEmail(ctx, profile.Email)
		if err != nil {
			WriteError(w, ErrInternal.WithCause(err))
			return
		}
		if user != nil {
			if !h.AddProvidersToExistingUsers {
				WriteError(w, ErrUserAlreadyExists)
				return
			}
			userID = user.ID
		} else {
			userID, err = h.DB.InsertUser(ctx, NewUser{
				FullName:     profile.FullName,
				FriendlyName: profile.FriendlyName,
				Email:        profile.Email,
				ImageURL:     profile.AvatarURL,
			})
			if err != nil {
				WriteError(w, ErrInternal.WithCause(err))
				return
			}
		}
		expiresAt := tokens.ExpiresAt
		if _, err := h.DB.InsertAccount(ctx, Account{
			UserID:            userID,
			Type:              "oauth",
			Provider:          providerName,
			ProviderAccountID: profile.ID,
			RefreshToken:      tokens.RefreshToken,
			AccessToken:       tokens.AccessToken,
			ExpiresAt:         &expiresAt,
			TokenType:         tokens.TokenType,
			Scope:             tokens.Scope,
			IDToken:           tokens.IDToken,
		}); err != nil {
			WriteError(w, ErrInternal.WithCause(err))
			return
		}
	}

	if err := h.loginAs(w, r, userID); err != nil {
		WriteError(w, err)
		return
	}
	h.redirectBack(w, r, redirectOptions{})
}

// HandleLogout clears both session cookies and redirects back.
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.ClearSession(w)
	h.redirectBack(w, r, redirectOptions{})
}

// HandleSendEmailVerification begins email signup: stores a one-time code
// and emails a verification link. The return-to and app-state values ride
// along as cookies so the verify step can resume the flow.
func (h *Handlers) HandleSendEmailVerification(w http.ResponseWriter, r *http.Request) {
	db, err := h.emailDB()
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrInvalidEmail.WithCause(err))
		return
	}

	name := r.PostFormValue("name")
	email := r.PostFormValue("email")
	if name == "" {
		WriteError(w, ErrInvalidName)
		return
	}
	if email == "" {
		WriteError(w, ErrMissingEmail)
		return
	}
	if !ValidEmail(email) {
		WriteError(w, ErrInvalidEmail)
		return
	}
	returnTo := r.PostFormValue("returnTo")
	if err := h.validateReturnTo(returnTo); err != nil {
		WriteError(w, err)
		return
	}
	appState := r.PostFormValue("appState")

	code, err := GenerateVerificationCode(SignupCodeDigits)
	if err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}

	ctx := r.Context()
	if err := db.InsertVerificationCode(ctx, VerificationCode{
		Email:     email,
		Code:      code,
		Name:      name,
		ExpiresAt: time.Now().Add(verificationCodeTTL),
	}); err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}

	// The code is already persisted; a failed send is recoverable out of
	// band, so log it rather than failing the request.
	if h.Email != nil {
		if err := h.Email.SendEmailVerification(ctx, email, code); err != nil {
			slog.Error("failed to send verification email", "email", email, "err", err)
		}
	}

	sameSite := h.Sessions.SameSite()
	SetAppState(w, appState, sameSite)
	SetReturnTo(w, returnTo, sameSite)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleVerifyEmail completes email signup: checks the code, creates or
// claims the user, records the email account, consumes the code, and logs
// the user in. The code is consumed only after everything else succeeded,
// so a failure part-way does not burn it.
func (h *Handlers) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	db, err := h.emailDB()
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrInvalidEmail.WithCause(err))
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	code := r.PostFormValue("code")
	if code == "" {
		WriteError(w, ErrMissingCode)
		return
	}
	if email == "" {
		WriteError(w, ErrMissingEmail)
		return
	}
	if password == "" {
		WriteError(w, ErrMissingPassword)
		return
	}
	if !ValidEmail(email) {
		WriteError(w, ErrInvalidEmail)
		return
	}

	ctx := r.Context()
	stored, err := db.GetVerificationCode(ctx, email, code)
	if err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}
	if stored == nil {
		WriteError(w, ErrInvalidCode)
		return
	}
	if time.Now().After(stored.ExpiresAt) {
		WriteError(w, ErrCodeExpired)
		return
	}

	user, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}
	now := time.Now()
	var userID string
	if user != nil {
		// A user who already holds a password signed up by email before;
		// this flow must not overwrite their credentials.
		if !h.AddProvidersToExistingUsers || user.Password != "" {
			WriteError(w, ErrUserAlreadyExists)
			return
		}
		if err := db.UpdateUser(ctx, user.ID, UserUpdate{
			EmailVerifiedAt:   &now,
			PlaintextPassword: &password,
		}); err != nil {
			WriteError(w, ErrInternal.WithCause(err))
			return
		}
		userID = user.ID
	} else {
		userID, err = db.InsertUser(ctx, NewUser{
			FullName:          stored.Name,
			Email:             email,
			EmailVerifiedAt:   &now,
			PlaintextPassword: password,
		})
		if err != nil {
			WriteError(w, ErrInternal.WithCause(err))
			return
		}
	}

	if _, err := db.InsertAccount(ctx, Account{
		UserID:            userID,
		Type:              "email",
		Provider:          "email",
		ProviderAccountID: email,
	}); err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}
	if err := db.ConsumeVerificationCode(ctx, email, code); err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}

	if err := h.loginAs(w, r, userID); err != nil {
		WriteError(w, err)
		return
	}
	h.redirectBack(w, r, redirectOptions{})
}

// HandleEmailLogin authenticates an email+password user and logs them in.
func (h *Handlers) HandleEmailLogin(w http.ResponseWriter, r *http.Request) {
	db, err := h.emailDB()
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrInvalidEmail.WithCause(err))
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" {
		WriteError(w, ErrMissingEmail)
		return
	}
	if !ValidEmail(email) {
		WriteError(w, ErrInvalidEmail)
		return
	}
	if password == "" {
		WriteError(w, ErrMissingPassword)
		return
	}
	returnTo := r.PostFormValue("returnTo")
	if err := h.validateReturnTo(returnTo); err != nil {
		WriteError(w, err)
		return
	}

	ctx := r.Context()
	user, err := db.GetUserByEmailAndPassword(ctx, email, password)
	if err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}
	if user == nil {
		WriteError(w, ErrInvalidPassword)
		return
	}

	if err := h.loginAs(w, r, user.ID); err != nil {
		WriteError(w, err)
		return
	}
	h.redirectBack(w, r, redirectOptions{
		returnTo: returnTo,
		appState: r.PostFormValue("appState"),
	})
}

// HandleResetPassword begins a password reset: stores a one-time code and
// emails a reset link. Always answers ok so the endpoint does not reveal
// whether an email is registered.
func (h *Handlers) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	db, err := h.emailDB()
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrInvalidEmail.WithCause(err))
		return
	}

	email := r.PostFormValue("email")
	if email == "" {
		WriteError(w, ErrMissingEmail)
		return
	}
	if !ValidEmail(email) {
		WriteError(w, ErrInvalidEmail)
		return
	}
	returnTo := r.PostFormValue("returnTo")
	if err := h.validateReturnTo(returnTo); err != nil {
		WriteError(w, err)
		return
	}
	appState := r.PostFormValue("appState")

	code, err := GenerateVerificationCode(ResetCodeDigits)
	if err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}

	ctx := r.Context()
	if err := db.InsertVerificationCode(ctx, VerificationCode{
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().Add(verificationCodeTTL),
	}); err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}

	if h.Email != nil {
		if err := h.Email.SendPasswordReset(ctx, email, code, returnTo, appState); err != nil {
			slog.Error("failed to send password reset email", "email", email, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleVerifyPasswordReset completes a password reset: checks the code,
// updates the password, consumes the code, and logs the user in so they
// land back in the app already authenticated.
func (h *Handlers) HandleVerifyPasswordReset(w http.ResponseWriter, r *http.Request) {
	db, err := h.emailDB()
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrInvalidEmail.WithCause(err))
		return
	}

	email := r.PostFormValue("email")
	code := r.PostFormValue("code")
	newPassword := r.PostFormValue("newPassword")
	if code == "" {
		WriteError(w, ErrMissingCode)
		return
	}
	if email == "" {
		WriteError(w, ErrMissingEmail)
		return
	}
	if !ValidEmail(email) {
		WriteError(w, ErrInvalidEmail)
		return
	}
	if newPassword == "" {
		WriteError(w, ErrMissingPassword)
		return
	}
	if len(newPassword) < 5 {
		WriteError(w, ErrInvalidPassword.WithStatus(http.StatusBadRequest))
		return
	}
	returnTo := r.PostFormValue("returnTo")
	if err := h.validateReturnTo(returnTo); err != nil {
		WriteError(w, err)
		return
	}

	ctx := r.Context()
	stored, err := db.GetVerificationCode(ctx, email, code)
	if err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}
	if stored == nil {
		WriteError(w, ErrInvalidCode)
		return
	}
	if time.Now().After(stored.ExpiresAt) {
		WriteError(w, ErrCodeExpired)
		return
	}

	user, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}
	if user == nil {
		WriteError(w, ErrUserNotFound)
		return
	}

	if err := db.UpdateUser(ctx, user.ID, UserUpdate{PlaintextPassword: &newPassword}); err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}
	if err := db.ConsumeVerificationCode(ctx, email, code); err != nil {
		WriteError(w, ErrInternal.WithCause(err))
		return
	}

	if err := h.loginAs(w, r, user.ID); err != nil {
		WriteError(w, err)
		return
	}
	h.redirectBack(w, r, redirectOptions{
		returnTo: returnTo,
		appState: r.PostFormValue("appState"),
		message:  "Password reset successfully",
	})
}

// HandleSession reports the current session. Absence is not an error:
// clients get {"session": null} with a 200. Expired or invalid tokens do
// fail, with the slug in x-auth-error so clients know to refresh.
func (h *Handlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.Sessions.GetSession(r)
	if err != nil {
		writeJSONError(w, err)
		return
	}
	if session == nil {
		writeJSON(w, http.StatusOK, map[string]any{"session": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": h.publicSession(*session)})
}

// HandleRefreshSession rotates the token pair. A 401 is terminal (the
// refresh token itself expired), so both cookies are cleared to land the
// client in a clean logged-out state; a 400 leaves cookies alone since the
// client may be able to retry.
func (h *Handlers) HandleRefreshSession(w http.ResponseWriter, r *http.Request) {
	err := h.Sessions.RefreshSession(w, r)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	slog.Warn("session refresh failed", "err", err)
	var ae *AuthError
	if errors.As(err, &ae) && ae.StatusCode == http.StatusUnauthorized {
		h.Sessions.ClearSession(w)
	}
	writeJSONError(w, err)
}

// loginAs builds the session for a user and sets the token cookies.
func (h *Handlers) loginAs(w http.ResponseWriter, r *http.Request, userID string) error {
	session, err := h.Sessions.CreateSession(r.Context(), userID)
	if err != nil {
		return ErrInternal.WithCause(err)
	}
	return h.Sessions.IssueTokens(w, session)
}

func (h *Handlers) publicSession(s Session) map[string]any {
	if h.GetPublicSession != nil {
		return h.GetPublicSession(s)
	}
	out := map[string]any{"userId": s.UserID}
	for k, v := range s.Extra {
		out[k] = v
	}
	return out
}
