package pairauth

import (
	"context"
	"net/http"
)

type contextKey int

const sessionKey contextKey = iota

// ContextWithSession returns a context carrying the session.
func ContextWithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext returns the session placed on the context by the
// middleware, or nil.
func SessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionKey).(*Session)
	return session
}

// WithSession decodes the session cookie if one is present and attaches
// the session to the request context. Requests without a session, or with
// one that fails verification, pass through with no session attached;
// handlers that need one should sit behind RequireSession instead.
func (m *SessionManager) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if session, err := m.GetSession(r); err == nil && session != nil {
			r = r.WithContext(ContextWithSession(r.Context(), session))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession rejects requests without a valid session. An expired
// token answers with the session-expired slug so clients know a refresh
// may recover it; a missing cookie is a plain 401.
func (m *SessionManager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.GetSession(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		if session == nil {
			WriteError(w, ErrSessionExpired)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
	})
}
