// Command demo-hostapp is a minimal host application wiring pairauth
// together: file-backed storage, console email, Google OAuth, and the
// full handler set mounted under /auth.
//
// Configure with PAIRAUTH_* variables (see pairauth.ConfigFromEnv) plus
// GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET / GOOGLE_CALLBACK_URL for the
// Google provider. A .env file in the working directory is loaded if
// present.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/pairauth/pairauth"
	"github.com/pairauth/pairauth/providers"
	"github.com/pairauth/pairauth/stores/fs"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "err", err)
	}

	addr := os.Getenv("DEMO_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	origin := os.Getenv("DEMO_ORIGIN")
	if origin == "" {
		origin = "http://localhost:8080"
	}
	storagePath := os.Getenv("DEMO_STORAGE_PATH")
	if storagePath == "" {
		storagePath = "./data"
	}

	store := fs.NewStore(storagePath)

	config, err := pairauth.ConfigFromEnv()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if config.Secret == "" {
		// Development fallback only; never ship without PAIRAUTH_SECRET.
		config.Secret = "demo-secret-do-not-use-in-production"
	}
	config.RefreshPath = "/auth/refresh"
	config.CreateSession = func(ctx context.Context, userID string) (pairauth.Session, error) {
		return pairauth.Session{UserID: userID}, nil
	}

	sessions, err := pairauth.NewSessionManager(config)
	if err != nil {
		slog.Error("failed to create session manager", "err", err)
		os.Exit(1)
	}

	handlers := &pairauth.Handlers{
		Providers: map[string]pairauth.Provider{
			"google": providers.NewGoogle("", "", ""),
		},
		DB:       store,
		Sessions: sessions,
		Email: &pairauth.EmailService{
			Sender: pairauth.ConsoleEmailSender{},
			Config: pairauth.EmailConfig{
				UIOrigin: origin,
				From:     "noreply@localhost",
				AppName:  "pairauth demo",
			},
		},
		ReturnToOrigin: origin,
	}

	mux := http.NewServeMux()
	mux.Handle("/auth/", http.StripPrefix("/auth", handlers.Router()))
	mux.Handle("/", sessions.WithSession(http.HandlerFunc(home)))
	mux.Handle("/private", sessions.RequireSession(http.HandlerFunc(private)))

	slog.Info("demo host app listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func home(w http.ResponseWriter, r *http.Request) {
	session := pairauth.SessionFromContext(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if session != nil {
		fmt.Fprintf(w, `<p>Logged in as %s.</p>
<p><a href="/private">Private page</a> | <a href="/auth/logout">Log out</a></p>`, session.UserID)
		return
	}
	fmt.Fprint(w, `<p>Not logged in.</p>
<p><a href="/auth/google/login">Log in with Google</a></p>`)
}

func private(w http.ResponseWriter, r *http.Request) {
	session := pairauth.SessionFromContext(r.Context())
	fmt.Fprintf(w, "hello, %s\n", session.UserID)
}
