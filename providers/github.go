package providers

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/pairauth/pairauth"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

// GitHub authenticates against GitHub OAuth.
type GitHub struct {
	base
}

// NewGitHub builds a GitHub provider. Empty arguments fall back to the
// GITHUB_CLIENT_ID, GITHUB_CLIENT_SECRET, and GITHUB_CALLBACK_URL
// environment variables.
func NewGitHub(clientID, clientSecret, callbackURL string) *GitHub {
	if clientID == "" {
		clientID = os.Getenv("GITHUB_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GITHUB_CLIENT_SECRET")
	}
	if callbackURL == "" {
		callbackURL = os.Getenv("GITHUB_CALLBACK_URL")
	}
	return &GitHub{base{oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{"read:user", "user:email"},
		Endpoint:     github.Endpoint,
	}}}
}

func (g *GitHub) Profile(ctx context.Context, accessToken string) (*pairauth.Profile, error) {
	var user struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, githubUserURL, accessToken, &user); err != nil {
		return nil, err
	}

	email := user.Email
	verified := false
	if email == "" {
		// The public profile email may be unset; the emails endpoint lists
		// all addresses with their verification state.
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, githubEmailsURL, accessToken, &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary {
				email = e.Email
				verified = e.Verified
				break
			}
		}
	}

	fullName := user.Name
	if fullName == "" {
		fullName = user.Login
	}
	return &pairauth.Profile{
		ID:            fmt.Sprintf("%d", user.ID),
		FullName:      fullName,
		FriendlyName:  user.Login,
		Email:         email,
		AvatarURL:     user.AvatarURL,
		EmailVerified: verified,
	}, nil
}
