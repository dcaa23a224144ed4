package providers

import (
	"context"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/pairauth/pairauth"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Google authenticates against Google OAuth2.
type Google struct {
	base
}

// NewGoogle builds a Google provider. Empty arguments fall back to the
// GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, and GOOGLE_CALLBACK_URL
// environment variables.
func NewGoogle(clientID, clientSecret, callbackURL string) *Google {
	if clientID == "" {
		clientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if callbackURL == "" {
		callbackURL = os.Getenv("GOOGLE_CALLBACK_URL")
	}
	return &Google{base{oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}}}
}

func (g *Google) Profile(ctx context.Context, accessToken string) (*pairauth.Profile, error) {
	var info struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		GivenName     string `json:"given_name"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Picture       string `json:"picture"`
	}
	if err := getJSON(ctx, googleUserInfoURL, accessToken, &info); err != nil {
		return nil, err
	}
	return &pairauth.Profile{
		ID:            info.ID,
		FullName:      info.Name,
		FriendlyName:  info.GivenName,
		Email:         info.Email,
		AvatarURL:     info.Picture,
		EmailVerified: info.VerifiedEmail,
	}, nil
}
