package providers

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"

	"github.com/pairauth/pairauth"
)

const discordUserURL = "https://discord.com/api/users/@me"

var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

// Discord authenticates against Discord OAuth2.
type Discord struct {
	base
}

// NewDiscord builds a Discord provider. Empty arguments fall back to the
// DISCORD_CLIENT_ID, DISCORD_CLIENT_SECRET, and DISCORD_CALLBACK_URL
// environment variables.
func NewDiscord(clientID, clientSecret, callbackURL string) *Discord {
	if clientID == "" {
		clientID = os.Getenv("DISCORD_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("DISCORD_CLIENT_SECRET")
	}
	if callbackURL == "" {
		callbackURL = os.Getenv("DISCORD_CALLBACK_URL")
	}
	return &Discord{base{oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{"identify", "email"},
		Endpoint:     discordEndpoint,
	}}}
}

func (d *Discord) Profile(ctx context.Context, accessToken string) (*pairauth.Profile, error) {
	var user struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
		Email      string `json:"email"`
		Verified   bool   `json:"verified"`
		Avatar     string `json:"avatar"`
	}
	if err := getJSON(ctx, discordUserURL, accessToken, &user); err != nil {
		return nil, err
	}

	fullName := user.GlobalName
	if fullName == "" {
		fullName = user.Username
	}
	avatarURL := ""
	if user.Avatar != "" {
		avatarURL = fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", user.ID, user.Avatar)
	}
	return &pairauth.Profile{
		ID:            user.ID,
		FullName:      fullName,
		FriendlyName:  user.Username,
		Email:         user.Email,
		AvatarURL:     avatarURL,
		EmailVerified: user.Verified,
	}, nil
}
