package pairauth

import (
	"context"
	"time"
)

// Provider is the capability set an identity provider must offer: build a
// login redirect URL, exchange the callback code for tokens, and fetch the
// user's profile. Concrete implementations live in the providers
// subpackage; anything satisfying this interface can be registered with
// the handlers.
type Provider interface {
	// LoginURL returns the provider's authorization URL. The state value
	// is round-tripped through the provider and validated on callback.
	LoginURL(state string) string

	// ExchangeCode trades the callback code for the provider's tokens.
	ExchangeCode(ctx context.Context, code string) (*ProviderTokens, error)

	// Profile fetches the authenticated user's profile.
	Profile(ctx context.Context, accessToken string) (*Profile, error)
}

// Profile is the provider-agnostic view of an external identity.
type Profile struct {
	ID            string
	FullName      string
	FriendlyName  string
	Email         string
	AvatarURL     string
	EmailVerified bool
}

// ProviderTokens are the raw OAuth tokens returned by a provider,
// persisted on the Account record.
type ProviderTokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	Scope        string
	ExpiresAt    time.Time
}
