package pairauth

import (
	"context"
	"time"
)

// User is an account holder. Password holds the bcrypt hash, never the
// plaintext; stores hash on insert/update.
type User struct {
	ID              string     `json:"id"`
	FullName        string     `json:"full_name"`
	FriendlyName    string     `json:"friendly_name,omitempty"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
	Password        string     `json:"password,omitempty"`
}

// NewUser is the insert payload. PlaintextPassword is hashed by the store.
type NewUser struct {
	FullName          string
	FriendlyName      string
	Email             string
	EmailVerifiedAt   *time.Time
	ImageURL          string
	PlaintextPassword string
}

// UserUpdate is a partial update; nil fields are left untouched.
type UserUpdate struct {
	FullName          *string
	FriendlyName      *string
	ImageURL          *string
	EmailVerifiedAt   *time.Time
	PlaintextPassword *string
}

// Account links a user to one authentication method (an OAuth provider
// account or an email+password credential).
type Account struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Type              string     `json:"type"` // "oauth" or "email"
	Provider          string     `json:"provider"`
	ProviderAccountID string     `json:"provider_account_id"`
	RefreshToken      string     `json:"refresh_token,omitempty"`
	AccessToken       string     `json:"access_token,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	TokenType         string     `json:"token_type,omitempty"`
	Scope             string     `json:"scope,omitempty"`
	IDToken           string     `json:"id_token,omitempty"`
}

// VerificationCode is a one-time code bound to an email address. Name
// carries the display name through signup; password reset codes leave it
// empty.
type VerificationCode struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	Name      string    `json:"name,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthDB is the storage contract consumed by the request handlers.
// Lookups return (nil, nil) when no record matches; errors are reserved
// for storage failures.
type AuthDB interface {
	InsertUser(ctx context.Context, user NewUser) (userID string, err error)
	UpdateUser(ctx context.Context, userID string, update UserUpdate) error
	InsertAccount(ctx context.Context, account Account) (accountID string, err error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetAccountByProviderAccountID(ctx context.Context, provider, providerAccountID string) (*Account, error)
}

// EmailAuthDB extends AuthDB with the storage the email flows need.
// Handlers detect support with a type assertion and fail fast when email
// is configured against a store that lacks it.
//
// ConsumeVerificationCode is deliberately separate from
// GetVerificationCode: handlers verify first and consume only after every
// other step succeeds, so a failure later in the flow does not burn the
// code.
type EmailAuthDB interface {
	AuthDB
	InsertVerificationCode(ctx context.Context, code VerificationCode) error
	GetVerificationCode(ctx context.Context, email, code string) (*VerificationCode, error)
	ConsumeVerificationCode(ctx context.Context, email, code string) error
	GetUserByEmailAndPassword(ctx context.Context, email, password string) (*User, error)
}
