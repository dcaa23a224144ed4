//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	"github.com/pairauth/pairauth"
)

// UserModel is the GORM model for users
type UserModel struct {
	ID              string `gorm:"primaryKey;size:26"`
	FullName        string `gorm:"size:255"`
	FriendlyName    string `gorm:"size:255"`
	Email           string `gorm:"size:320;uniqueIndex"`
	EmailVerifiedAt *time.Time
	ImageURL        string    `gorm:"size:1024"`
	Password        string    `gorm:"size:128"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "auth_users"
}

func (m *UserModel) ToUser() *pairauth.User {
	return &pairauth.User{
		ID:              m.ID,
		FullName:        m.FullName,
		FriendlyName:    m.FriendlyName,
		Email:           m.Email,
		EmailVerifiedAt: m.EmailVerifiedAt,
		ImageURL:        m.ImageURL,
		Password:        m.Password,
	}
}

// AccountModel is the GORM model for provider accounts
type AccountModel struct {
	ID                string `gorm:"primaryKey;size:26"`
	UserID            string `gorm:"size:26;index"`
	Type              string `gorm:"size:16"`
	Provider          string `gorm:"size:64;uniqueIndex:idx_provider_account"`
	ProviderAccountID string `gorm:"size:255;uniqueIndex:idx_provider_account"`
	RefreshToken      string `gorm:"size:2048"`
	AccessToken       string `gorm:"size:2048"`
	ExpiresAt         *time.Time
	TokenType         string    `gorm:"size:64"`
	Scope             string    `gorm:"size:1024"`
	IDToken           string    `gorm:"size:4096"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}

func (AccountModel) TableName() string {
	return "auth_accounts"
}

func (m *AccountModel) ToAccount() *pairauth.Account {
	return &pairauth.Account{
		ID:                m.ID,
		UserID:            m.UserID,
		Type:              m.Type,
		Provider:          m.Provider,
		ProviderAccountID: m.ProviderAccountID,
		RefreshToken:      m.RefreshToken,
		AccessToken:       m.AccessToken,
		ExpiresAt:         m.ExpiresAt,
		TokenType:         m.TokenType,
		Scope:             m.Scope,
		IDToken:           m.IDToken,
	}
}

// VerificationCodeModel is the GORM model for one-time codes
type VerificationCodeModel struct {
	Email     string `gorm:"primaryKey;size:320"`
	Code      string `gorm:"primaryKey;size:16"`
	Name      string `gorm:"size:255"`
	ExpiresAt time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (VerificationCodeModel) TableName() string {
	return "auth_verification_codes"
}
