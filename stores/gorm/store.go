//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/pairauth/pairauth"
)

// AutoMigrate runs database migrations for all pairauth tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&AccountModel{},
		&VerificationCodeModel{},
	)
}

// Store implements pairauth.EmailAuthDB using GORM
type Store struct {
	db *gorm.DB
}

var _ pairauth.EmailAuthDB = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InsertUser(ctx context.Context, user pairauth.NewUser) (string, error) {
	hash := ""
	if user.PlaintextPassword != "" {
		var err error
		hash, err = pairauth.HashPassword(user.PlaintextPassword)
		if err != nil {
			return "", err
		}
	}

	model := &UserModel{
		ID:              ulid.Make().String(),
		FullName:        user.FullName,
		FriendlyName:    user.FriendlyName,
		Email:           user.Email,
		EmailVerifiedAt: user.EmailVerifiedAt,
		ImageURL:        user.ImageURL,
		Password:        hash,
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return "", err
	}
	return model.ID, nil
}

func (s *Store) UpdateUser(ctx context.Context, userID string, update pairauth.UserUpdate) error {
	updates := map[string]any{}
	if update.FullName != nil {
		updates["full_name"] = *update.FullName
	}
	if update.FriendlyName != nil {
		updates["friendly_name"] = *update.FriendlyName
	}
	if update.ImageURL != nil {
		updates["image_url"] = *update.ImageURL
	}
	if update.EmailVerifiedAt != nil {
		updates["email_verified_at"] = *update.EmailVerifiedAt
	}
	if update.PlaintextPassword != nil {
		hash, err := pairauth.HashPassword(*update.PlaintextPassword)
		if err != nil {
			return err
		}
		updates["password"] = hash
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", userID).
		Updates(updates).Error
}

func (s *Store) InsertAccount(ctx context.Context, account pairauth.Account) (string, error) {
	model := &AccountModel{
		ID:                ulid.Make().String(),
		UserID:            account.UserID,
		Type:              account.Type,
		Provider:          account.Provider,
		ProviderAccountID: account.ProviderAccountID,
		RefreshToken:      account.RefreshToken,
		AccessToken:       account.AccessToken,
		ExpiresAt:         account.ExpiresAt,
		TokenType:         account.TokenType,
		Scope:             account.Scope,
		IDToken:           account.IDToken,
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return "", err
	}
	return model.ID, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*pairauth.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).First(&model, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *Store) GetAccountByProviderAccountID(ctx context.Context, provider, providerAccountID string) (*pairauth.Account, error) {
	var model AccountModel
	err := s.db.WithContext(ctx).
		First(&model, "provider = ? AND provider_account_id = ?", provider, providerAccountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToAccount(), nil
}

func (s *Store) InsertVerificationCode(ctx context.Context, code pairauth.VerificationCode) error {
	model := &VerificationCodeModel{
		Email:     code.Email,
		Code:      code.Code,
		Name:      code.Name,
		ExpiresAt: code.ExpiresAt,
	}
	return s.db.WithContext(ctx).Create(model).Error
}

func (s *Store) GetVerificationCode(ctx context.Context, email, code string) (*pairauth.VerificationCode, error) {
	var model VerificationCodeModel
	err := s.db.WithContext(ctx).First(&model, "email = ? AND code = ?", email, code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pairauth.VerificationCode{
		Email:     model.Email,
		Code:      model.Code,
		Name:      model.Name,
		ExpiresAt: model.ExpiresAt,
	}, nil
}

func (s *Store) ConsumeVerificationCode(ctx context.Context, email, code string) error {
	return s.db.WithContext(ctx).
		Delete(&VerificationCodeModel{}, "email = ? AND code = ?", email, code).Error
}

func (s *Store) GetUserByEmailAndPassword(ctx context.Context, email, password string) (*pairauth.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, err
	}
	if user.Password == "" || !pairauth.CheckPassword(user.Password, password) {
		return nil, nil
	}
	return user, nil
}
