//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/oklog/ulid/v2"
	"google.golang.org/api/iterator"

	"github.com/pairauth/pairauth"
)

// Kind constants for Datastore entities
const (
	KindUser             = "AuthUser"
	KindAccount          = "AuthAccount"
	KindVerificationCode = "AuthVerificationCode"
)

// UserEntity is the Datastore representation of a user. Zero times stand
// in for "not set"; Datastore has no use for nil here.
type UserEntity struct {
	FullName        string    `datastore:"full_name,noindex"`
	FriendlyName    string    `datastore:"friendly_name,noindex"`
	Email           string    `datastore:"email"`
	EmailVerifiedAt time.Time `datastore:"email_verified_at,noindex"`
	ImageURL        string    `datastore:"image_url,noindex"`
	Password        string    `datastore:"password,noindex"`
	CreatedAt       time.Time `datastore:"created_at,noindex"`
	UpdatedAt       time.Time `datastore:"updated_at,noindex"`
}

func (e *UserEntity) toUser(id string) *pairauth.User {
	user := &pairauth.User{
		ID:           id,
		FullName:     e.FullName,
		FriendlyName: e.FriendlyName,
		Email:        e.Email,
		ImageURL:     e.ImageURL,
		Password:     e.Password,
	}
	if !e.EmailVerifiedAt.IsZero() {
		t := e.EmailVerifiedAt
		user.EmailVerifiedAt = &t
	}
	return user
}

// AccountEntity is the Datastore representation of a provider account.
type AccountEntity struct {
	ID                string    `datastore:"id,noindex"`
	UserID            string    `datastore:"user_id"`
	Type              string    `datastore:"type,noindex"`
	Provider          string    `datastore:"provider"`
	ProviderAccountID string    `datastore:"provider_account_id"`
	RefreshToken      string    `datastore:"refresh_token,noindex"`
	AccessToken       string    `datastore:"access_token,noindex"`
	ExpiresAt         time.Time `datastore:"expires_at,noindex"`
	TokenType         string    `datastore:"token_type,noindex"`
	Scope             string    `datastore:"scope,noindex"`
	IDToken           string    `datastore:"id_token,noindex"`
	CreatedAt         time.Time `datastore:"created_at,noindex"`
}

// VerificationCodeEntity is the Datastore representation of a one-time
// code.
type VerificationCodeEntity struct {
	Email     string    `datastore:"email"`
	Code      string    `datastore:"code,noindex"`
	Name      string    `datastore:"name,noindex"`
	ExpiresAt time.Time `datastore:"expires_at,noindex"`
}

// Store implements pairauth.EmailAuthDB using Google Cloud Datastore
type Store struct {
	client    *datastore.Client
	namespace string
}

var _ pairauth.EmailAuthDB = (*Store)(nil)

func NewStore(client *datastore.Client, namespace string) *Store {
	return &Store{client: client, namespace: namespace}
}

func (s *Store) key(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *Store) query(kind string) *datastore.Query {
	return datastore.NewQuery(kind).Namespace(s.namespace)
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

	now := time.Now()
	entity := &UserEntity{
		FullName:     user.FullName,
		FriendlyName: user.FriendlyName,
		Email:        user.Email,
		ImageURL:     user.ImageURL,
		Password:     hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if user.EmailVerifiedAt != nil {
		entity.EmailVerifiedAt = *user.EmailVerifiedAt
	}

	userID := ulid.Make().String()
	if _, err := s.client.Put(ctx, s.key(KindUser, userID), entity); err != nil {
		return "", err
	}
	return userID, nil
}

func (s *Store) UpdateUser(ctx context.Context, userID string, update pairauth.UserUpdate) error {
	key := s.key(KindUser, userID)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(key, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return fmt.Errorf("user not found: %s", userID)
			}
			return err
		}

		if update.FullName != nil {
			entity.FullName = *update.FullName
		}
		if update.FriendlyName != nil {
			entity.FriendlyName = *update.FriendlyName
		}
		if update.ImageURL != nil {
			entity.ImageURL = *update.ImageURL
		}
		if update.EmailVerifiedAt != nil {
			entity.EmailVerifiedAt = *update.EmailVerifiedAt
		}
		if update.PlaintextPassword != nil {
			hash, err := pairauth.HashPassword(*update.PlaintextPassword)
			if err != nil {
				return err
			}
			entity.Password = hash
		}
		entity.UpdatedAt = time.Now()

		_, err := tx.Put(key, &entity)
		return err
	})
	return err
}

func (s *Store) InsertAccount(ctx context.Context, account pairauth.Account) (string, error) {
	account.ID = ulid.Make().String()
	entity := &AccountEntity{
		ID:                account.ID,
		UserID:            account.UserID,
		Type:              account.Type,
		Provider:          account.Provider,
		ProviderAccountID: account.ProviderAccountID,
		RefreshToken:      account.RefreshToken,
		AccessToken:       account.AccessToken,
		TokenType:         account.TokenType,
		Scope:             account.Scope,
		IDToken:           account.IDToken,
		CreatedAt:         time.Now(),
	}
	if account.ExpiresAt != nil {
		entity.ExpiresAt = *account.ExpiresAt
	}

	key := s.key(KindAccount, account.Provider+"/"+account.ProviderAccountID)
	if _, err := s.client.Put(ctx, key, entity); err != nil {
		return "", err
	}
	return account.ID, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*pairauth.User, error) {
	it := s.client.Run(ctx, s.query(KindUser).FilterField("email", "=", email).Limit(1))
	var entity UserEntity
	key, err := it.Next(&entity)
	if errors.Is(err, iterator.Done) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entity.toUser(key.Name), nil
}

func (s *Store) GetAccountByProviderAccountID(ctx context.Context, provider, providerAccountID string) (*pairauth.Account, error) {
	var entity AccountEntity
	err := s.client.Get(ctx, s.key(KindAccount, provider+"/"+providerAccountID), &entity)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	account := &pairauth.Account{
		ID:                entity.ID,
		UserID:            entity.UserID,
		Type:              entity.Type,
		Provider:          entity.Provider,
		ProviderAccountID: entity.ProviderAccountID,
		RefreshToken:      entity.RefreshToken,
		AccessToken:       entity.AccessToken,
		TokenType:         entity.TokenType,
		Scope:             entity.Scope,
		IDToken:           entity.IDToken,
	}
	if !entity.ExpiresAt.IsZero() {
		t := entity.ExpiresAt
		account.ExpiresAt = &t
	}
	return account, nil
}

func (s *Store) InsertVerificationCode(ctx context.Context, code pairauth.VerificationCode) error {
	entity := &VerificationCodeEntity{
		Email:     code.Email,
		Code:      code.Code,
		Name:      code.Name,
		ExpiresAt: code.ExpiresAt,
	}
	_, err := s.client.Put(ctx, s.key(KindVerificationCode, code.Email+"/"+code.Code), entity)
	return err
}

func (s *Store) GetVerificationCode(ctx context.Context, email, code string) (*pairauth.VerificationCode, error) {
	var entity VerificationCodeEntity
	err := s.client.Get(ctx, s.key(KindVerificationCode, email+"/"+code), &entity)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pairauth.VerificationCode{
		Email:     entity.Email,
		Code:      entity.Code,
		Name:      entity.Name,
		ExpiresAt: entity.ExpiresAt,
	}, nil
}

func (s *Store) ConsumeVerificationCode(ctx context.Context, email, code string) error {
	return s.client.Delete(ctx, s.key(KindVerificationCode, email+"/"+code))
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
