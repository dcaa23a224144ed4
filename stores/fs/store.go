// Package fs implements pairauth storage as JSON files on disk. Meant
// for development and small single-node deployments; every write goes
// through an atomic rename so a crash never leaves a half-written record.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/pairauth/pairauth"
)

// Store implements pairauth.EmailAuthDB on a directory of JSON files.
//
// Layout:
//
//	users/<userID>.json
//	emails/<email>.json            (email -> userID index)
//	accounts/<provider>_<id>.json
//	codes/<email>_<code>.json
type Store struct {
	StoragePath string

	mu sync.Mutex
}

var _ pairauth.EmailAuthDB = (*Store)(nil)

func NewStore(storagePath string) *Store {
	return &Store{StoragePath: storagePath}
}

// safeName makes a key usable as a filename. Escaping keeps separators
// out; filepath.Base guards against traversal.
func safeName(key string) string {
	return filepath.Base(url.QueryEscape(key))
}

func (s *Store) userPath(userID string) string {
	return filepath.Join(s.StoragePath, "users", safeName(userID)+".json")
}

func (s *Store) emailPath(email string) string {
	return filepath.Join(s.StoragePath, "emails", safeName(email)+".json")
}

func (s *Store) accountPath(provider, providerAccountID string) string {
	return filepath.Join(s.StoragePath, "accounts", safeName(provider+"_"+providerAccountID)+".json")
}

func (s *Store) codePath(email, code string) string {
	return filepath.Join(s.StoragePath, "codes", safeName(email+"_"+code)+".json")
}

func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// readJSONFile reads path into v. Returns (false, nil) when the file does
// not exist.
func readJSONFile(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

type emailIndex struct {
	UserID string `json:"user_id"`
}

func (s *Store) InsertUser(_ context.Context, user pairauth.NewUser) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var idx emailIndex
	if found, err := readJSONFile(s.emailPath(user.Email), &idx); err != nil {
		return "", err
	} else if found {
		return "", fmt.Errorf("user already exists for email %s", user.Email)
	}

	hash := ""
	if user.PlaintextPassword != "" {
		var err error
		hash, err = pairauth.HashPassword(user.PlaintextPassword)
		if err != nil {
			return "", err
		}
	}

	userID := ulid.Make().String()
	record := pairauth.User{
		ID:              userID,
		FullName:        user.FullName,
		FriendlyName:    user.FriendlyName,
		Email:           user.Email,
		EmailVerifiedAt: user.EmailVerifiedAt,
		ImageURL:        user.ImageURL,
		Password:        hash,
	}
	if err := writeJSONFile(s.userPath(userID), &record); err != nil {
		return "", err
	}
	if err := writeJSONFile(s.emailPath(user.Email), &emailIndex{UserID: userID}); err != nil {
		return "", err
	}
	return userID, nil
}

func (s *Store) UpdateUser(_ context.Context, userID string, update pairauth.UserUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var record pairauth.User
	found, err := readJSONFile(s.userPath(userID), &record)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("user not found: %s", userID)
	}

	if update.FullName != nil {
		record.FullName = *update.FullName
	}
	if update.FriendlyName != nil {
		record.FriendlyName = *update.FriendlyName
	}
	if update.ImageURL != nil {
		record.ImageURL = *update.ImageURL
	}
	if update.EmailVerifiedAt != nil {
		record.EmailVerifiedAt = update.EmailVerifiedAt
	}
	if update.PlaintextPassword != nil {
		hash, err := pairauth.HashPassword(*update.PlaintextPassword)
		if err != nil {
			return err
		}
		record.Password = hash
	}
	return writeJSONFile(s.userPath(userID), &record)
}

func (s *Store) InsertAccount(_ context.Context, account pairauth.Account) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account.ID = ulid.Make().String()
	path := s.accountPath(account.Provider, account.ProviderAccountID)
	if err := writeJSONFile(path, &account); err != nil {
		return "", err
	}
	return account.ID, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*pairauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getUserByEmail(email)
}

func (s *Store) getUserByEmail(email string) (*pairauth.User, error) {
	var idx emailIndex
	found, err := readJSONFile(s.emailPath(email), &idx)
	if err != nil || !found {
		return nil, err
	}
	var record pairauth.User
	found, err = readJSONFile(s.userPath(idx.UserID), &record)
	if err != nil || !found {
		return nil, err
	}
	return &record, nil
}

func (s *Store) GetAccountByProviderAccountID(_ context.Context, provider, providerAccountID string) (*pairauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var record pairauth.Account
	found, err := readJSONFile(s.accountPath(provider, providerAccountID), &record)
	if err != nil || !found {
		return nil, err
	}
	return &record, nil
}

func (s *Store) InsertVerificationCode(_ context.Context, code pairauth.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONFile(s.codePath(code.Email, code.Code), &code)
}

func (s *Store) GetVerificationCode(_ context.Context, email, code string) (*pairauth.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var record pairauth.VerificationCode
	found, err := readJSONFile(s.codePath(email, code), &record)
	if err != nil || !found {
		return nil, err
	}
	return &record, nil
}

func (s *Store) ConsumeVerificationCode(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.codePath(email, code))
	if os.IsNotExist(err) {
		return fmt.Errorf("verification code not found")
	}
	return err
}

func (s *Store) GetUserByEmailAndPassword(_ context.Context, email, password string) (*pairauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.getUserByEmail(email)
	if err != nil || user == nil {
		return nil, err
	}
	if user.Password == "" || !pairauth.CheckPassword(user.Password, password) {
		return nil, nil
	}
	return user, nil
}
