package fs

import (
	"context"
	"testing"
	"time"

	"github.com/pairauth/pairauth"
)

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir())

	userID, err := store.InsertUser(ctx, pairauth.NewUser{
		FullName:          "Pat Example",
		Email:             "pat@example.com",
		PlaintextPassword: "hunter22",
	})
	if err != nil {
		t.Fatalf("InsertUser: %v", err)
	}

	user, err := store.GetUserByEmail(ctx, "pat@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user == nil || user.ID != userID || user.FullName != "Pat Example" {
		t.Fatalf("user = %+v", user)
	}
	if user.Password == "hunter22" {
		t.Fatal("password stored in plaintext")
	}

	// Duplicate emails are rejected.
	if _, err := store.InsertUser(ctx, pairauth.NewUser{Email: "pat@example.com"}); err == nil {
		t.Fatal("duplicate email accepted")
	}

	// Unknown lookups are (nil, nil), not errors.
	if user, err := store.GetUserByEmail(ctx, "nobody@example.com"); err != nil || user != nil {
		t.Fatalf("unknown email: user = %+v, err = %v", user, err)
	}

	name := "Pat Q. Example"
	now := time.Now()
	if err := store.UpdateUser(ctx, userID, pairauth.UserUpdate{
		FullName:        &name,
		EmailVerifiedAt: &now,
	}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	user, _ = store.GetUserByEmail(ctx, "pat@example.com")
	if user.FullName != name || user.EmailVerifiedAt == nil {
		t.Fatalf("after update: %+v", user)
	}
}

func TestPasswordLogin(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir())

	if _, err := store.InsertUser(ctx, pairauth.NewUser{
		Email:             "pat@example.com",
		PlaintextPassword: "hunter22",
	}); err != nil {
		t.Fatal(err)
	}

	if user, err := store.GetUserByEmailAndPassword(ctx, "pat@example.com", "hunter22"); err != nil || user == nil {
		t.Fatalf("correct password: user = %+v, err = %v", user, err)
	}
	if user, err := store.GetUserByEmailAndPassword(ctx, "pat@example.com", "wrong"); err != nil || user != nil {
		t.Fatalf("wrong password: user = %+v, err = %v", user, err)
	}

	newPassword := "better-password"
	userRecord, _ := store.GetUserByEmail(ctx, "pat@example.com")
	if err := store.UpdateUser(ctx, userRecord.ID, pairauth.UserUpdate{
		PlaintextPassword: &newPassword,
	}); err != nil {
		t.Fatal(err)
	}
	if user, _ := store.GetUserByEmailAndPassword(ctx, "pat@example.com", "hunter22"); user != nil {
		t.Error("old password still accepted")
	}
	if user, _ := store.GetUserByEmailAndPassword(ctx, "pat@example.com", newPassword); user == nil {
		t.Error("new password rejected")
	}
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir())

	accountID, err := store.InsertAccount(ctx, pairauth.Account{
		UserID:            "u1",
		Type:              "oauth",
		Provider:          "google",
		ProviderAccountID: "ext-1",
		AccessToken:       "tok",
	})
	if err != nil {
		t.Fatalf("InsertAccount: %v", err)
	}
	if accountID == "" {
		t.Fatal("empty account id")
	}

	account, err := store.GetAccountByProviderAccountID(ctx, "google", "ext-1")
	if err != nil {
		t.Fatalf("GetAccountByProviderAccountID: %v", err)
	}
	if account == nil || account.UserID != "u1" || account.ID != accountID {
		t.Fatalf("account = %+v", account)
	}

	if account, err := store.GetAccountByProviderAccountID(ctx, "google", "other"); err != nil || account != nil {
		t.Fatalf("unknown account: %+v, err = %v", account, err)
	}
}

func TestVerificationCodes(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir())

	code := pairauth.VerificationCode{
		Email:     "pat@example.com",
		Code:      "12345",
		Name:      "Pat",
		ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second),
	}
	if err := store.InsertVerificationCode(ctx, code); err != nil {
		t.Fatalf("InsertVerificationCode: %v", err)
	}

	stored, err := store.GetVerificationCode(ctx, "pat@example.com", "12345")
	if err != nil {
		t.Fatalf("GetVerificationCode: %v", err)
	}
	if stored == nil || stored.Name != "Pat" || !stored.ExpiresAt.Equal(code.ExpiresAt) {
		t.Fatalf("stored = %+v", stored)
	}

	if stored, err := store.GetVerificationCode(ctx, "pat@example.com", "00000"); err != nil || stored != nil {
		t.Fatalf("unknown code: %+v, err = %v", stored, err)
	}

	if err := store.ConsumeVerificationCode(ctx, "pat@example.com", "12345"); err != nil {
		t.Fatalf("ConsumeVerificationCode: %v", err)
	}
	if stored, _ := store.GetVerificationCode(ctx, "pat@example.com", "12345"); stored != nil {
		t.Error("code not consumed")
	}
	if err := store.ConsumeVerificationCode(ctx, "pat@example.com", "12345"); err == nil {
		t.Error("consuming a missing code should fail")
	}
}
