package pairauth

import (
	"testing"
)

func TestValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "pat.smith+tag@example.com", "x_1@sub.domain.org"}
	invalid := []string{"", "plain", "@no-local.com", "no-domain@", "spaces in@b.co", "a@b"}
	for _, email := range valid {
		if !ValidEmail(email) {
			t.Errorf("ValidEmail(%q) = false, want true", email)
		}
	}
	for _, email := range invalid {
		if ValidEmail(email) {
			t.Errorf("ValidEmail(%q) = true, want false", email)
		}
	}
}

func TestGenerateVerificationCode(t *testing.T) {
	for _, digits := range []int{SignupCodeDigits, ResetCodeDigits} {
		code, err := GenerateVerificationCode(digits)
		if err != nil {
			t.Fatalf("GenerateVerificationCode(%d): %v", digits, err)
		}
		if len(code) != digits {
			t.Errorf("len(%q) = %d, want %d", code, len(code), digits)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Errorf("code %q contains non-digit %q", code, c)
			}
		}
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter22" {
		t.Fatal("password stored in plaintext")
	}
	if !CheckPassword(hash, "hunter22") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "hunter23") {
		t.Error("wrong password accepted")
	}
}
