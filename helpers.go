package pairauth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// Verification code widths. Signup codes are 5 digits; password reset
// codes are 7, matching the links the email service builds.
const (
	SignupCodeDigits = 5
	ResetCodeDigits  = 7
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether the address looks like an email. Handlers
// reject anything else before touching storage.
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// GenerateVerificationCode returns a zero-padded numeric code with the
// given number of digits, drawn from crypto/rand.
func GenerateVerificationCode(digits int) (string, error) {
	limit := big.NewInt(1)
	for range digits {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// GenerateSecureToken returns a 32-byte random token, hex encoded. Used
// for OAuth state values.
func GenerateSecureToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashPassword hashes a plaintext password for storage. Store
// implementations use this so every backend agrees on the hash format.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a stored hash against a candidate password.
func CheckPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
