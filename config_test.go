package pairauth

import (
	"net/http"
	"testing"
	"time"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PAIRAUTH_SECRET", "env-secret")
	t.Setenv("PAIRAUTH_EXPIRATION", "1h")
	t.Setenv("PAIRAUTH_MODE", ModeProduction)
	t.Setenv("PAIRAUTH_SAMESITE", "none")
	t.Setenv("PAIRAUTH_ISSUER", "myapp")

	config, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if config.Secret != "env-secret" {
		t.Errorf("Secret = %q", config.Secret)
	}
	if config.Expiration != time.Hour {
		t.Errorf("Expiration = %v", config.Expiration)
	}
	if config.Mode != ModeProduction {
		t.Errorf("Mode = %q", config.Mode)
	}
	if config.SameSite != http.SameSiteNoneMode {
		t.Errorf("SameSite = %v", config.SameSite)
	}
	if config.Issuer != "myapp" {
		t.Errorf("Issuer = %q", config.Issuer)
	}
}

func TestParseSameSite(t *testing.T) {
	tests := []struct {
		in      string
		want    http.SameSite
		wantErr bool
	}{
		{"", http.SameSiteLaxMode, false},
		{"lax", http.SameSiteLaxMode, false},
		{"Strict", http.SameSiteStrictMode, false},
		{"none", http.SameSiteNoneMode, false},
		{"bogus", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSameSite(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSameSite(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseSameSite(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
