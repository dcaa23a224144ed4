package pairauth

import (
	"testing"
)

func TestNewClaimMapper(t *testing.T) {
	tests := []struct {
		name    string
		names   ShortNames
		wantErr bool
	}{
		{"defaults when empty", nil, false},
		{"user id plus extras", ShortNames{"userId": "sub", "role": "r"}, false},
		{"missing userId", ShortNames{"role": "r"}, true},
		{"empty short name", ShortNames{"userId": "sub", "role": ""}, true},
		{"duplicate short names", ShortNames{"userId": "sub", "role": "x", "plan": "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newClaimMapper(tt.names)
			if (err != nil) != tt.wantErr {
				t.Errorf("newClaimMapper(%v) err = %v, wantErr %v", tt.names, err, tt.wantErr)
			}
		})
	}
}

func TestClaimsFromSessionRejectsUnmappedFields(t *testing.T) {
	mapper, err := newClaimMapper(ShortNames{"userId": "sub", "role": "r"})
	if err != nil {
		t.Fatalf("newClaimMapper: %v", err)
	}

	claims, err := mapper.claimsFromSession(Session{
		UserID: "u1",
		Extra:  map[string]any{"role": "admin"},
	})
	if err != nil {
		t.Fatalf("claimsFromSession: %v", err)
	}
	if claims["sub"] != "u1" || claims["r"] != "admin" {
		t.Errorf("claims = %v", claims)
	}

	_, err = mapper.claimsFromSession(Session{
		UserID: "u1",
		Extra:  map[string]any{"unmapped": 1},
	})
	if err == nil {
		t.Fatal("expected error for field without a short name")
	}
}
