package auth

import (
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("super-secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if err := CheckPassword(hash, "super-secret"); err != nil {
		t.Fatalf("expected password to match, got %v", err)
	}

	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"
	claims := Claims{UserID: "u1", Email: "hr@example.com", Name: "Hana", Role: RoleHR, EmployeeID: "e1"}

	token, err := GenerateToken(secret, claims, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if parsed.UserID != claims.UserID || parsed.Role != claims.Role || parsed.EmployeeID != claims.EmployeeID || parsed.Email != claims.Email {
		t.Fatalf("claims mismatch: %+v", parsed)
	}
	if parsed.ID == "" {
		t.Fatal("expected token id to be assigned")
	}
	if parsed.Subject != "u1" {
		t.Fatalf("expected subject u1, got %q", parsed.Subject)
	}
}

func TestParseTokenRejectsBadTokens(t *testing.T) {
	expired, err := GenerateToken("secret", Claims{UserID: "u1", Role: RoleEmployee}, -time.Minute)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	unknownRole, err := GenerateToken("secret", Claims{UserID: "u1", Role: "JANITOR"}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	valid, err := GenerateToken("secret", Claims{UserID: "u1", Role: RoleEmployee}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	cases := map[string]struct {
		secret string
		token  string
	}{
		"expired":      {secret: "secret", token: expired},
		"unknown role": {secret: "secret", token: unknownRole},
		"wrong secret": {secret: "other", token: valid},
		"garbage":      {secret: "secret", token: "not-a-jwt"},
		"empty":        {secret: "secret", token: ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseToken(tc.secret, tc.token); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}
