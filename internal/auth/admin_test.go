package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-admin-secret"

func TestAdminValidator_Validate(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	valid, err := IssueAdminToken(testSecret, "ops@example.com", time.Hour, now)
	if err != nil {
		t.Fatalf("IssueAdminToken() error = %v", err)
	}
	expired, _ := IssueAdminToken(testSecret, "ops@example.com", time.Hour, now.Add(-3*time.Hour))
	otherSecret, _ := IssueAdminToken("another-secret", "ops@example.com", time.Hour, now)

	guestToken, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		Role: "guest",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "someone",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "someone"},
	}).SignedString([]byte(testSecret))

	validator, err := NewAdminValidator(testSecret)
	if err != nil {
		t.Fatalf("NewAdminValidator() error = %v", err)
	}

	tests := []struct {
		name     string
		token    string
		expected string
		wantErr  error
		anyErr   bool
	}{
		{name: "valid token", token: valid, expected: "ops@example.com"},
		{name: "bearer prefix", token: "Bearer " + valid, expected: "ops@example.com"},
		{name: "empty token", token: "", wantErr: ErrMissingToken},
		{name: "expired", token: expired, wantErr: jwt.ErrTokenExpired},
		{name: "wrong secret", token: otherSecret, wantErr: jwt.ErrTokenSignatureInvalid},
		{name: "wrong role", token: guestToken, wantErr: ErrForbidden},
		{name: "missing expiry", token: noExpiry, anyErr: true},
		{name: "garbage", token: "not.a.jwt", anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, err := validator.Validate(ctx, tt.token)

			if tt.wantErr != nil || tt.anyErr {
				if err == nil {
					t.Fatalf("Validate() expected error but got none")
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
			if subject != tt.expected {
				t.Errorf("Validate() subject = %v, want %v", subject, tt.expected)
			}
		})
	}
}

func TestNewAdminValidator_RequiresSecret(t *testing.T) {
	if _, err := NewAdminValidator("  "); err == nil {
		t.Error("NewAdminValidator() expected error for blank secret")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		token  string
		ok     bool
	}{
		{name: "empty header", header: ""},
		{name: "bearer token", header: "Bearer abc.def.ghi", token: "abc.def.ghi", ok: true},
		{name: "lowercase scheme", header: "bearer abc.def.ghi", token: "abc.def.ghi", ok: true},
		{name: "raw token", header: "abc.def.ghi"},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz"},
		{name: "scheme only", header: "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, ok := BearerToken(tt.header)
			if token != tt.token || ok != tt.ok {
				t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, token, ok, tt.token, tt.ok)
			}
		})
	}
}
