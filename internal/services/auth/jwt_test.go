package auth

import (
	"errors"
	"testing"
	"time"
)

func TestJWTManagerRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	token, expiresAt, err := manager.GenerateAccessToken(42, "user")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	claims, err := manager.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.OwnerID != 42 || claims.Role != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTManagerRejectsExpiredToken(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Minute)
	manager.now = func() time.Time {
		return time.Now().Add(-time.Hour)
	}

	token, _, err := manager.GenerateAccessToken(7, "user")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := manager.ParseAccessToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestJWTManagerRejectsWrongSecret(t *testing.T) {
	manager := NewJWTManager("secret-a", time.Hour)
	other := NewJWTManager("secret-b", time.Hour)

	token, _, err := manager.GenerateAccessToken(7, "user")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := other.ParseAccessToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong secret, got %v", err)
	}
}

func TestJWTManagerRejectsGarbage(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	for _, raw := range []string{"", "  ", "not.a.token"} {
		if _, err := manager.ParseAccessToken(raw); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized for %q, got %v", raw, err)
		}
	}
}
