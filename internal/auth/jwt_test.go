package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewTokenIssuer(t *testing.T) {
	if _, err := NewTokenIssuer("", time.Hour); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("Expected ErrMissingSecret, got %v", err)
	}

	issuer, err := NewTokenIssuer("secret", 0)
	if err != nil {
		t.Fatalf("Failed to create issuer: %v", err)
	}
	if issuer.ttl != 24*time.Hour {
		t.Errorf("Expected default ttl of 24h, got %v", issuer.ttl)
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Hour)
	if err != nil {
		t.Fatalf("Failed to create issuer: %v", err)
	}

	token, expiresAt, err := issuer.GenerateSessionToken("session-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Errorf("Expected expiry in the future, got %v", expiresAt)
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.SessionID != "session-1" || claims.Role != RoleSession {
		t.Errorf("Unexpected claims %+v", claims)
	}
}

func TestTokenIssuer_RejectsInvalidTokens(t *testing.T) {
	issuer, _ := NewTokenIssuer("secret", time.Hour)
	other, _ := NewTokenIssuer("other-secret", time.Hour)

	foreign, _, err := other.GenerateSessionToken("session-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	expiredIssuer, _ := NewTokenIssuer("secret", time.Minute)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, err := expiredIssuer.GenerateSessionToken("session-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	wrongRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &SessionClaims{
		SessionID: "session-1",
		Role:      "device",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "wrong secret", token: foreign},
		{name: "expired", token: expired},
		{name: "wrong role", token: wrongRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.ValidateToken(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
