package jwtmw

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestNewGenerator は各種設定でGeneratorが正しく生成されることを検証します。
func TestNewGenerator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		secret     string
		expiration time.Duration
	}{
		{"standard config", "my-secret-key", time.Hour},
		{"long expiration", "secret", 24 * time.Hour * 30},
		{"short expiration", "s", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen, ok := NewGenerator(tt.secret, tt.expiration).(*generator)

			if !ok {
				t.Fatal("expected *generator")
			}
			if string(gen.secret) != tt.secret {
				t.Errorf("expected secret %q, got %q", tt.secret, string(gen.secret))
			}
			if gen.expiration != tt.expiration {
				t.Errorf("expected expiration %v, got %v", tt.expiration, gen.expiration)
			}
		})
	}
}

// TestGenerator_GenerateToken は生成されたJWTトークンが有効で正しいクレームを含むことを検証します。
func TestGenerator_GenerateToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		subject    string
		expiration time.Duration
	}{
		{"mobile app", "ios-app", time.Hour},
		{"web client", "web-frontend", 24 * time.Hour},
		{"subject with symbols", "partner:acme.io", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			const secret = "test-secret"
			before := time.Now().Add(-time.Second)
			tokenStr, err := NewGenerator(secret, tt.expiration).GenerateToken(tt.subject)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var claims jwt.RegisteredClaims
			token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				t.Fatalf("expected valid token, got err=%v", err)
			}
			if token.Method.Alg() != "HS256" {
				t.Errorf("expected HS256, got %s", token.Method.Alg())
			}
			if claims.Subject != tt.subject {
				t.Errorf("expected subject %q, got %q", tt.subject, claims.Subject)
			}
			if claims.Issuer != Issuer {
				t.Errorf("expected issuer %q, got %q", Issuer, claims.Issuer)
			}
			if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(before.Add(tt.expiration)) {
				t.Errorf("unexpected expiry %v", claims.ExpiresAt)
			}
		})
	}
}

// TestGenerator_GenerateToken_EmptySubject はsubjectが空の場合にエラーとなることを検証します。
func TestGenerator_GenerateToken_EmptySubject(t *testing.T) {
	t.Parallel()

	if _, err := NewGenerator("secret", time.Hour).GenerateToken(""); err == nil {
		t.Fatal("expected error for empty subject")
	}
}
