package usertoken

import (
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "user-1",
		"aud":   "authenticated",
		"iss":   "https://project.supabase.co/auth/v1",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
		"email": "ada@example.com",
		"role":  "authenticated",
		"user_metadata": map[string]any{
			"full_name":  "Ada Lovelace",
			"avatar_url": "https://cdn.example.com/ada.png",
		},
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier(Config{}); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestVerifyExtractsIdentity(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret, Issuer: "https://project.supabase.co/auth/v1"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	id, err := v.Verify(signToken(t, testSecret, jwt.SigningMethodHS256, baseClaims()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.ID != "user-1" || id.Email != "ada@example.com" || id.DisplayName != "Ada Lovelace" || id.AvatarURL != "https://cdn.example.com/ada.png" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifyRejects(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret, Issuer: "https://project.supabase.co/auth/v1"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	tests := []struct {
		name   string
		secret string
		method jwt.SigningMethod
		mutate func(jwt.MapClaims)
	}{
		{name: "wrong secret", secret: "another-secret-another-secret-another", method: jwt.SigningMethodHS256},
		{name: "expired", secret: testSecret, method: jwt.SigningMethodHS256, mutate: func(c jwt.MapClaims) {
			c["exp"] = time.Now().Add(-time.Hour).Unix()
		}},
		{name: "missing exp", secret: testSecret, method: jwt.SigningMethodHS256, mutate: func(c jwt.MapClaims) { delete(c, "exp") }},
		{name: "wrong audience", secret: testSecret, method: jwt.SigningMethodHS256, mutate: func(c jwt.MapClaims) { c["aud"] = "anon" }},
		{name: "wrong issuer", secret: testSecret, method: jwt.SigningMethodHS256, mutate: func(c jwt.MapClaims) { c["iss"] = "someone-else" }},
		{name: "hs512 not accepted", secret: testSecret, method: jwt.SigningMethodHS512},
		{name: "missing subject", secret: testSecret, method: jwt.SigningMethodHS256, mutate: func(c jwt.MapClaims) { delete(c, "sub") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims := baseClaims()
			if tc.mutate != nil {
				tc.mutate(claims)
			}
			if _, err := v.Verify(signToken(t, tc.secret, tc.method, claims)); err == nil {
				t.Fatalf("expected verification failure")
			}
		})
	}
}

func TestVerifyWithoutIssuerCheck(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	claims := baseClaims()
	claims["iss"] = "anything"
	if _, err := v.Verify(signToken(t, testSecret, jwt.SigningMethodHS256, claims)); err != nil {
		t.Fatalf("issuer should not be checked when unset: %v", err)
	}
}
