package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// signTestToken signs a token with an explicit expiry instant, bypassing
// GenerateAccessToken's TTL handling, for boundary tests.
func signTestToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        "test-jti",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return signed
}

func TestGenerateAndParseAccessToken(t *testing.T) {
	signed, err := GenerateAccessToken("usr-12345678", testSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := ParseAccessToken(signed, testSecret)
	if err != nil {
		t.Fatalf("ParseAccessToken() error = %v", err)
	}

	if claims.Subject != "usr-12345678" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "usr-12345678")
	}
	if claims.ID == "" {
		t.Error("jti should be set")
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(time.Now()) {
		t.Error("expiry should be in the future")
	}
}

func TestParseAccessToken_ExpiryBoundary(t *testing.T) {
	// Strictly before expiry: accepted.
	tok := signTestToken(t, "usr-a", time.Now().Add(1*time.Second))
	if _, err := ParseAccessToken(tok, testSecret); err != nil {
		t.Errorf("token 1s before expiry should be accepted, got %v", err)
	}

	// Strictly after expiry: rejected with the expiry reason.
	tok = signTestToken(t, "usr-a", time.Now().Add(-1*time.Second))
	_, err := ParseAccessToken(tok, testSecret)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("token 1s past expiry should fail with ErrTokenExpired, got %v", err)
	}
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	signed, err := GenerateAccessToken("usr-a", testSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	_, err = ParseAccessToken(signed, "another-secret-key-also-32-chars-long!!")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("wrong secret should fail with ErrTokenInvalid, got %v", err)
	}
}

func TestParseAccessToken_Tampered(t *testing.T) {
	signed, err := GenerateAccessToken("usr-a", testSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tampered := signed[:len(signed)-2] + "xx"
	if _, err := ParseAccessToken(tampered, testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("tampered token should fail with ErrTokenInvalid, got %v", err)
	}
}

func TestParseAccessToken_Garbage(t *testing.T) {
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := ParseAccessToken(tok, testSecret); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("ParseAccessToken(%q) should fail with ErrTokenInvalid, got %v", tok, err)
		}
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	raw, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}

	if len(raw) != 64 { // 32 bytes hex-encoded
		t.Errorf("raw token length = %d, want 64", len(raw))
	}

	other, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	if raw == other {
		t.Error("two generated tokens should differ")
	}
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("some-raw-token")
	h2 := HashToken("some-raw-token")
	h3 := HashToken("some-raw-tokeN")

	if h1 != h2 {
		t.Error("HashToken should be deterministic")
	}
	if h1 == h3 {
		t.Error("different inputs should produce different hashes")
	}
	if len(h1) != 64 { // SHA-256 hex
		t.Errorf("hash length = %d, want 64", len(h1))
	}
}
