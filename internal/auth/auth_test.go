package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestStaticToken(t *testing.T) {
	src := NewStaticToken("  opaque-token\n")

	got, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if got != "opaque-token" {
		t.Errorf("Token = %q, want trimmed value", got)
	}
}

func TestStaticToken_Empty(t *testing.T) {
	if _, err := NewStaticToken("").Token(context.Background()); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestStaticToken_ValidJWT(t *testing.T) {
	tok := signedToken(t, time.Now().Add(time.Hour))

	got, err := NewStaticToken(tok).Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if got != tok {
		t.Error("token altered")
	}
}

func TestStaticToken_ExpiredJWT(t *testing.T) {
	tok := signedToken(t, time.Now().Add(-time.Hour))

	if _, err := NewStaticToken(tok).Token(context.Background()); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestStaticToken_NearlyExpiredJWT(t *testing.T) {
	// Inside the leeway window: treated as expired
	tok := signedToken(t, time.Now().Add(10*time.Second))

	if _, err := NewStaticToken(tok).Token(context.Background()); err == nil {
		t.Error("expected error for token inside the expiry leeway")
	}
}

func TestFileToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("file-token\n"), 0600); err != nil {
		t.Fatalf("write token file: %v", err)
	}

	src := NewFileToken(path, nil)
	got, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if got != "file-token" {
		t.Errorf("Token = %q, want file-token", got)
	}
}

func TestFileToken_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	os.WriteFile(path, []byte("first"), 0600)

	src := NewFileToken(path, nil)
	if got, _ := src.Token(context.Background()); got != "first" {
		t.Fatalf("Token = %q, want first", got)
	}

	// Rotate the token on disk; next request sees the new value
	os.WriteFile(path, []byte("second"), 0600)
	if got, _ := src.Token(context.Background()); got != "second" {
		t.Errorf("Token = %q, want second after rotation", got)
	}
}

func TestFileToken_ServesCacheWhenFileUnreadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	os.WriteFile(path, []byte("cached"), 0600)

	src := NewFileToken(path, nil)
	if _, err := src.Token(context.Background()); err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	os.Remove(path)
	got, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed after file removal: %v", err)
	}
	if got != "cached" {
		t.Errorf("Token = %q, want cached value", got)
	}
}

func TestFileToken_Missing(t *testing.T) {
	src := NewFileToken(filepath.Join(t.TempDir(), "nope"), nil)
	if _, err := src.Token(context.Background()); err == nil {
		t.Error("expected error for missing token file")
	}
}

func TestFileToken_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	os.WriteFile(path, []byte("  \n"), 0600)

	src := NewFileToken(path, nil)
	if _, err := src.Token(context.Background()); err == nil {
		t.Error("expected error for empty token file")
	}
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signedToken(t, exp)

	got := ExpiresAt(tok)
	if !got.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", got, exp)
	}

	if !ExpiresAt("opaque-token").IsZero() {
		t.Error("opaque token should have zero expiry")
	}
}
