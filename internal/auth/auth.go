// Package auth provides bearer token sources for the sync backend.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryLeeway is subtracted from a token's exp claim so a token on
// the verge of expiring is treated as already expired. A connection
// opened with a nearly dead token would be torn down moments later.
const expiryLeeway = 30 * time.Second

// StaticToken serves a fixed token string.
type StaticToken struct {
	token string
}

// NewStaticToken wraps a literal token value.
func NewStaticToken(token string) *StaticToken {
	return &StaticToken{token: strings.TrimSpace(token)}
}

// Token returns the wrapped token. An expired JWT is reported as an
// error rather than handed to the transport.
func (s *StaticToken) Token(_ context.Context) (string, error) {
	if s.token == "" {
		return "", fmt.Errorf("token is empty")
	}
	if err := checkExpiry(s.token); err != nil {
		return "", err
	}
	return s.token, nil
}

// FileToken re-reads a token from disk on every request, so an
// external refresher (sidecar, cron, mounted secret) can rotate it
// without restarting the process.
type FileToken struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	cached string
}

// NewFileToken serves the token stored at path.
func NewFileToken(path string, logger *slog.Logger) *FileToken {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileToken{
		path:   path,
		logger: logger.With("component", "auth"),
	}
}

// Token reads the current token from the file. If the read fails but a
// previously read token is still valid, the cached value is served.
func (f *FileToken) Token(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if f.cached != "" && checkExpiry(f.cached) == nil {
			f.logger.Warn("token file unreadable, serving cached token", "path", f.path, "error", err)
			return f.cached, nil
		}
		return "", fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", f.path)
	}
	if err := checkExpiry(token); err != nil {
		return "", err
	}

	f.cached = token
	return token, nil
}

// checkExpiry inspects the exp claim of a JWT without verifying its
// signature; verification is the backend's job. Opaque tokens pass
// through untouched.
func checkExpiry(token string) error {
	if strings.Count(token, ".") != 2 {
		return nil
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		// Not a decodable JWT. Let the backend judge it.
		return nil
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}

	if time.Until(exp.Time) < expiryLeeway {
		return fmt.Errorf("token expired at %s", exp.Time.Format(time.RFC3339))
	}
	return nil
}

// ExpiresAt returns the exp claim of a JWT, or the zero time when the
// token is opaque or carries no expiry.
func ExpiresAt(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
