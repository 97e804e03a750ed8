// Package session issues and validates opaque admin bearer tokens. Tokens
// live only in process memory, so a restart invalidates every session.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"time"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized signals wrong credentials or an invalid/expired token.
// The HTTP layer maps it to a 401, not a redirect.
var ErrUnauthorized = errors.New("session: unauthorized")

// Guard holds the single admin credential pair and the valid-token set.
type Guard struct {
	user         string
	passwordHash []byte
	tokens       *cache.Cache
	ttl          time.Duration
}

// NewGuard creates a guard for the configured admin user. passwordHash is a
// bcrypt hash; tokens expire after ttl.
func NewGuard(user, passwordHash string, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Guard{
		user:         user,
		passwordHash: []byte(passwordHash),
		tokens:       cache.New(ttl, 10*time.Minute),
		ttl:          ttl,
	}
}

// Login checks the credential pair and mints a session token on success.
func (g *Guard) Login(user, pass string) (string, error) {
	if user != g.user {
		return "", ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(g.passwordHash, []byte(pass)); err != nil {
		return "", ErrUnauthorized
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}
	g.tokens.Set(token, struct{}{}, g.ttl)
	return token, nil
}

// Authenticate reports whether token is a live session.
func (g *Guard) Authenticate(token string) error {
	if token == "" {
		return ErrUnauthorized
	}
	if _, ok := g.tokens.Get(token); !ok {
		return ErrUnauthorized
	}
	return nil
}

// Logout drops the token. Unknown tokens are a no-op.
func (g *Guard) Logout(token string) {
	g.tokens.Delete(token)
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashPassword is a convenience for provisioning the admin credential.
func HashPassword(pass string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
