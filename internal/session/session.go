// Package session holds the caller's authenticated session.
//
// A Session is passed explicitly to everything that talks to the backend;
// there is no process-wide current user.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Sentinel errors.
var (
	ErrNoToken = errors.New("session: no bearer token")
	ErrExpired = errors.New("session: token expired")
)

// Session is an authenticated caller identified by a backend-issued bearer token.
type Session struct {
	token     string
	userID    string
	username  string
	expiresAt time.Time
}

// New builds a Session from a raw bearer token. Claims are read without
// verifying the signature; the backend remains the authority. Tokens that
// are not JWTs are accepted as opaque and carry no claims.
func New(token string) *Session {
	s := &Session{token: strings.TrimSpace(token)}
	if s.token == "" {
		return s
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.token, claims); err != nil {
		return s
	}
	s.userID = claimString(claims, "user_id", "sub")
	s.username = claimString(claims, "username", "name")
	if exp, ok := claims["exp"].(float64); ok {
		s.expiresAt = time.Unix(int64(exp), 0)
	}
	return s
}

// FromAuthorizationHeader parses "Bearer <token>".
func FromAuthorizationHeader(h string) (*Session, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, ErrNoToken
	}
	return New(token), nil
}

// Token returns the raw bearer token.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.token
}

// Anonymous is the fingerprint of a session without a token.
const Anonymous = "anonymous"

// Fingerprint identifies the token without exposing it, for use as a cache
// key. Sessions without a token share Anonymous.
func (s *Session) Fingerprint() string {
	tok := s.Token()
	if tok == "" {
		return Anonymous
	}
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:16])
}

// UserID returns the user id claim, if any.
func (s *Session) UserID() string { return s.userID }

// Username returns the username claim, if any.
func (s *Session) Username() string { return s.username }

// ExpiresAt returns the exp claim; zero when the token carries none.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Check reports why the session cannot be used at now, or nil.
func (s *Session) Check(now time.Time) error {
	if s == nil || s.token == "" {
		return ErrNoToken
	}
	if !s.expiresAt.IsZero() && !now.Before(s.expiresAt) {
		return fmt.Errorf("%w at %s", ErrExpired, s.expiresAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// Valid is Check(now) == nil.
func (s *Session) Valid(now time.Time) bool {
	return s.Check(now) == nil
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		switch v := claims[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}
