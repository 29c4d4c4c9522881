package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for any token that fails parsing, signature,
	// algorithm or issuer checks
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token's exp is in the past
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the payload carried by access tokens
type Claims struct {
	jwt.RegisteredClaims
	UserID      int64    `json:"uid"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"perms,omitempty"`
}

// ExpiresAtTime returns exp as a time.Time, or the zero time when absent
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
