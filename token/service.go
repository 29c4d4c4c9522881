// Package token issues and validates the HS256 access tokens handed out on
// sign-in. Tokens are self-contained; validation never touches the store.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Config holds the token settings taken from SecurityConfig
type Config struct {
	SigningKey string
	Issuer     string
	TTL        time.Duration
}

// Service signs and verifies access tokens
type Service struct {
	key    []byte
	issuer string
	ttl    time.Duration
	clock  clockwork.Clock
	parser *jwt.Parser
}

// NewService creates a token Service. A nil clock means the real clock.
func NewService(cfg Config, clock clockwork.Clock) (*Service, error) {
	if cfg.SigningKey == "" {
		return nil, errors.New("token signing key is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("token TTL must be positive, got %s", cfg.TTL)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Service{
		key:    []byte(cfg.SigningKey),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		clock:  clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(clock.Now),
		),
	}, nil
}

// TTL returns the lifetime given to new tokens
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the user carrying the given roles and permissions.
// It returns the token and its expiry.
func (s *Service) Issue(userID int64, roles, permissions []string) (string, time.Time, error) {
	issued := s.clock.Now().UTC()
	now := issued.Truncate(time.Second)
	exp := ceilSecond(issued.Add(s.ttl))

	if roles == nil {
		roles = []string{}
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID:      userID,
		Roles:       roles,
		Permissions: permissions,
	}

	tk := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Validate verifies the token and returns its claims. Expired tokens yield
// ErrExpiredToken; every other failure yields ErrInvalidToken.
func (s *Service) Validate(raw string) (*Claims, error) {
	claims := &Claims{}
	tk, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tk.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	if claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return nil, fmt.Errorf("%w: subject does not match uid", ErrInvalidToken)
	}
	return claims, nil
}

// ceilSecond rounds t up to the whole second carried by exp, so a token never
// lives shorter than the configured TTL.
func ceilSecond(t time.Time) time.Time {
	if r := t.Truncate(time.Second); !r.Equal(t) {
		return r.Add(time.Second)
	}
	return t
}
