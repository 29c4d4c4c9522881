// Package identity implements sign-up, sign-in, token validation and the user
// lifecycle on top of the credential verifier, the token service and the store.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/upb/authd/internal/credentials"
	"github.com/upb/authd/models"
	"github.com/upb/authd/repositories"
	"github.com/upb/authd/services"
	"github.com/upb/authd/services/audit"
	"github.com/upb/authd/token"
	"go.uber.org/zap"
)

const maxUsernameLength = 64

// CredentialVerifier checks username/password pairs
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (int64, error)
}

// PasswordHasher produces stored password hashes
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// TokenService issues and validates access tokens
type TokenService interface {
	Issue(userID int64, roles, permissions []string) (string, time.Time, error)
	Validate(raw string) (*token.Claims, error)
}

// SignInResult is returned on successful sign-in
type SignInResult struct {
	UserID    int64     `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Roles     []string  `json:"roles"`
}

// TokenInfo is the decoded content of a valid token
type TokenInfo struct {
	UserID      int64     `json:"user_id"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service implements the identity use cases
type Service struct {
	users    repositories.UserRepository
	roles    repositories.RoleRepository
	verifier CredentialVerifier
	hasher   PasswordHasher
	tokens   TokenService
	policy   credentials.Policy
	auditor  audit.Recorder
	logger   *zap.Logger
}

// NewService creates a new identity Service
func NewService(
	users repositories.UserRepository,
	roles repositories.RoleRepository,
	verifier CredentialVerifier,
	hasher PasswordHasher,
	tokens TokenService,
	policy credentials.Policy,
	auditor audit.Recorder,
	logger *zap.Logger,
) *Service {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &Service{
		users:    users,
		roles:    roles,
		verifier: verifier,
		hasher:   hasher,
		tokens:   tokens,
		policy:   policy,
		auditor:  auditor,
		logger:   logger,
	}
}

// CreateUser validates the password policy, hashes the password and stores
// an enabled user.
func (s *Service) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrInvalidUsername.Message, nil).
			WithDetail("field", "username")
	}
	if reasons := s.policy.Validate(password); len(reasons) > 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrWeakPassword.Message, nil).
			WithDetail("field", "password").
			WithDetail("reasons", reasons)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, services.WrapInternal("failed to hash password", err)
	}

	user, err := s.users.Create(ctx, username, hash)
	if err != nil {
		return nil, services.FromStoreError(err, "", services.ErrDuplicateUsername.Message)
	}

	s.logger.Info("user created", zap.Int64("user_id", user.ID))
	s.auditor.Record(ctx, models.NewAuditLog(models.AuditActionUserCreated, "user").
		WithResource(user.ID).
		WithDetails(map[string]string{"username": user.Username}))

	return user, nil
}

// SignIn verifies the credentials and issues a token carrying the user's
// current roles. Every verification failure yields the same forbidden error.
func (s *Service) SignIn(ctx context.Context, username, password string) (*SignInResult, error) {
	userID, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		if errors.Is(err, credentials.ErrInvalidCredentials) {
			s.logger.Info("sign-in rejected", zap.String("reason", "invalid_credentials"))
			s.auditor.Record(ctx, models.NewAuditLog(models.AuditActionSignInFailed, "user").
				WithDetails(map[string]string{"username": username}))
			return nil, services.ErrInvalidCredentials
		}
		return nil, services.FromStoreError(err, "", "")
	}

	grant, err := s.roles.ActiveGrant(ctx, userID)
	if err != nil {
		return nil, services.FromStoreError(err, "", "")
	}

	raw, expiresAt, err := s.tokens.Issue(userID, grant.Roles, grant.Permissions)
	if err != nil {
		return nil, services.WrapInternal("failed to issue token", err)
	}

	s.auditor.Record(ctx, models.NewAuditLog(models.AuditActionSignIn, "user").
		WithActor(userID).
		WithResource(userID))

	roles := grant.Roles
	if roles == nil {
		roles = []string{}
	}
	return &SignInResult{
		UserID:    userID,
		Token:     raw,
		ExpiresAt: expiresAt,
		Roles:     roles,
	}, nil
}

// ValidateToken decodes a token without touching the store
func (s *Service) ValidateToken(ctx context.Context, raw string) (*TokenInfo, error) {
	claims, err := s.tokens.Validate(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return nil, services.ErrTokenExpired
		}
		return nil, services.ErrInvalidToken
	}

	perms := claims.Permissions
	if perms == nil {
		perms = []string{}
	}
	return &TokenInfo{
		UserID:      claims.UserID,
		Roles:       claims.Roles,
		Permissions: perms,
		ExpiresAt:   claims.ExpiresAtTime(),
	}, nil
}

// GetUser retrieves a user by ID; disabled users are returned too
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, services.FromStoreError(err, services.ErrUserNotFound.Message, "")
	}
	return user, nil
}

// DisableUser disables a user. Missing users count as already disabled.
func (s *Service) DisableUser(ctx context.Context, id int64) error {
	if err := s.users.Disable(ctx, id); err != nil {
		if repositories.IsNotFound(err) {
			return nil
		}
		return services.FromStoreError(err, "", "")
	}

	s.logger.Info("user disabled", zap.Int64("user_id", id))
	s.auditor.Record(ctx, models.NewAuditLog(models.AuditActionUserDisabled, "user").WithResource(id))
	return nil
}
