package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/authd/models"
	"github.com/upb/authd/repositories"
	"go.uber.org/zap"
)

// ErrInvalidCredentials covers every way a username/password pair can fail:
// unknown user, disabled user, wrong password or unreadable stored hash.
// Unknown users additionally match repositories.ErrNotFound.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialStore is the lookup capability the Verifier needs.
type CredentialStore interface {
	GetCredentials(ctx context.Context, username string) (*models.UserCredentials, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

// Verifier checks username/password pairs against stored hashes.
type Verifier struct {
	store     CredentialStore
	hasher    *Hasher
	dummyHash string
	logger    *zap.Logger
}

// NewVerifier creates a Verifier. A throwaway hash is computed up front so
// lookups for unknown users cost the same as real comparisons.
func NewVerifier(store CredentialStore, hasher *Hasher, logger *zap.Logger) *Verifier {
	dummy, err := hasher.Hash("authd-timing-equalizer")
	if err != nil {
		logger.Warn("failed to precompute dummy hash", zap.Error(err))
	}
	return &Verifier{
		store:     store,
		hasher:    hasher,
		dummyHash: dummy,
		logger:    logger,
	}
}

// Verify returns the user ID for a matching, enabled account. Store
// failures other than not-found are returned as is so callers can tell an
// outage from a bad password.
func (v *Verifier) Verify(ctx context.Context, username, password string) (int64, error) {
	creds, err := v.store.GetCredentials(ctx, username)
	if err != nil {
		if repositories.IsNotFound(err) {
			if v.dummyHash != "" {
				_, _ = v.hasher.Verify(password, v.dummyHash)
			}
			return 0, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return 0, err
	}

	ok, err := v.hasher.Verify(password, creds.PasswordHash)
	if err != nil {
		v.logger.Warn("stored password hash is unreadable",
			zap.Int64("user_id", creds.UserID),
			zap.Error(err))
		return 0, ErrInvalidCredentials
	}
	if !ok || !creds.Enabled {
		return 0, ErrInvalidCredentials
	}

	if v.hasher.NeedsRehash(creds.PasswordHash) {
		v.upgrade(ctx, creds.UserID, password)
	}
	return creds.UserID, nil
}

// upgrade stores a hash with the current parameters. Failure only costs
// another rehash attempt on the next sign-in.
func (v *Verifier) upgrade(ctx context.Context, userID int64, password string) {
	encoded, err := v.hasher.Hash(password)
	if err != nil {
		v.logger.Warn("password rehash failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	if err := v.store.UpdatePasswordHash(ctx, userID, encoded); err != nil {
		v.logger.Warn("failed to store upgraded password hash", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	v.logger.Info("password hash upgraded", zap.Int64("user_id", userID))
}
