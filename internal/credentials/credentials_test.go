package credentials

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/authd/models"
	"github.com/upb/authd/repositories"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

// testParams keeps hashing cheap in tests.
var testParams = Params{Memory: 64, Iterations: 1, Parallelism: 1}

// MockCredentialStore is a mock implementation of CredentialStore
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) GetCredentials(ctx context.Context, username string) (*models.UserCredentials, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCredentials), args.Error(1)
}

func (m *MockCredentialStore) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(testParams)

	encoded, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=64,t=1,p=1$"))

	ok, err := h.Verify("correct horse", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong horse", encoded)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, encoded, again, "salt must differ per hash")

	_, err = h.Hash("")
	assert.Error(t, err)
}

func TestHasher_VerifyLegacyArgon2i(t *testing.T) {
	h := NewHasher(testParams)

	salt := []byte("0123456789abcdef")
	key := argon2.Key([]byte("secret"), salt, 1, 64, 1, 32)
	legacy := fmt.Sprintf("$argon2i$v=19$m=64,t=1,p=1$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))

	ok, err := h.Verify("secret", legacy)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, h.NeedsRehash(legacy))
}

func TestHasher_Malformed(t *testing.T) {
	h := NewHasher(testParams)

	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"bcrypt", "$2a$10$abcdefghijklmnopqrstuv"},
		{"wrong version", "$argon2id$v=16$m=64,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5"},
		{"zero memory", "$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5"},
		{"unknown param", "$argon2id$v=19$m=64,t=1,x=1$c2FsdHNhbHQ$a2V5a2V5"},
		{"bad salt", "$argon2id$v=19$m=64,t=1,p=1$!!!$a2V5a2V5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify("x", tt.encoded)
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrMalformedHash)
			assert.True(t, h.NeedsRehash(tt.encoded))
		})
	}
}

func TestHasher_NeedsRehash(t *testing.T) {
	weak := NewHasher(testParams)
	strong := NewHasher(Params{Memory: 128, Iterations: 2, Parallelism: 1})

	encoded, err := weak.Hash("pw")
	require.NoError(t, err)

	assert.False(t, weak.NeedsRehash(encoded))
	assert.True(t, strong.NeedsRehash(encoded))
}

func TestVerifier_Verify(t *testing.T) {
	ctx := context.Background()
	h := NewHasher(testParams)
	stored, err := h.Hash("s3cret-pass")
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		store := new(MockCredentialStore)
		store.On("GetCredentials", ctx, "alice").
			Return(&models.UserCredentials{UserID: 7, PasswordHash: stored, Enabled: true}, nil)

		v := NewVerifier(store, h, zap.NewNop())
		id, err := v.Verify(ctx, "alice", "s3cret-pass")

		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
		store.AssertExpectations(t)
		store.AssertNotCalled(t, "UpdatePasswordHash", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("wrong password and unknown user fail the same way", func(t *testing.T) {
		store := new(MockCredentialStore)
		store.On("GetCredentials", ctx, "alice").
			Return(&models.UserCredentials{UserID: 7, PasswordHash: stored, Enabled: true}, nil)
		store.On("GetCredentials", ctx, "mallory").
			Return(nil, repositories.NotFound("users.credentials"))

		v := NewVerifier(store, h, zap.NewNop())

		_, wrongPassword := v.Verify(ctx, "alice", "guess")
		_, unknownUser := v.Verify(ctx, "mallory", "guess")

		assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
		assert.ErrorIs(t, unknownUser, ErrInvalidCredentials)
		assert.True(t, repositories.IsNotFound(unknownUser))
	})

	t.Run("disabled user is rejected", func(t *testing.T) {
		store := new(MockCredentialStore)
		store.On("GetCredentials", ctx, "alice").
			Return(&models.UserCredentials{UserID: 7, PasswordHash: stored, Enabled: false}, nil)

		v := NewVerifier(store, h, zap.NewNop())
		_, err := v.Verify(ctx, "alice", "s3cret-pass")

		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("store outage is not a credential failure", func(t *testing.T) {
		store := new(MockCredentialStore)
		outage := repositories.NewStoreError(repositories.ErrTemporary, "users.credentials", assert.AnError)
		store.On("GetCredentials", ctx, "alice").Return(nil, outage)

		v := NewVerifier(store, h, zap.NewNop())
		_, err := v.Verify(ctx, "alice", "s3cret-pass")

		assert.NotErrorIs(t, err, ErrInvalidCredentials)
		assert.True(t, repositories.IsTemporary(err))
	})

	t.Run("outdated hash is upgraded", func(t *testing.T) {
		strong := NewHasher(Params{Memory: 128, Iterations: 2, Parallelism: 1})
		store := new(MockCredentialStore)
		store.On("GetCredentials", ctx, "alice").
			Return(&models.UserCredentials{UserID: 7, PasswordHash: stored, Enabled: true}, nil)
		store.On("UpdatePasswordHash", ctx, int64(7), mock.MatchedBy(func(h string) bool {
			return strings.HasPrefix(h, "$argon2id$v=19$m=128,t=2,p=1$")
		})).Return(nil)

		v := NewVerifier(store, strong, zap.NewNop())
		id, err := v.Verify(ctx, "alice", "s3cret-pass")

		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
		store.AssertExpectations(t)
	})
}

func TestPolicy_Validate(t *testing.T) {
	p := Policy{MinLength: 8}

	assert.Empty(t, p.Validate("long-enough"))
	assert.Equal(t, []string{"too_short"}, p.Validate("short"))
	assert.Equal(t, []string{"too_long"}, p.Validate(strings.Repeat("a", 300)))
}
