package identity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/authd/internal/credentials"
	"github.com/upb/authd/models"
	"github.com/upb/authd/repositories"
	"github.com/upb/authd/services"
	"github.com/upb/authd/token"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, username, passwordHash string) (*models.User, error) {
	args := m.Called(ctx, username, passwordHash)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetCredentials(ctx context.Context, username string) (*models.UserCredentials, error) {
	args := m.Called(ctx, username)
	if creds := args.Get(0); creds != nil {
		return creds.(*models.UserCredentials), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUserRepository) Disable(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockRoleRepository is a mock implementation of RoleRepository
type MockRoleRepository struct {
	mock.Mock
}

func (m *MockRoleRepository) ActiveGrant(ctx context.Context, userID int64) (*models.AccessGrant, error) {
	args := m.Called(ctx, userID)
	if grant := args.Get(0); grant != nil {
		return grant.(*models.AccessGrant), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockVerifier is a mock implementation of CredentialVerifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, username, password string) (int64, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(int64), args.Error(1)
}

// MockHasher is a mock implementation of PasswordHasher
type MockHasher struct {
	mock.Mock
}

func (m *MockHasher) Hash(plain string) (string, error) {
	args := m.Called(plain)
	return args.String(0), args.Error(1)
}

// MockRecorder is a mock implementation of audit.Recorder
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, log *models.AuditLog) {
	m.Called(ctx, log)
}

func auditAction(action models.AuditAction) interface{} {
	return mock.MatchedBy(func(l *models.AuditLog) bool { return l.Action == action })
}

type fixture struct {
	users    *MockUserRepository
	roles    *MockRoleRepository
	verifier *MockVerifier
	hasher   *MockHasher
	auditor  *MockRecorder
	tokens   *token.Service
	clock    *clockwork.FakeClock
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	tokens, err := token.NewService(token.Config{
		SigningKey: "0123456789abcdef0123456789abcdef",
		Issuer:     "authd",
		TTL:        15 * time.Minute,
	}, clock)
	require.NoError(t, err)

	f := &fixture{
		users:    new(MockUserRepository),
		roles:    new(MockRoleRepository),
		verifier: new(MockVerifier),
		hasher:   new(MockHasher),
		auditor:  new(MockRecorder),
		tokens:   tokens,
		clock:    clock,
	}
	f.service = NewService(f.users, f.roles, f.verifier, f.hasher, f.tokens,
		credentials.Policy{MinLength: 8}, f.auditor, zap.NewNop())
	return f
}

func TestService_CreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		created := models.NewUser("alice", "$argon2id$hash", testNow)
		created.ID = 5

		f.hasher.On("Hash", "long-password").Return("$argon2id$hash", nil)
		f.users.On("Create", ctx, "alice", "$argon2id$hash").Return(created, nil)
		f.auditor.On("Record", ctx, auditAction(models.AuditActionUserCreated)).Return()

		user, err := f.service.CreateUser(ctx, "  alice ", "long-password")

		require.NoError(t, err)
		assert.Equal(t, int64(5), user.ID)
		f.users.AssertExpectations(t)
		f.auditor.AssertExpectations(t)
	})

	t.Run("weak password", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.CreateUser(ctx, "alice", "short")

		assert.True(t, services.IsValidationError(err))
		assert.Equal(t, []string{"too_short"}, services.GetErrorDetails(err)["reasons"])
		f.hasher.AssertNotCalled(t, "Hash", mock.Anything)
	})

	t.Run("blank username", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.CreateUser(ctx, "   ", "long-password")

		assert.True(t, services.IsValidationError(err))
	})

	t.Run("duplicate username", func(t *testing.T) {
		f := newFixture(t)
		f.hasher.On("Hash", "long-password").Return("$argon2id$hash", nil)
		f.users.On("Create", ctx, "alice", "$argon2id$hash").
			Return(nil, repositories.NewStoreError(repositories.ErrConflict, "users.create", assert.AnError))

		_, err := f.service.CreateUser(ctx, "alice", "long-password")

		assert.True(t, services.IsConflictError(err))
		assert.Contains(t, err.Error(), "username already exists")
		f.auditor.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	})
}

func TestService_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("success issues token with live roles", func(t *testing.T) {
		f := newFixture(t)
		f.verifier.On("Verify", ctx, "alice", "pw").Return(int64(7), nil)
		f.roles.On("ActiveGrant", ctx, int64(7)).Return(&models.AccessGrant{
			Roles:       []string{models.RoleAuthManager},
			Permissions: []string{"groups:write"},
		}, nil)
		f.auditor.On("Record", ctx, auditAction(models.AuditActionSignIn)).Return()

		res, err := f.service.SignIn(ctx, "alice", "pw")

		require.NoError(t, err)
		assert.Equal(t, int64(7), res.UserID)
		assert.Equal(t, []string{models.RoleAuthManager}, res.Roles)
		assert.Equal(t, testNow.Add(15*time.Minute), res.ExpiresAt)

		claims, err := f.tokens.Validate(res.Token)
		require.NoError(t, err)
		assert.Equal(t, int64(7), claims.UserID)
		assert.Equal(t, []string{"groups:write"}, claims.Permissions)
		f.auditor.AssertExpectations(t)
	})

	t.Run("no roles yields empty list", func(t *testing.T) {
		f := newFixture(t)
		f.verifier.On("Verify", ctx, "bob", "pw").Return(int64(8), nil)
		f.roles.On("ActiveGrant", ctx, int64(8)).Return(&models.AccessGrant{}, nil)
		f.auditor.On("Record", ctx, mock.Anything).Return()

		res, err := f.service.SignIn(ctx, "bob", "pw")

		require.NoError(t, err)
		assert.NotNil(t, res.Roles)
		assert.Empty(t, res.Roles)
	})

	t.Run("wrong password and unknown user look the same", func(t *testing.T) {
		f := newFixture(t)
		f.verifier.On("Verify", ctx, "alice", "bad").Return(int64(0), credentials.ErrInvalidCredentials)
		f.verifier.On("Verify", ctx, "ghost", "bad").
			Return(int64(0), fmt.Errorf("%w: %w", credentials.ErrInvalidCredentials, repositories.NotFound("users.credentials")))
		f.auditor.On("Record", ctx, auditAction(models.AuditActionSignInFailed)).Return()

		_, wrongPassword := f.service.SignIn(ctx, "alice", "bad")
		_, unknownUser := f.service.SignIn(ctx, "ghost", "bad")

		assert.True(t, services.IsForbiddenError(wrongPassword))
		assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
		f.roles.AssertNotCalled(t, "ActiveGrant", mock.Anything, mock.Anything)
	})

	t.Run("store outage is retryable", func(t *testing.T) {
		f := newFixture(t)
		f.verifier.On("Verify", ctx, "alice", "pw").
			Return(int64(0), repositories.NewStoreError(repositories.ErrTemporary, "users.credentials", assert.AnError))

		_, err := f.service.SignIn(ctx, "alice", "pw")

		assert.True(t, services.IsUnavailableError(err))
	})

	t.Run("grant lookup failure", func(t *testing.T) {
		f := newFixture(t)
		f.verifier.On("Verify", ctx, "alice", "pw").Return(int64(7), nil)
		f.roles.On("ActiveGrant", ctx, int64(7)).
			Return(nil, repositories.NewStoreError(repositories.ErrFatal, "roles.active", assert.AnError))

		_, err := f.service.SignIn(ctx, "alice", "pw")

		assert.True(t, services.IsInternalError(err))
	})
}

func TestService_ValidateToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	raw, exp, err := f.tokens.Issue(7, []string{models.RoleAuthStaff}, nil)
	require.NoError(t, err)

	info, err := f.service.ValidateToken(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.UserID)
	assert.Equal(t, []string{models.RoleAuthStaff}, info.Roles)
	assert.Equal(t, []string{}, info.Permissions)
	assert.True(t, info.ExpiresAt.Equal(exp))

	_, err = f.service.ValidateToken(ctx, "garbage")
	assert.ErrorIs(t, err, services.ErrInvalidToken)
	assert.True(t, services.IsUnauthorizedError(err))

	f.clock.Advance(16 * time.Minute)
	_, err = f.service.ValidateToken(ctx, raw)
	assert.True(t, services.IsUnauthorizedError(err))
	assert.Contains(t, err.Error(), "expired")
}

func TestService_GetUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	disabled := models.NewUser("carol", "hash", testNow)
	disabled.ID = 3
	disabled.Enabled = false
	f.users.On("GetByID", ctx, int64(3)).Return(disabled, nil)
	f.users.On("GetByID", ctx, int64(404)).Return(nil, repositories.NotFound("users.get"))

	user, err := f.service.GetUser(ctx, 3)
	require.NoError(t, err)
	assert.False(t, user.Enabled)

	_, err = f.service.GetUser(ctx, 404)
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestService_DisableUser(t *testing.T) {
	ctx := context.Background()

	t.Run("disables and audits", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("Disable", ctx, int64(3)).Return(nil)
		f.auditor.On("Record", ctx, auditAction(models.AuditActionUserDisabled)).Return()

		require.NoError(t, f.service.DisableUser(ctx, 3))
		f.auditor.AssertExpectations(t)
	})

	t.Run("missing user is success", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("Disable", ctx, int64(404)).Return(repositories.NotFound("users.disable"))

		assert.NoError(t, f.service.DisableUser(ctx, 404))
		f.auditor.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	})

	t.Run("store outage surfaces", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("Disable", ctx, int64(3)).
			Return(repositories.NewStoreError(repositories.ErrTemporary, "users.disable", assert.AnError))

		assert.True(t, services.IsUnavailableError(f.service.DisableUser(ctx, 3)))
	})
}
