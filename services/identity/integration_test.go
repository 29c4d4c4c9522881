package identity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/authd/config"
	"github.com/upb/authd/internal/credentials"
	"github.com/upb/authd/models"
	"github.com/upb/authd/repositories/sqlstore"
	"github.com/upb/authd/services"
	"github.com/upb/authd/services/audit"
	"github.com/upb/authd/token"
	"go.uber.org/zap/zaptest"
)

// newSQLiteService wires the identity service to a real SQLite store
func newSQLiteService(t *testing.T) (*Service, *sqlstore.RepositoryFactory) {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	factory, err := sqlstore.NewRepositoryFactory(ctx, &config.Config{
		Database: config.DatabaseConfig{
			Driver:      config.DriverSQLite,
			SQLitePath:  filepath.Join(t.TempDir(), "authd.db"),
			AutoMigrate: true,
		},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { factory.Close() })

	repos := factory.NewRepositories()
	hasher := credentials.NewHasher(credentials.Params{Memory: 64, Iterations: 1, Parallelism: 1})
	tokens, err := token.NewService(token.Config{
		SigningKey: "0123456789abcdef0123456789abcdef",
		Issuer:     "authd",
		TTL:        15 * time.Minute,
	}, nil)
	require.NoError(t, err)

	svc := NewService(repos.Users, repos.Roles,
		credentials.NewVerifier(repos.Users, hasher, logger),
		hasher, tokens, credentials.Policy{MinLength: 8}, audit.Nop{}, logger)
	return svc, factory
}

func TestSQLite_SignInRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, factory := newSQLiteService(t)
	repos := factory.NewRepositories()

	user, err := svc.CreateUser(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	staff, err := repos.Groups.Create(ctx, models.RoleAuthStaff)
	require.NoError(t, err)
	_, err = repos.GroupMembers.Bind(ctx, staff.ID, user.ID)
	require.NoError(t, err)

	res, err := svc.SignIn(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.UserID)
	assert.Equal(t, []string{models.RoleAuthStaff}, res.Roles)

	info, err := svc.ValidateToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, info.UserID)
	assert.Equal(t, []string{models.RoleAuthStaff}, info.Roles)
}

func TestSQLite_SignInFailuresShareShape(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSQLiteService(t)

	_, err := svc.CreateUser(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	_, wrongPassword := svc.SignIn(ctx, "alice", "wrong-horse")
	_, unknownUser := svc.SignIn(ctx, "nobody", "wrong-horse")

	assert.True(t, services.IsForbiddenError(wrongPassword))
	assert.Equal(t, wrongPassword, unknownUser)
}

func TestSQLite_DisabledUserCannotSignIn(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSQLiteService(t)

	user, err := svc.CreateUser(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, svc.DisableUser(ctx, user.ID))
	require.NoError(t, svc.DisableUser(ctx, user.ID))
	require.NoError(t, svc.DisableUser(ctx, 9999))

	_, err = svc.SignIn(ctx, "alice", "correct-horse")
	assert.True(t, services.IsForbiddenError(err))

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
}

func TestSQLite_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSQLiteService(t)

	_, err := svc.CreateUser(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, "alice", "another-horse")
	assert.True(t, services.IsConflictError(err))
}
