package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/authd/app"
	"github.com/upb/authd/config"
	"github.com/upb/authd/internal/credentials"
	"go.uber.org/zap"
)

// sqliteEnv points configuration at a throwaway SQLite file.
func sqliteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DB_DRIVER", config.DriverSQLite)
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "authd.db"))
	t.Setenv("DB_AUTO_MIGRATE", "false")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("ARGON2_MEMORY_KIB", "64")
	t.Setenv("ARGON2_ITERATIONS", "1")
	t.Setenv("ARGON2_PARALLELISM", "1")
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHashPassword(t *testing.T) {
	hasher := credentials.NewHasher(credentials.Params{Memory: 64, Iterations: 1, Parallelism: 1})
	cheap := []string{"hash-password", "--memory", "64", "--iterations", "1", "--parallelism", "1"}

	t.Run("from flag", func(t *testing.T) {
		out, err := run(t, "", append(cheap, "--password", "s3cret-pass")...)
		require.NoError(t, err)

		ok, err := hasher.Verify("s3cret-pass", strings.TrimSpace(out))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, strings.HasPrefix(out, "$argon2id$v=19$m=64,t=1,p=1$"))
	})

	t.Run("from stdin", func(t *testing.T) {
		out, err := run(t, "from-stdin\n", cheap...)
		require.NoError(t, err)

		ok, err := hasher.Verify("from-stdin", strings.TrimSpace(out))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("empty stdin", func(t *testing.T) {
		_, err := run(t, "", cheap...)
		assert.Error(t, err)
	})
}

func TestMigrateAndSeed(t *testing.T) {
	sqliteEnv(t)

	_, err := run(t, "", "migrate", "up")
	require.NoError(t, err)

	_, err = run(t, "", "migrate", "status")
	require.NoError(t, err)

	seedFile := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seedFile, []byte(`
permissions: [users:read]
groups:
  - name: ROLE_AUTH_ADMIN
    permissions: [users:read]
users:
  - username: admin
    password: admin-password
    groups: [ROLE_AUTH_ADMIN]
`), 0o600))

	out, err := run(t, "", "seed", "-f", seedFile)
	require.NoError(t, err)
	assert.Contains(t, out, "created 1 permissions, 1 groups, 1 users; 2 bindings ensured")

	out, err = run(t, "", "seed", "-f", seedFile)
	require.NoError(t, err)
	assert.Contains(t, out, "created 0 permissions, 0 groups, 0 users; 2 bindings ensured")
}

func TestMigrate_RejectsUnknownCommand(t *testing.T) {
	sqliteEnv(t)

	_, err := run(t, "", "migrate", "sideways")
	assert.Error(t, err)
}

func TestSeed_RequiresFile(t *testing.T) {
	sqliteEnv(t)

	_, err := run(t, "", "seed")
	assert.Error(t, err)

	_, err = run(t, "", "seed", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestServe_StopsOnCancel(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("DB_AUTO_MIGRATE", "true")
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_PORT", "0")
	t.Setenv("METRICS_PORT", "0")
	t.Setenv("SERVER_SHUTDOWN_TIMEOUT", "2s")

	cfg, err := config.New(context.Background())
	require.NoError(t, err)

	deps, err := app.NewDependencies(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, deps, zap.NewNop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}
