package sqlstore

import (
	"context"

	"github.com/upb/authd/models"
	"github.com/upb/authd/repositories"
	"go.uber.org/zap"
)

const userColumns = `id, username, password_hash, enabled, created_at, updated_at`

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, username, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_hash, enabled, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, $3)
		RETURNING id
	`

	user := models.NewUser(username, passwordHash, r.db.now())

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query, user.Username, user.PasswordHash, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		return nil, r.db.wrapErr("users.create", err)
	}

	r.logger.Debug("user created", zap.Int64("id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := r.scanOne(ctx, query, id)
	if err != nil {
		return nil, r.db.wrapErr("users.get", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := r.scanOne(ctx, query, username)
	if err != nil {
		return nil, r.db.wrapErr("users.get_by_username", err)
	}
	return user, nil
}

// GetCredentials returns what the credential verifier needs for username
func (r *UserRepository) GetCredentials(ctx context.Context, username string) (*models.UserCredentials, error) {
	query := `SELECT id, password_hash, enabled FROM users WHERE username = $1`

	creds := &models.UserCredentials{}
	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query, username).Scan(
		&creds.UserID,
		&creds.PasswordHash,
		&creds.Enabled,
	)
	if err != nil {
		return nil, r.db.wrapErr("users.credentials", err)
	}
	return creds, nil
}

// UpdatePasswordHash replaces the stored password hash
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, passwordHash, r.db.now(), id)
	if err != nil {
		return r.db.wrapErr("users.update_password", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return r.db.wrapErr("users.update_password", err)
	}
	if rowsAffected == 0 {
		return repositories.NotFound("users.update_password")
	}

	r.logger.Debug("user password hash updated", zap.Int64("id", id))
	return nil
}

// Disable marks a user as disabled. updated_at only moves on the
// enabled to disabled transition.
func (r *UserRepository) Disable(ctx context.Context, id int64) error {
	if err := disableRow(ctx, r.db, "users", id); err != nil {
		return err
	}
	r.logger.Debug("user disabled", zap.Int64("id", id))
	return nil
}

func (r *UserRepository) scanOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	user := &models.User{}
	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Enabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// disableRow flips enabled off for one row of an entity table. A missing
// row is ErrNotFound; an already disabled row is left untouched.
func disableRow(ctx context.Context, db *DB, table string, id int64) error {
	op := table + ".disable"
	query := `
		UPDATE ` + table + `
		SET enabled = FALSE,
		    updated_at = CASE WHEN enabled THEN $1 ELSE updated_at END
		WHERE id = $2
	`

	executor := GetExecutor(ctx, db)
	result, err := executor.ExecContext(ctx, query, db.now(), id)
	if err != nil {
		return db.wrapErr(op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return db.wrapErr(op, err)
	}
	if rowsAffected == 0 {
		return repositories.NotFound(op)
	}
	return nil
}
