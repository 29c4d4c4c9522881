package repositories

import (
	"context"

	"github.com/upb/authd/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// Automatically commits if function succeeds, rolls back on error.
	// When ctx already carries a transaction, fn joins it instead.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository handles user data operations
type UserRepository interface {
	// Create inserts an enabled user and fills in its ID and timestamps.
	Create(ctx context.Context, username, passwordHash string) (*models.User, error)

	// GetByID retrieves a user by ID, disabled or not
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByUsername retrieves a user by username, disabled or not
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// GetCredentials returns the stored hash and enabled flag for username
	GetCredentials(ctx context.Context, username string) (*models.UserCredentials, error)

	// UpdatePasswordHash replaces the stored hash
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error

	// Disable marks a user as disabled
	Disable(ctx context.Context, id int64) error
}

// GroupRepository handles group data operations
type GroupRepository interface {
	Create(ctx context.Context, name string) (*models.Group, error)
	GetByID(ctx context.Context, id int64) (*models.Group, error)
	GetByName(ctx context.Context, name string) (*models.Group, error)
	List(ctx context.Context, limit, offset int) ([]*models.Group, error)
	Disable(ctx context.Context, id int64) error
}

// PermissionRepository handles permission data operations
type PermissionRepository interface {
	Create(ctx context.Context, name string) (*models.Permission, error)
	GetByID(ctx context.Context, id int64) (*models.Permission, error)
	GetByName(ctx context.Context, name string) (*models.Permission, error)
	List(ctx context.Context, limit, offset int) ([]*models.Permission, error)
	Disable(ctx context.Context, id int64) error
}

// GroupPermissionRepository manages group to permission bindings
type GroupPermissionRepository interface {
	// Bind upserts the pair: creates it, re-enables it, or leaves an enabled
	// row untouched. Returns the row as stored.
	Bind(ctx context.Context, groupID, permissionID int64) (*models.GroupPermissionBinding, error)

	// Unbind disables the pair. Returns ErrNotFound if the pair never existed.
	Unbind(ctx context.Context, groupID, permissionID int64) (*models.GroupPermissionBinding, error)

	// ListByGroup returns all bindings of a group, enabled or not
	ListByGroup(ctx context.Context, groupID int64) ([]*models.GroupPermissionBinding, error)
}

// GroupMemberRepository manages group to user bindings
type GroupMemberRepository interface {
	Bind(ctx context.Context, groupID, userID int64) (*models.GroupMemberBinding, error)
	Unbind(ctx context.Context, groupID, userID int64) (*models.GroupMemberBinding, error)
	ListByGroup(ctx context.Context, groupID int64) ([]*models.GroupMemberBinding, error)
}

// RoleRepository resolves live access grants
type RoleRepository interface {
	// ActiveGrant returns the names of enabled groups the user is an enabled
	// member of, and the enabled permissions those groups grant through
	// enabled bindings.
	ActiveGrant(ctx context.Context, userID int64) (*models.AccessGrant, error)
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// List retrieves audit logs newest first
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users            UserRepository
	Groups           GroupRepository
	Permissions      PermissionRepository
	GroupPermissions GroupPermissionRepository
	GroupMembers     GroupMemberRepository
	Roles            RoleRepository
	AuditLogs        AuditRepository
}
