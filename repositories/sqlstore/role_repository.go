package sqlstore

import (
	"context"

	"github.com/upb/authd/models"
	"github.com/upb/authd/repositories"
	"go.uber.org/zap"
)

// RoleRepository implements the repositories.RoleRepository interface
type RoleRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role resolver
func NewRoleRepository(db *DB, logger *zap.Logger) repositories.RoleRepository {
	return &RoleRepository{
		db:     db,
		logger: logger,
	}
}

// ActiveGrant resolves the user's live roles and permissions. Both queries
// run in one transaction so they see the same membership snapshot.
func (r *RoleRepository) ActiveGrant(ctx context.Context, userID int64) (*models.AccessGrant, error) {
	rolesQuery := `
		SELECT g.name
		FROM group_members gm
		JOIN groups g ON g.id = gm.group_id
		WHERE gm.user_id = $1 AND gm.enabled AND g.enabled
		ORDER BY g.name
	`
	permsQuery := `
		SELECT DISTINCT p.name
		FROM group_members gm
		JOIN groups g ON g.id = gm.group_id
		JOIN group_permissions gp ON gp.group_id = g.id
		JOIN permissions p ON p.id = gp.permission_id
		WHERE gm.user_id = $1 AND gm.enabled AND g.enabled AND gp.enabled AND p.enabled
		ORDER BY p.name
	`

	grant := &models.AccessGrant{Roles: []string{}, Permissions: []string{}}
	err := r.db.inTx(ctx, func(ctx context.Context, exec Executor) error {
		var err error
		if grant.Roles, err = queryNames(ctx, exec, rolesQuery, userID); err != nil {
			return err
		}
		grant.Permissions, err = queryNames(ctx, exec, permsQuery, userID)
		return err
	})
	if err != nil {
		return nil, r.db.wrapErr("roles.active_grant", err)
	}

	r.logger.Debug("access grant resolved",
		zap.Int64("user_id", userID),
		zap.Strings("roles", grant.Roles),
		zap.Int("permissions", len(grant.Permissions)))
	return grant, nil
}

func queryNames(ctx context.Context, exec Executor, query string, arg interface{}) ([]string, error) {
	rows, err := exec.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
