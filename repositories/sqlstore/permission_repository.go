package sqlstore

import (
	"context"

	"github.com/upb/authd/models"
	"github.com/upb/authd/repositories"
	"go.uber.org/zap"
)

// PermissionRepository implements the repositories.PermissionRepository interface
type PermissionRepository struct {
	rows   namedTable
	logger *zap.Logger
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db *DB, logger *zap.Logger) repositories.PermissionRepository {
	return &PermissionRepository{
		rows:   namedTable{db: db, table: "permissions"},
		logger: logger,
	}
}

// Create creates a new permission
func (r *PermissionRepository) Create(ctx context.Context, name string) (*models.Permission, error) {
	row, err := r.rows.create(ctx, name)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("permission created", zap.Int64("id", row.ID), zap.String("name", name))
	return toPermission(row), nil
}

// GetByID retrieves a permission by ID
func (r *PermissionRepository) GetByID(ctx context.Context, id int64) (*models.Permission, error) {
	row, err := r.rows.get(ctx, "id", id)
	if err != nil {
		return nil, err
	}
	return toPermission(row), nil
}

// GetByName retrieves a permission by name
func (r *PermissionRepository) GetByName(ctx context.Context, name string) (*models.Permission, error) {
	row, err := r.rows.get(ctx, "name", name)
	if err != nil {
		return nil, err
	}
	return toPermission(row), nil
}

// List retrieves permissions ordered by ID
func (r *PermissionRepository) List(ctx context.Context, limit, offset int) ([]*models.Permission, error) {
	rows, err := r.rows.list(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	perms := make([]*models.Permission, 0, len(rows))
	for _, row := range rows {
		perms = append(perms, toPermission(row))
	}
	return perms, nil
}

// Disable marks a permission as disabled
func (r *PermissionRepository) Disable(ctx context.Context, id int64) error {
	if err := r.rows.disable(ctx, id); err != nil {
		return err
	}
	r.logger.Debug("permission disabled", zap.Int64("id", id))
	return nil
}

func toPermission(row *namedRow) *models.Permission {
	return &models.Permission{
		ID:        row.ID,
		Name:      row.Name,
		Enabled:   row.Enabled,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
