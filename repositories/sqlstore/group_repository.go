package sqlstore

import (
	"context"
	"time"

	"github.com/upb/authd/models"
	"github.com/upb/authd/repositories"
	"go.uber.org/zap"
)

// namedRow is the shared shape of the groups and permissions tables.
type namedRow struct {
	ID        int64
	Name      string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// namedTable implements create/get/list/disable for a table of named,
// soft-deletable rows.
type namedTable struct {
	db    *DB
	table string
}

func (t namedTable) create(ctx context.Context, name string) (*namedRow, error) {
	query := `
		INSERT INTO ` + t.table + ` (name, enabled, created_at, updated_at)
		VALUES ($1, TRUE, $2, $2)
		RETURNING id
	`

	now := t.db.now()
	row := &namedRow{Name: name, Enabled: true, CreatedAt: now, UpdatedAt: now}

	executor := GetExecutor(ctx, t.db)
	if err := executor.QueryRowContext(ctx, query, name, now).Scan(&row.ID); err != nil {
		return nil, t.db.wrapErr(t.table+".create", err)
	}
	return row, nil
}

func (t namedTable) get(ctx context.Context, column string, arg interface{}) (*namedRow, error) {
	query := `
		SELECT id, name, enabled, created_at, updated_at
		FROM ` + t.table + `
		WHERE ` + column + ` = $1
	`

	row := &namedRow{}
	executor := GetExecutor(ctx, t.db)
	err := executor.QueryRowContext(ctx, query, arg).Scan(
		&row.ID,
		&row.Name,
		&row.Enabled,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		return nil, t.db.wrapErr(t.table+".get", err)
	}
	return row, nil
}

func (t namedTable) list(ctx context.Context, limit, offset int) ([]*namedRow, error) {
	query := `
		SELECT id, name, enabled, created_at, updated_at
		FROM ` + t.table + `
		ORDER BY id
		LIMIT $1 OFFSET $2
	`

	executor := GetExecutor(ctx, t.db)
	rows, err := executor.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, t.db.wrapErr(t.table+".list", err)
	}
	defer rows.Close()

	out := []*namedRow{}
	for rows.Next() {
		row := &namedRow{}
		if err := rows.Scan(&row.ID, &row.Name, &row.Enabled, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, t.db.wrapErr(t.table+".list", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, t.db.wrapErr(t.table+".list", err)
	}
	return out, nil
}

func (t namedTable) disable(ctx context.Context, id int64) error {
	return disableRow(ctx, t.db, t.table, id)
}

// GroupRepository implements the repositories.GroupRepository interface
type GroupRepository struct {
	rows   namedTable
	logger *zap.Logger
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *DB, logger *zap.Logger) repositories.GroupRepository {
	return &GroupRepository{
		rows:   namedTable{db: db, table: "groups"},
		logger: logger,
	}
}

// Create creates a new group
func (r *GroupRepository) Create(ctx context.Context, name string) (*models.Group, error) {
	row, err := r.rows.create(ctx, name)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("group created", zap.Int64("id", row.ID), zap.String("name", name))
	return toGroup(row), nil
}

// GetByID retrieves a group by ID
func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	row, err := r.rows.get(ctx, "id", id)
	if err != nil {
		return nil, err
	}
	return toGroup(row), nil
}

// GetByName retrieves a group by name
func (r *GroupRepository) GetByName(ctx context.Context, name string) (*models.Group, error) {
	row, err := r.rows.get(ctx, "name", name)
	if err != nil {
		return nil, err
	}
	return toGroup(row), nil
}

// List retrieves groups ordered by ID
func (r *GroupRepository) List(ctx context.Context, limit, offset int) ([]*models.Group, error) {
	rows, err := r.rows.list(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	groups := make([]*models.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, toGroup(row))
	}
	return groups, nil
}

// Disable marks a group as disabled. Its bindings are left as they are.
func (r *GroupRepository) Disable(ctx context.Context, id int64) error {
	if err := r.rows.disable(ctx, id); err != nil {
		return err
	}
	r.logger.Debug("group disabled", zap.Int64("id", id))
	return nil
}

func toGroup(row *namedRow) *models.Group {
	return &models.Group{
		ID:        row.ID,
		Name:      row.Name,
		Enabled:   row.Enabled,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
