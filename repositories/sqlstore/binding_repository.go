package sqlstore

import (
	"context"
	"time"

	"github.com/upb/authd/models"
	"github.com/upb/authd/repositories"
	"go.uber.org/zap"
)

// bindingRow is the shared shape of the two binding tables.
type bindingRow struct {
	GroupID   int64
	OtherID   int64
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// bindingTable implements bind/unbind over a (group_id, column) keyed table.
type bindingTable struct {
	db     *DB
	table  string
	column string
}

// bind upserts the pair in one statement and reads the row back in the same
// transaction. A disabled row is re-enabled with a fresh updated_at; an
// enabled row keeps its timestamps.
func (t bindingTable) bind(ctx context.Context, groupID, otherID int64) (*bindingRow, error) {
	op := t.table + ".bind"
	upsert := `
		INSERT INTO ` + t.table + ` (group_id, ` + t.column + `, enabled, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, $3)
		ON CONFLICT (group_id, ` + t.column + `) DO UPDATE
		SET enabled = TRUE,
		    updated_at = CASE WHEN ` + t.table + `.enabled THEN ` + t.table + `.updated_at ELSE excluded.updated_at END
	`

	var row *bindingRow
	err := t.db.inTx(ctx, func(ctx context.Context, exec Executor) error {
		if _, err := exec.ExecContext(ctx, upsert, groupID, otherID, t.db.now()); err != nil {
			return err
		}
		var err error
		row, err = t.get(ctx, exec, groupID, otherID)
		return err
	})
	if err != nil {
		return nil, t.db.wrapErr(op, err)
	}
	return row, nil
}

// unbind disables the pair. A pair that was never bound is ErrNotFound and
// no row is created.
func (t bindingTable) unbind(ctx context.Context, groupID, otherID int64) (*bindingRow, error) {
	op := t.table + ".unbind"
	update := `
		UPDATE ` + t.table + `
		SET enabled = FALSE,
		    updated_at = CASE WHEN enabled THEN $1 ELSE updated_at END
		WHERE group_id = $2 AND ` + t.column + ` = $3
	`

	var row *bindingRow
	err := t.db.inTx(ctx, func(ctx context.Context, exec Executor) error {
		result, err := exec.ExecContext(ctx, update, t.db.now(), groupID, otherID)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return repositories.NotFound(op)
		}
		row, err = t.get(ctx, exec, groupID, otherID)
		return err
	})
	if err != nil {
		return nil, t.db.wrapErr(op, err)
	}
	return row, nil
}

func (t bindingTable) get(ctx context.Context, exec Executor, groupID, otherID int64) (*bindingRow, error) {
	query := `
		SELECT group_id, ` + t.column + `, enabled, created_at, updated_at
		FROM ` + t.table + `
		WHERE group_id = $1 AND ` + t.column + ` = $2
	`

	row := &bindingRow{}
	err := exec.QueryRowContext(ctx, query, groupID, otherID).Scan(
		&row.GroupID,
		&row.OtherID,
		&row.Enabled,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (t bindingTable) listByGroup(ctx context.Context, groupID int64) ([]*bindingRow, error) {
	op := t.table + ".list"
	query := `
		SELECT group_id, ` + t.column + `, enabled, created_at, updated_at
		FROM ` + t.table + `
		WHERE group_id = $1
		ORDER BY ` + t.column + `
	`

	executor := GetExecutor(ctx, t.db)
	rows, err := executor.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, t.db.wrapErr(op, err)
	}
	defer rows.Close()

	out := []*bindingRow{}
	for rows.Next() {
		row := &bindingRow{}
		if err := rows.Scan(&row.GroupID, &row.OtherID, &row.Enabled, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, t.db.wrapErr(op, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, t.db.wrapErr(op, err)
	}
	return out, nil
}

// GroupPermissionRepository implements the repositories.GroupPermissionRepository interface
type GroupPermissionRepository struct {
	rows   bindingTable
	logger *zap.Logger
}

// NewGroupPermissionRepository creates a new group permission binding repository
func NewGroupPermissionRepository(db *DB, logger *zap.Logger) repositories.GroupPermissionRepository {
	return &GroupPermissionRepository{
		rows:   bindingTable{db: db, table: "group_permissions", column: "permission_id"},
		logger: logger,
	}
}

// Bind grants a permission to a group
func (r *GroupPermissionRepository) Bind(ctx context.Context, groupID, permissionID int64) (*models.GroupPermissionBinding, error) {
	row, err := r.rows.bind(ctx, groupID, permissionID)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("permission bound",
		zap.Int64("group_id", groupID),
		zap.Int64("permission_id", permissionID))
	return toGroupPermission(row), nil
}

// Unbind revokes a permission from a group
func (r *GroupPermissionRepository) Unbind(ctx context.Context, groupID, permissionID int64) (*models.GroupPermissionBinding, error) {
	row, err := r.rows.unbind(ctx, groupID, permissionID)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("permission unbound",
		zap.Int64("group_id", groupID),
		zap.Int64("permission_id", permissionID))
	return toGroupPermission(row), nil
}

// ListByGroup returns every permission binding of a group
func (r *GroupPermissionRepository) ListByGroup(ctx context.Context, groupID int64) ([]*models.GroupPermissionBinding, error) {
	rows, err := r.rows.listByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.GroupPermissionBinding, 0, len(rows))
	for _, row := range rows {
		out = append(out, toGroupPermission(row))
	}
	return out, nil
}

func toGroupPermission(row *bindingRow) *models.GroupPermissionBinding {
	return &models.GroupPermissionBinding{
		GroupID:      row.GroupID,
		PermissionID: row.OtherID,
		Enabled:      row.Enabled,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

// GroupMemberRepository implements the repositories.GroupMemberRepository interface
type GroupMemberRepository struct {
	rows   bindingTable
	logger *zap.Logger
}

// NewGroupMemberRepository creates a new group member binding repository
func NewGroupMemberRepository(db *DB, logger *zap.Logger) repositories.GroupMemberRepository {
	return &GroupMemberRepository{
		rows:   bindingTable{db: db, table: "group_members", column: "user_id"},
		logger: logger,
	}
}

// Bind adds a user to a group
func (r *GroupMemberRepository) Bind(ctx context.Context, groupID, userID int64) (*models.GroupMemberBinding, error) {
	row, err := r.rows.bind(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("member bound", zap.Int64("group_id", groupID), zap.Int64("user_id", userID))
	return toGroupMember(row), nil
}

// Unbind removes a user from a group
func (r *GroupMemberRepository) Unbind(ctx context.Context, groupID, userID int64) (*models.GroupMemberBinding, error) {
	row, err := r.rows.unbind(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("member unbound", zap.Int64("group_id", groupID), zap.Int64("user_id", userID))
	return toGroupMember(row), nil
}

// ListByGroup returns every membership of a group
func (r *GroupMemberRepository) ListByGroup(ctx context.Context, groupID int64) ([]*models.GroupMemberBinding, error) {
	rows, err := r.rows.listByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.GroupMemberBinding, 0, len(rows))
	for _, row := range rows {
		out = append(out, toGroupMember(row))
	}
	return out, nil
}

func toGroupMember(row *bindingRow) *models.GroupMemberBinding {
	return &models.GroupMemberBinding{
		GroupID:   row.GroupID,
		UserID:    row.OtherID,
		Enabled:   row.Enabled,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
