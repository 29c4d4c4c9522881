package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/upb/authd/models"
	"github.com/upb/authd/repositories"
	"go.uber.org/zap"
)

const defaultAuditLimit = 100

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, actor_id, action, resource_type, resource_id,
			details, ip_address, user_agent, request_id, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	var actorID sql.NullInt64
	if log.ActorID != nil {
		actorID = sql.NullInt64{Int64: *log.ActorID, Valid: true}
	}
	// JSON goes over the wire as text; pq would otherwise send []byte as bytea.
	var details interface{}
	if len(log.Details) > 0 {
		details = string(log.Details)
	}

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		log.ID,
		actorID,
		string(log.Action),
		log.ResourceType,
		log.ResourceID,
		details,
		log.IPAddress,
		log.UserAgent,
		log.RequestID,
		log.Timestamp.UTC().Truncate(time.Microsecond),
	)
	if err != nil {
		return r.db.wrapErr("audit_logs.insert", err)
	}

	r.logger.Debug("audit log inserted", zap.String("id", log.ID.String()), zap.String("action", string(log.Action)))
	return nil
}

// List retrieves audit logs newest first
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		where = append(where, "action = $"+strconv.Itoa(len(args)))
	}
	if filter.ActorID != nil {
		args = append(args, *filter.ActorID)
		where = append(where, "actor_id = $"+strconv.Itoa(len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	args = append(args, limit)
	limitArg := "$" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	offsetArg := "$" + strconv.Itoa(len(args))

	query := `
		SELECT id, actor_id, action, resource_type, resource_id,
		       details, ip_address, user_agent, request_id, timestamp
		FROM audit_logs`
	if len(where) > 0 {
		query += `
		WHERE ` + strings.Join(where, " AND ")
	}
	query += `
		ORDER BY timestamp DESC
		LIMIT ` + limitArg + ` OFFSET ` + offsetArg

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.db.wrapErr("audit_logs.list", err)
	}
	defer rows.Close()

	logs := []*models.AuditLog{}
	for rows.Next() {
		var (
			log     models.AuditLog
			actorID sql.NullInt64
			action  string
			details []byte
		)
		err := rows.Scan(
			&log.ID,
			&actorID,
			&action,
			&log.ResourceType,
			&log.ResourceID,
			&details,
			&log.IPAddress,
			&log.UserAgent,
			&log.RequestID,
			&log.Timestamp,
		)
		if err != nil {
			return nil, r.db.wrapErr("audit_logs.list", err)
		}
		if actorID.Valid {
			id := actorID.Int64
			log.ActorID = &id
		}
		log.Action = models.AuditAction(action)
		log.Details = details
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, r.db.wrapErr("audit_logs.list", err)
	}

	return logs, nil
}
