package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/upb/authd/models"
	"github.com/upb/authd/utils"
	"go.uber.org/zap"
)

// maxAuditPage bounds a single audit listing
const maxAuditPage = 500

// AuditLister reads the audit trail
type AuditLister interface {
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error)
}

// AuditHandler serves the audit trail
type AuditHandler struct {
	audit  AuditLister
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit AuditLister, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		audit:  audit,
		logger: logger,
	}
}

// HandleListAuditLogs handles GET /api/v1/audit/logs with optional
// action, actor_id, limit and offset query parameters
func (h *AuditHandler) HandleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := utils.QueryInt(r, "limit", 100)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if limit > maxAuditPage {
		limit = maxAuditPage
	}
	offset, err := utils.QueryInt(r, "offset", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	filter := models.AuditFilter{
		Action: models.AuditAction(q.Get("action")),
		Limit:  limit,
		Offset: offset,
	}
	if raw := q.Get("actor_id"); raw != "" {
		actorID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || actorID <= 0 {
			_ = utils.WriteBadRequest(w, "actor_id must be a positive integer", nil)
			return
		}
		filter.ActorID = &actorID
	}

	logs, err := h.audit.List(r.Context(), filter)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Debug("listed audit logs",
		zap.String("request_id", requestIDFrom(r)),
		zap.Int("count", len(logs)))

	_ = utils.WriteOK(w, logs)
}
