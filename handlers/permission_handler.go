package handlers

import (
	"net/http"

	"github.com/upb/authd/utils"
	"go.uber.org/zap"
)

// CreatePermissionRequest is the body of POST /api/v1/permissions
type CreatePermissionRequest struct {
	Name string `json:"permission_name" validate:"required,rbacname,max=128"`
}

// PermissionHandler handles permission administration
type PermissionHandler struct {
	rbac   RBACService
	logger *zap.Logger
}

// NewPermissionHandler creates a new PermissionHandler
func NewPermissionHandler(rbac RBACService, logger *zap.Logger) *PermissionHandler {
	return &PermissionHandler{
		rbac:   rbac,
		logger: logger,
	}
}

// HandleListPermissions handles GET /api/v1/permissions
func (h *PermissionHandler) HandleListPermissions(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	perms, err := h.rbac.ListPermissions(r.Context(), page)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, perms)
}

// HandleCreatePermission handles POST /api/v1/permissions
func (h *PermissionHandler) HandleCreatePermission(w http.ResponseWriter, r *http.Request) {
	var req CreatePermissionRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	perm, err := h.rbac.CreatePermission(r.Context(), req.Name)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Info("permission created",
		zap.String("request_id", requestIDFrom(r)),
		zap.Int64("permission_id", perm.ID),
		zap.String("permission_name", perm.Name))

	_ = utils.WriteCreated(w, perm)
}

// HandleGetPermission handles GET /api/v1/permissions/{id}
func (h *PermissionHandler) HandleGetPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	perm, err := h.rbac.GetPermission(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, perm)
}

// HandleDisablePermission handles DELETE /api/v1/permissions/{id}
func (h *PermissionHandler) HandleDisablePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.rbac.DisablePermission(r.Context(), id); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}
