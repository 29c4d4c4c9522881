package handlers

import (
	"context"
	"net/http"

	"github.com/upb/authd/models"
	"github.com/upb/authd/services/rbac"
	"github.com/upb/authd/utils"
	"go.uber.org/zap"
)

// RBACService defines the group, permission and binding operations
type RBACService interface {
	CreateGroup(ctx context.Context, name string) (*models.Group, error)
	GetGroup(ctx context.Context, id int64) (*models.Group, error)
	ListGroups(ctx context.Context, page rbac.Page) ([]*models.Group, error)
	DisableGroup(ctx context.Context, id int64) error

	CreatePermission(ctx context.Context, name string) (*models.Permission, error)
	GetPermission(ctx context.Context, id int64) (*models.Permission, error)
	ListPermissions(ctx context.Context, page rbac.Page) ([]*models.Permission, error)
	DisablePermission(ctx context.Context, id int64) error

	BindPermission(ctx context.Context, groupID, permissionID int64) (*models.GroupPermissionBinding, error)
	UnbindPermission(ctx context.Context, groupID, permissionID int64) (*models.GroupPermissionBinding, error)
	BindMember(ctx context.Context, groupID, userID int64) (*models.GroupMemberBinding, error)
	UnbindMember(ctx context.Context, groupID, userID int64) (*models.GroupMemberBinding, error)
	ListGroupPermissions(ctx context.Context, groupID int64) ([]*models.GroupPermissionBinding, error)
	ListGroupMembers(ctx context.Context, groupID int64) ([]*models.GroupMemberBinding, error)
}

// CreateGroupRequest is the body of POST /api/v1/groups
type CreateGroupRequest struct {
	Name string `json:"group_name" validate:"required,rbacname,max=128"`
}

// BindPermissionRequest is the body of PUT /api/v1/groups/bind_permission
type BindPermissionRequest struct {
	GroupID      int64 `json:"group_id" validate:"gt=0"`
	PermissionID int64 `json:"permission_id" validate:"gt=0"`
}

// BindMemberRequest is the body of PUT /api/v1/groups/bind_member
type BindMemberRequest struct {
	GroupID int64 `json:"group_id" validate:"gt=0"`
	UserID  int64 `json:"user_id" validate:"gt=0"`
}

// GroupHandler handles groups and their bindings
type GroupHandler struct {
	rbac   RBACService
	logger *zap.Logger
}

// NewGroupHandler creates a new GroupHandler
func NewGroupHandler(rbac RBACService, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{
		rbac:   rbac,
		logger: logger,
	}
}

// HandleListGroups handles GET /api/v1/groups
func (h *GroupHandler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	groups, err := h.rbac.ListGroups(r.Context(), page)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, groups)
}

// HandleCreateGroup handles POST /api/v1/groups
func (h *GroupHandler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	group, err := h.rbac.CreateGroup(r.Context(), req.Name)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Info("group created",
		zap.String("request_id", requestIDFrom(r)),
		zap.Int64("group_id", group.ID),
		zap.String("group_name", group.Name))

	_ = utils.WriteCreated(w, group)
}

// HandleGetGroup handles GET /api/v1/groups/{id}
func (h *GroupHandler) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	group, err := h.rbac.GetGroup(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, group)
}

// HandleDisableGroup handles DELETE /api/v1/groups/{id}
func (h *GroupHandler) HandleDisableGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.rbac.DisableGroup(r.Context(), id); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// HandleBindPermission handles PUT /api/v1/groups/bind_permission
func (h *GroupHandler) HandleBindPermission(w http.ResponseWriter, r *http.Request) {
	var req BindPermissionRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	binding, err := h.rbac.BindPermission(r.Context(), req.GroupID, req.PermissionID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, binding)
}

// HandleUnbindPermission handles
// PUT /api/v1/groups/{group_id}/unbind_permission/{permission_id}
func (h *GroupHandler) HandleUnbindPermission(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "group_id")
	if !ok {
		return
	}
	permissionID, ok := pathID(w, r, "permission_id")
	if !ok {
		return
	}

	binding, err := h.rbac.UnbindPermission(r.Context(), groupID, permissionID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	if binding == nil {
		utils.WriteNoContent(w)
		return
	}

	_ = utils.WriteOK(w, binding)
}

// HandleBindMember handles PUT /api/v1/groups/bind_member
func (h *GroupHandler) HandleBindMember(w http.ResponseWriter, r *http.Request) {
	var req BindMemberRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	binding, err := h.rbac.BindMember(r.Context(), req.GroupID, req.UserID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, binding)
}

// HandleUnbindMember handles
// PUT /api/v1/groups/{group_id}/unbind_member/{user_id}
func (h *GroupHandler) HandleUnbindMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "group_id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}

	binding, err := h.rbac.UnbindMember(r.Context(), groupID, userID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	if binding == nil {
		utils.WriteNoContent(w)
		return
	}

	_ = utils.WriteOK(w, binding)
}

// HandleListGroupPermissions handles GET /api/v1/groups/{id}/permissions
func (h *GroupHandler) HandleListGroupPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	bindings, err := h.rbac.ListGroupPermissions(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, bindings)
}

// HandleListGroupMembers handles GET /api/v1/groups/{id}/members
func (h *GroupHandler) HandleListGroupMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	bindings, err := h.rbac.ListGroupMembers(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, bindings)
}

// parsePage reads limit and offset query parameters
func parsePage(w http.ResponseWriter, r *http.Request) (rbac.Page, bool) {
	limit, err := utils.QueryInt(r, "limit", rbac.DefaultPageSize)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return rbac.Page{}, false
	}
	offset, err := utils.QueryInt(r, "offset", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return rbac.Page{}, false
	}
	return rbac.Page{Limit: limit, Offset: offset}, true
}
