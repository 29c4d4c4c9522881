// Package rbac implements the group, permission and binding use cases.
package rbac

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/upb/authd/models"
	"github.com/upb/authd/repositories"
	"github.com/upb/authd/services"
	"github.com/upb/authd/services/audit"
	"go.uber.org/zap"
)

const (
	maxNameLength = 128

	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Page is a limit/offset window over a listing
type Page struct {
	Limit  int
	Offset int
}

// normalize clamps the page into the accepted range
func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Service implements the RBAC use cases
type Service struct {
	groups           repositories.GroupRepository
	permissions      repositories.PermissionRepository
	groupPermissions repositories.GroupPermissionRepository
	groupMembers     repositories.GroupMemberRepository
	auditor          audit.Recorder
	logger           *zap.Logger
}

// NewService creates a new rbac Service
func NewService(repos *repositories.Repositories, auditor audit.Recorder, logger *zap.Logger) *Service {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &Service{
		groups:           repos.Groups,
		permissions:      repos.Permissions,
		groupPermissions: repos.GroupPermissions,
		groupMembers:     repos.GroupMembers,
		auditor:          auditor,
		logger:           logger,
	}
}

func validateName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", services.NewDomainError(services.ErrorTypeValidation, field+" must be 1-128 characters", nil).
			WithDetail("field", field)
	}
	return name, nil
}

// CreateGroup creates an enabled group
func (s *Service) CreateGroup(ctx context.Context, name string) (*models.Group, error) {
	name, err := validateName("group_name", name)
	if err != nil {
		return nil, err
	}

	group, err := s.groups.Create(ctx, name)
	if err != nil {
		return nil, services.FromStoreError(err, "", services.ErrDuplicateGroup.Message)
	}

	s.logger.Info("group created", zap.Int64("group_id", group.ID), zap.String("group_name", group.Name))
	s.auditor.Record(ctx, models.NewAuditLog(models.AuditActionGroupCreated, "group").
		WithResource(group.ID).
		WithDetails(map[string]string{"group_name": group.Name}))
	return group, nil
}

// GetGroup retrieves a group by ID, disabled or not
func (s *Service) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	group, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return nil, services.FromStoreError(err, services.ErrGroupNotFound.Message, "")
	}
	return group, nil
}

// ListGroups lists groups ordered by ID
func (s *Service) ListGroups(ctx context.Context, page Page) ([]*models.Group, error) {
	page = page.normalize()
	groups, err := s.groups.List(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, services.FromStoreError(err, "", "")
	}
	return groups, nil
}

// DisableGroup disables a group. Its bindings are left as they are, and a
// missing group counts as already disabled.
func (s *Service) DisableGroup(ctx context.Context, id int64) error {
	if err := s.groups.Disable(ctx, id); err != nil {
		if repositories.IsNotFound(err) {
			return nil
		}
		return services.FromStoreError(err, "", "")
	}

	s.logger.Info("group disabled", zap.Int64("group_id", id))
	s.auditor.Record(ctx, models.NewAuditLog(models.AuditActionGroupDisabled, "group").WithResource(id))
	return nil
}

// CreatePermission creates an enabled permission
func (s *Service) CreatePermission(ctx context.Context, name string) (*models.Permission, error) {
	name, err := validateName("permission_name", name)
	if err != nil {
		return nil, err
	}

	perm, err := s.permissions.Create(ctx, name)
	if err != nil {
		return nil, services.FromStoreError(err, "", services.ErrDuplicatePermission.Message)
	}

	s.logger.Info("permission created", zap.Int64("permission_id", perm.ID), zap.String("permission_name", perm.Name))
	s.auditor.Record(ctx, models.NewAuditLog(models.AuditActionPermissionCreated, "permission").
		WithResource(perm.ID).
		WithDetails(map[string]string{"permission_name": perm.Name}))
	return perm, nil
}

// GetPermission retrieves a permission by ID, disabled or not
func (s *Service) GetPermission(ctx context.Context, id int64) (*models.Permission, error) {
	perm, err := s.permissions.GetByID(ctx, id)
	if err != nil {
		return nil, services.FromStoreError(err, services.ErrPermissionNotFound.Message, "")
	}
	return perm, nil
}

// ListPermissions lists permissions ordered by ID
func (s *Service) ListPermissions(ctx context.Context, page Page) ([]*models.Permission, error) {
	page = page.normalize()
	perms, err := s.permissions.List(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, services.FromStoreError(err, "", "")
	}
	return perms, nil
}

// DisablePermission disables a permission. A missing permission counts as
// already disabled.
func (s *Service) DisablePermission(ctx context.Context, id int64) error {
	if err := s.permissions.Disable(ctx, id); err != nil {
		if repositories.IsNotFound(err) {
			return nil
		}
		return services.FromStoreError(err, "", "")
	}

	s.logger.Info("permission disabled", zap.Int64("permission_id", id))
	s.auditor.Record(ctx, models.NewAuditLog(models.AuditActionPermissionDisabled, "permission").WithResource(id))
	return nil
}

// BindPermission grants a permission to a group and returns the binding as
// stored. Repeating the call leaves a single row.
func (s *Service) BindPermission(ctx context.Context, groupID, permissionID int64) (*models.GroupPermissionBinding, error) {
	binding, err := s.groupPermissions.Bind(ctx, groupID, permissionID)
	if err != nil {
		return nil, services.FromStoreError(err, "", services.ErrBindingTarget.Message)
	}

	s.auditor.Record(ctx, models.NewAuditLog(models.AuditActionPermissionBound, "binding").
		WithBinding(groupID, permissionID))
	return binding, nil
}

// UnbindPermission revokes a permission from a group. A pair that was never
// bound yields a nil binding and no error.
func (s *Service) UnbindPermission(ctx context.Context, groupID, permissionID int64) (*models.GroupPermissionBinding, error) {
	binding, err := s.groupPermissions.Unbind(ctx, groupID, permissionID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, nil
		}
		return nil, services.FromStoreError(err, "", "")
	}

	s.auditor.Record(ctx, models.NewAuditLog(models.AuditActionPermissionUnbound, "binding").
		WithBinding(groupID, permissionID))
	return binding, nil
}

// BindMember adds a user to a group and returns the binding as stored
func (s *Service) BindMember(ctx context.Context, groupID, userID int64) (*models.GroupMemberBinding, error) {
	binding, err := s.groupMembers.Bind(ctx, groupID, userID)
	if err != nil {
		return nil, services.FromStoreError(err, "", services.ErrBindingTarget.Message)
	}

	s.auditor.Record(ctx, models.NewAuditLog(models.AuditActionMemberBound, "binding").
		WithBinding(groupID, userID))
	return binding, nil
}

// UnbindMember removes a user from a group. A pair that was never bound
// yields a nil binding and no error.
func (s *Service) UnbindMember(ctx context.Context, groupID, userID int64) (*models.GroupMemberBinding, error) {
	binding, err := s.groupMembers.Unbind(ctx, groupID, userID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, nil
		}
		return nil, services.FromStoreError(err, "", "")
	}

	s.auditor.Record(ctx, models.NewAuditLog(models.AuditActionMemberUnbound, "binding").
		WithBinding(groupID, userID))
	return binding, nil
}

// ListGroupPermissions returns every permission binding of an existing group
func (s *Service) ListGroupPermissions(ctx context.Context, groupID int64) ([]*models.GroupPermissionBinding, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	bindings, err := s.groupPermissions.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, services.FromStoreError(err, "", "")
	}
	return bindings, nil
}

// ListGroupMembers returns every member binding of an existing group
func (s *Service) ListGroupMembers(ctx context.Context, groupID int64) ([]*models.GroupMemberBinding, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	bindings, err := s.groupMembers.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, services.FromStoreError(err, "", "")
	}
	return bindings, nil
}
