package models

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionSignIn             AuditAction = "sign_in"
	AuditActionSignInFailed       AuditAction = "sign_in_failed"
	AuditActionUserCreated        AuditAction = "user_created"
	AuditActionUserDisabled       AuditAction = "user_disabled"
	AuditActionGroupCreated       AuditAction = "group_created"
	AuditActionGroupDisabled      AuditAction = "group_disabled"
	AuditActionPermissionCreated  AuditAction = "permission_created"
	AuditActionPermissionDisabled AuditAction = "permission_disabled"
	AuditActionPermissionBound    AuditAction = "permission_bound"
	AuditActionPermissionUnbound  AuditAction = "permission_unbound"
	AuditActionMemberBound        AuditAction = "member_bound"
	AuditActionMemberUnbound      AuditAction = "member_unbound"
)

// AuditLog represents an audit trail entry
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	ActorID      *int64          `json:"actor_id,omitempty" db:"actor_id"`
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"` // user, group, permission, binding
	ResourceID   string          `json:"resource_id,omitempty" db:"resource_id"`
	Details      json.RawMessage `json:"details,omitempty" db:"details"`
	IPAddress    string          `json:"ip_address" db:"ip_address"`
	UserAgent    string          `json:"user_agent" db:"user_agent"`
	RequestID    string          `json:"request_id" db:"request_id"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction, resourceType string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: resourceType,
		Timestamp:    time.Now().UTC(),
	}
}

// WithActor sets the user who performed the action
func (a *AuditLog) WithActor(userID int64) *AuditLog {
	a.ActorID = &userID
	return a
}

// WithResource sets the resource ID
func (a *AuditLog) WithResource(resourceID int64) *AuditLog {
	a.ResourceID = strconv.FormatInt(resourceID, 10)
	return a
}

// WithBinding sets the resource ID to the composite key of a binding
func (a *AuditLog) WithBinding(groupID, otherID int64) *AuditLog {
	a.ResourceID = strconv.FormatInt(groupID, 10) + ":" + strconv.FormatInt(otherID, 10)
	return a
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}

// AuditFilter narrows an audit listing. Zero values mean no filter.
type AuditFilter struct {
	Action  AuditAction
	ActorID *int64
	Limit   int
	Offset  int
}
