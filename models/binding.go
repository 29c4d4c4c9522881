package models

import (
	"time"
)

// GroupPermissionBinding records that a group grants a permission.
// At most one row exists per (GroupID, PermissionID).
type GroupPermissionBinding struct {
	GroupID      int64     `json:"group_id" db:"group_id"`
	PermissionID int64     `json:"permission_id" db:"permission_id"`
	Enabled      bool      `json:"enabled" db:"enabled"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the GroupPermissionBinding model
func (GroupPermissionBinding) TableName() string {
	return "group_permissions"
}

// GroupMemberBinding records that a user belongs to a group.
// At most one row exists per (GroupID, UserID).
type GroupMemberBinding struct {
	GroupID   int64     `json:"group_id" db:"group_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Enabled   bool      `json:"enabled" db:"enabled"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the GroupMemberBinding model
func (GroupMemberBinding) TableName() string {
	return "group_members"
}
