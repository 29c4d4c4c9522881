package models

import (
	"time"
)

// Group is a named set of users. The group name doubles as the role label
// carried in issued tokens.
type Group struct {
	ID        int64     `json:"group_id" db:"id"`
	Name      string    `json:"group_name" db:"name"`
	Enabled   bool      `json:"enabled" db:"enabled"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Group model
func (Group) TableName() string {
	return "groups"
}

// NewGroup creates an enabled Group stamped with now.
func NewGroup(name string, now time.Time) *Group {
	return &Group{
		Name:      name,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Permission is a named capability that groups can grant.
type Permission struct {
	ID        int64     `json:"permission_id" db:"id"`
	Name      string    `json:"permission_name" db:"name"`
	Enabled   bool      `json:"enabled" db:"enabled"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Permission model
func (Permission) TableName() string {
	return "permissions"
}

// NewPermission creates an enabled Permission stamped with now.
func NewPermission(name string, now time.Time) *Permission {
	return &Permission{
		Name:      name,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
