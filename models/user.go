package models

import (
	"time"
)

// User is an account that can sign in with a username and password.
// Users are never physically removed; disabling flips Enabled.
type User struct {
	ID           int64     `json:"user_id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Enabled      bool      `json:"enabled" db:"enabled"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates an enabled User stamped with now.
func NewUser(username, passwordHash string, now time.Time) *User {
	return &User{
		Username:     username,
		PasswordHash: passwordHash,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// UserCredentials is the subset of a user row needed to verify a password.
type UserCredentials struct {
	UserID       int64
	PasswordHash string
	Enabled      bool
}
