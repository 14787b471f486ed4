package model

import (
	"time"

	"github.com/google/uuid"
)

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusPending  = "pending"
	UserStatusLocked   = "locked"
)

// User represents a system user. IsAdmin is the platform-level admin flag;
// per-clinic authority comes from membership roles.
type User struct {
	Base
	Email           string     `json:"email" db:"email"`
	Name            string     `json:"name" db:"name"`
	Password        string     `json:"password,omitempty" db:"-"`
	PasswordHash    string     `json:"-" db:"password_hash"`
	Phone           *string    `json:"phone" db:"phone"`
	Status          string     `json:"status" db:"status"`
	IsAdmin         bool       `json:"is_admin" db:"is_admin"`
	DefaultClinicID *uuid.UUID `json:"default_clinic_id,omitempty" db:"default_clinic_id"`
	LastLoginAt     *time.Time `json:"last_login_at" db:"last_login_at"`
}

// UserFilter represents user search parameters
type UserFilter struct {
	BaseFilter
	Status string `json:"status" form:"status"`
}

// CreateUserRequest represents user creation parameters
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}
