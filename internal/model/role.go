package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// RoleNamePattern constrains role names to lowercase with underscores.
var RoleNamePattern = regexp.MustCompile(`^[a-z][a-z_]*$`)

// Well-known system role names.
const (
	RoleAdmin        = "admin"
	RoleSuperAdmin   = "super_admin"
	RoleDoctor       = "doctor"
	RoleNurse        = "nurse"
	RoleReceptionist = "receptionist"
	RoleAccountant   = "accountant"
	RoleStaff        = "staff"
)

// PermissionGrant is a single entry in a role's permission list.
type PermissionGrant struct {
	PermissionName string     `json:"permission_name"`
	Granted        bool       `json:"granted"`
	GrantedAt      time.Time  `json:"granted_at"`
	GrantedBy      *uuid.UUID `json:"granted_by,omitempty"`
}

// GrantList stores permission grants as a JSONB column.
type GrantList []PermissionGrant

func (g GrantList) Value() (driver.Value, error) {
	if g == nil {
		return json.Marshal(GrantList{})
	}
	return json.Marshal(g)
}

func (g *GrantList) Scan(src interface{}) error {
	if src == nil {
		*g = GrantList{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported grant list type %T", src)
	}
	return json.Unmarshal(b, g)
}

// Role bundles permissions, scoped to a clinic unless it is a system role.
// A nil ClinicID means the role is defined globally.
type Role struct {
	Base
	Name          string     `db:"name" json:"name"`
	DisplayName   string     `db:"display_name" json:"display_name"`
	Description   string     `db:"description" json:"description"`
	ClinicID      *uuid.UUID `db:"clinic_id" json:"clinic_id,omitempty"`
	IsSystemRole  bool       `db:"is_system_role" json:"is_system_role"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	InheritsFrom  *uuid.UUID `db:"inherits_from" json:"inherits_from,omitempty"`
	Permissions   GrantList  `db:"permissions" json:"permissions"`
	UserCount     int        `db:"user_count" json:"user_count"`
	Color         string     `db:"color" json:"color,omitempty"`
	Icon          string     `db:"icon" json:"icon,omitempty"`
	Priority      int        `db:"priority" json:"priority"`
	CanBeModified bool       `db:"can_be_modified" json:"can_be_modified"`
	CanBeDeleted  bool       `db:"can_be_deleted" json:"can_be_deleted"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Validate checks shape invariants. Tenancy rules (system roles dropping
// their clinic id, non-system roles requiring one) are enforced by the role
// service before persisting.
func (r *Role) Validate() error {
	if !RoleNamePattern.MatchString(r.Name) {
		return fmt.Errorf("role name %q must be lowercase with underscores", r.Name)
	}
	if r.Priority < 1 || r.Priority > 100 {
		return fmt.Errorf("role priority %d must be between 1 and 100", r.Priority)
	}
	return nil
}

// GrantedNames returns the names of all grants with granted=true.
func (r *Role) GrantedNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for _, g := range r.Permissions {
		if g.Granted {
			names = append(names, g.PermissionName)
		}
	}
	return names
}
