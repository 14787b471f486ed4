package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Membership schema versions. Version 1 records carry only the legacy flat
// permission list; version 2 records have been migrated to role assignments.
const (
	MembershipSchemaLegacy = 1
	MembershipSchemaRBAC   = 2
)

// RoleAssignment binds a role to a membership with assignment metadata.
type RoleAssignment struct {
	RoleID     uuid.UUID  `json:"role_id"`
	RoleName   string     `json:"role_name"`
	AssignedAt time.Time  `json:"assigned_at"`
	AssignedBy *uuid.UUID `json:"assigned_by,omitempty"`
	IsPrimary  bool       `json:"is_primary"`
}

// RoleAssignmentList stores role assignments as a JSONB column.
type RoleAssignmentList []RoleAssignment

func (l RoleAssignmentList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal(RoleAssignmentList{})
	}
	return json.Marshal(l)
}

func (l *RoleAssignmentList) Scan(src interface{}) error {
	if src == nil {
		*l = RoleAssignmentList{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported role assignment list type %T", src)
	}
	return json.Unmarshal(b, l)
}

// UserClinicMembership grants a user access to one clinic. At most one
// membership exists per (user, clinic) pair. The flat Permissions field is
// the pre-RBAC model and only consulted for schema version 1 records.
type UserClinicMembership struct {
	Base
	UserID        uuid.UUID          `db:"user_id" json:"user_id"`
	ClinicID      uuid.UUID          `db:"clinic_id" json:"clinic_id"`
	Roles         RoleAssignmentList `db:"roles" json:"roles"`
	Permissions   pq.StringArray     `db:"permissions" json:"permissions,omitempty"`
	IsActive      bool               `db:"is_active" json:"is_active"`
	SchemaVersion int                `db:"schema_version" json:"schema_version"`
	JoinedAt      time.Time          `db:"joined_at" json:"joined_at"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}

// HasRoleName reports whether the membership carries a role by name.
func (m *UserClinicMembership) HasRoleName(name string) bool {
	for _, r := range m.Roles {
		if r.RoleName == name {
			return true
		}
	}
	return false
}

// RoleIDs returns the ids of all assigned roles.
func (m *UserClinicMembership) RoleIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m.Roles))
	for _, r := range m.Roles {
		ids = append(ids, r.RoleID)
	}
	return ids
}

// DefaultPermissionsByRole is the legacy role to flat-permission table applied
// on first save of a membership created without explicit permissions. Retained
// for backward compatibility with pre-RBAC data; new code paths resolve
// permissions through roles.
var DefaultPermissionsByRole = map[string][]string{
	RoleAdmin: {
		"users.view", "users.create", "users.edit", "users.delete",
		"patients.view", "patients.create", "patients.edit", "patients.delete",
		"appointments.view", "appointments.create", "appointments.edit",
		"invoices.view", "invoices.create", "payments.view", "payments.create",
		"inventory.view", "inventory.edit", "reports.view", "settings.manage_settings",
		"roles.manage_roles", "users.manage_permissions",
	},
	RoleDoctor: {
		"patients.view", "patients.create", "patients.edit",
		"appointments.view", "appointments.create", "appointments.edit",
		"prescriptions.view", "prescriptions.create", "lab.view", "lab.create",
		"analysis.view", "analysis.analyze", "reports.view",
	},
	RoleNurse: {
		"patients.view", "patients.edit",
		"appointments.view", "appointments.edit",
		"prescriptions.view", "lab.view", "inventory.view",
	},
	RoleReceptionist: {
		"patients.view", "patients.create",
		"appointments.view", "appointments.create", "appointments.edit",
		"leads.view", "leads.create",
	},
	RoleAccountant: {
		"invoices.view", "invoices.create", "invoices.edit",
		"payments.view", "payments.create", "payments.refund",
		"billing.view", "reports.view", "reports.export",
	},
	RoleStaff: {
		"patients.view", "appointments.view",
	},
}
