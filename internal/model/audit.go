package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog records a mutation or an authorization decision.
type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     uuid.UUID       `json:"user_id" db:"user_id"`
	ClinicID   uuid.UUID       `json:"clinic_id" db:"clinic_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	Changes    json.RawMessage `json:"changes" db:"changes"`
	Metadata   json.RawMessage `json:"metadata" db:"metadata"`
	IPAddress  string          `json:"ip_address" db:"ip_address"`
	UserAgent  string          `json:"user_agent" db:"user_agent"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate      = "create"
	AuditActionRead        = "read"
	AuditActionUpdate      = "update"
	AuditActionDelete      = "delete"
	AuditActionAccessCheck = "access_check"
	AuditActionAssignRole  = "assign_role"
	AuditActionRemoveRole  = "remove_role"
	AuditActionGrant       = "grant_permission"
	AuditActionRevoke      = "revoke_permission"
	AuditActionMigrate     = "migrate"
	AuditActionSeed        = "seed"

	// Entity types
	AuditEntityUser       = "user"
	AuditEntityRole       = "role"
	AuditEntityPermission = "permission"
	AuditEntityMembership = "membership"
	AuditEntityEndpoint   = "endpoint"
)

// AccessDecision is the audit payload for one authorization check.
type AccessDecision struct {
	Endpoint            string    `json:"endpoint"`
	Method              string    `json:"method"`
	Allowed             bool      `json:"allowed"`
	ErrorCode           string    `json:"error_code,omitempty"`
	Operator            string    `json:"operator,omitempty"`
	RequiredPermissions []string  `json:"required_permissions,omitempty"`
	UserPermissions     []string  `json:"user_permissions,omitempty"`
	RequiredRoles       []string  `json:"required_roles,omitempty"`
	UserRoles           []string  `json:"user_roles,omitempty"`
	CheckedAt           time.Time `json:"checked_at"`
}
