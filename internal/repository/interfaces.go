package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
)

// All repository interfaces in one file
type (
	// PermissionRepository handles catalog persistence. The catalog is
	// seeded idempotently; Upsert reports whether a row was created.
	PermissionRepository interface {
		Create(ctx context.Context, permission *model.Permission) error
		Get(ctx context.Context, id uuid.UUID) (*model.Permission, error)
		GetByName(ctx context.Context, name string) (*model.Permission, error)
		Update(ctx context.Context, permission *model.Permission) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Permission, error)
		ListByModule(ctx context.Context, module model.PermissionModule, subModule string) ([]*model.Permission, error)
		ListSystem(ctx context.Context) ([]*model.Permission, error)
		ListByNames(ctx context.Context, names []string) ([]*model.Permission, error)
		Upsert(ctx context.Context, permission *model.Permission) (created bool, err error)
	}

	RoleRepository interface {
		Create(ctx context.Context, role *model.Role) error
		Get(ctx context.Context, id uuid.UUID) (*model.Role, error)
		GetByName(ctx context.Context, name string, clinicID *uuid.UUID) (*model.Role, error)
		Update(ctx context.Context, role *model.Role) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListSystemRoles(ctx context.Context) ([]*model.Role, error)
		ListClinicRoles(ctx context.Context, clinicID uuid.UUID) ([]*model.Role, error)
		AdjustUserCount(ctx context.Context, id uuid.UUID, delta int) error
		Upsert(ctx context.Context, role *model.Role) (created bool, err error)
	}

	MembershipRepository interface {
		Create(ctx context.Context, m *model.UserClinicMembership) error
		Get(ctx context.Context, id uuid.UUID) (*model.UserClinicMembership, error)
		GetByUserAndClinic(ctx context.Context, userID, clinicID uuid.UUID) (*model.UserClinicMembership, error)
		Update(ctx context.Context, m *model.UserClinicMembership) error
		Exists(ctx context.Context, userID, clinicID uuid.UUID) (bool, error)
		ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.UserClinicMembership, error)
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.UserClinicMembership, error)
		ListBySchemaVersion(ctx context.Context, version int) ([]*model.UserClinicMembership, error)
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
	}

	ClinicRepository interface {
		Create(ctx context.Context, clinic *model.Clinic) error
		Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
		List(ctx context.Context) ([]*model.Clinic, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditLog, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMessage *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
