package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/internal/service/audit"
	"github.com/clinicore/clinic-api/pkg/logger"
)

// Seeder installs the permission catalog and system roles, and migrates
// legacy flat-permission memberships to role assignments. Every operation
// is idempotent: re-running reports updates, never duplicates.
type Seeder struct {
	db          *sqlx.DB
	permissions repository.PermissionRepository
	roles       repository.RoleRepository
	memberships repository.MembershipRepository
	auditor     *audit.Service
	logger      *logger.Logger
	environment string
}

func New(
	db *sqlx.DB,
	permissions repository.PermissionRepository,
	roles repository.RoleRepository,
	memberships repository.MembershipRepository,
	auditor *audit.Service,
	logger *logger.Logger,
	environment string,
) *Seeder {
	return &Seeder{
		db:          db,
		permissions: permissions,
		roles:       roles,
		memberships: memberships,
		auditor:     auditor,
		logger:      logger.WithComponent("seeder"),
		environment: environment,
	}
}

// Result reports what one seeding pass did.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// SeedPermissions upserts the permission catalog by name. Dependency and
// conflict references are validated against the catalog itself before any
// write, so a typo in one entry aborts the whole pass.
func (s *Seeder) SeedPermissions(ctx context.Context) (*Result, error) {
	if err := validateCatalog(permissionCatalog); err != nil {
		return nil, err
	}

	result := &Result{Total: len(permissionCatalog)}
	for i := range permissionCatalog {
		perm := permissionCatalog[i]
		perm.ID = uuid.New()

		created, err := s.permissions.Upsert(ctx, &perm)
		if err != nil {
			return nil, fmt.Errorf("failed to seed permission %s: %w", perm.Name, err)
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	s.logger.Info("permission catalog seeded",
		"created", result.Created, "updated", result.Updated, "total", result.Total)
	return result, nil
}

// SeedRoles upserts the system roles. Grants are stamped fresh on create
// and preserved on update when unchanged; inheritance links are resolved
// in a second pass once every parent exists.
func (s *Seeder) SeedRoles(ctx context.Context) (*Result, error) {
	result := &Result{Total: len(systemRoles)}

	for _, seed := range systemRoles {
		role := &model.Role{
			Name:          seed.Name,
			DisplayName:   seed.DisplayName,
			Description:   seed.Description,
			IsSystemRole:  true,
			IsActive:      true,
			Priority:      seed.Priority,
			Color:         seed.Color,
			Icon:          seed.Icon,
			CanBeModified: true,
		}
		role.ID = uuid.New()
		for _, name := range seed.Permissions {
			if _, err := s.permissions.GetByName(ctx, name); err != nil {
				return nil, fmt.Errorf("role %s grants unknown permission %s: %w", seed.Name, name, err)
			}
			role.Permissions = append(role.Permissions, model.PermissionGrant{
				PermissionName: name,
				Granted:        true,
				GrantedAt:      time.Now(),
			})
		}

		created, err := s.roles.Upsert(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("failed to seed role %s: %w", seed.Name, err)
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	for _, seed := range systemRoles {
		if seed.InheritsFrom == "" {
			continue
		}
		role, err := s.roles.GetByName(ctx, seed.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load seeded role %s: %w", seed.Name, err)
		}
		parent, err := s.roles.GetByName(ctx, seed.InheritsFrom, nil)
		if err != nil {
			return nil, fmt.Errorf("role %s inherits unknown role %s: %w", seed.Name, seed.InheritsFrom, err)
		}
		if role.InheritsFrom != nil && *role.InheritsFrom == parent.ID {
			continue
		}
		role.InheritsFrom = &parent.ID
		if err := s.roles.Update(ctx, role); err != nil {
			return nil, fmt.Errorf("failed to link role %s to parent %s: %w", seed.Name, seed.InheritsFrom, err)
		}
	}

	s.logger.Info("system roles seeded",
		"created", result.Created, "updated", result.Updated, "total", result.Total)
	return result, nil
}

// SetupResult aggregates the combined setup run.
type SetupResult struct {
	Permissions *Result `json:"permissions"`
	Roles       *Result `json:"roles"`
	Migrated    int     `json:"migrated_memberships"`
}

// Setup runs permission seeding, role seeding and the legacy membership
// migration in order.
func (s *Seeder) Setup(ctx context.Context) (*SetupResult, error) {
	perms, err := s.SeedPermissions(ctx)
	if err != nil {
		return nil, err
	}
	roles, err := s.SeedRoles(ctx)
	if err != nil {
		return nil, err
	}
	migrated, err := s.MigrateLegacyMemberships(ctx)
	if err != nil {
		return nil, err
	}
	return &SetupResult{Permissions: perms, Roles: roles, Migrated: migrated}, nil
}

// MigrateLegacyMemberships upgrades schema-version-1 memberships to role
// assignments. Role names recorded on the membership are resolved against
// the system roles; the flat permission array stays in place so existing
// access is unchanged during the transition. Each migrated record is
// audited.
func (s *Seeder) MigrateLegacyMemberships(ctx context.Context) (int, error) {
	legacy, err := s.memberships.ListBySchemaVersion(ctx, model.MembershipSchemaLegacy)
	if err != nil {
		return 0, fmt.Errorf("failed to list legacy memberships: %w", err)
	}

	migrated := 0
	for _, m := range legacy {
		changed := false
		for i := range m.Roles {
			if m.Roles[i].RoleID != uuid.Nil {
				continue
			}
			role, err := s.roles.GetByName(ctx, m.Roles[i].RoleName, nil)
			if err != nil {
				s.logger.Warn("legacy membership references unknown role",
					"membership_id", m.ID, "role_name", m.Roles[i].RoleName)
				continue
			}
			m.Roles[i].RoleID = role.ID
			if m.Roles[i].AssignedAt.IsZero() {
				m.Roles[i].AssignedAt = time.Now()
			}
			if err := s.roles.AdjustUserCount(ctx, role.ID, 1); err != nil {
				return migrated, fmt.Errorf("failed to adjust user count for role %s: %w", role.Name, err)
			}
			changed = true
		}

		m.SchemaVersion = model.MembershipSchemaRBAC
		if err := s.memberships.Update(ctx, m); err != nil {
			return migrated, fmt.Errorf("failed to migrate membership %s: %w", m.ID, err)
		}
		migrated++

		s.auditor.Log(ctx, m.UserID, m.ClinicID, model.AuditActionMigrate,
			model.AuditEntityMembership, m.ID, &audit.LogOptions{
				Metadata: map[string]interface{}{
					"schema_version": model.MembershipSchemaRBAC,
					"roles_resolved": changed,
				},
			})
	}

	s.logger.Info("legacy memberships migrated", "migrated", migrated)
	return migrated, nil
}

// Rollback removes all seeded RBAC state. Refused outright in production;
// there is no partial rollback.
func (s *Seeder) Rollback(ctx context.Context) error {
	if s.environment == "production" {
		return fmt.Errorf("rollback is not permitted in production")
	}

	statements := []string{
		`UPDATE user_clinic_memberships SET roles = '[]'::jsonb, schema_version = 1`,
		`DELETE FROM roles WHERE is_system_role = true`,
		`DELETE FROM permissions WHERE is_system_permission = true`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
	}

	s.logger.Warn("permission system rolled back", "environment", s.environment)
	return nil
}

// validateCatalog checks every catalog entry and its dependency and
// conflict references against the catalog's own names.
func validateCatalog(catalog []model.Permission) error {
	names := make(map[string]bool, len(catalog))
	for i := range catalog {
		if err := catalog[i].Validate(); err != nil {
			return fmt.Errorf("invalid catalog entry %s: %w", catalog[i].Name, err)
		}
		if names[catalog[i].Name] {
			return fmt.Errorf("duplicate catalog entry %s", catalog[i].Name)
		}
		names[catalog[i].Name] = true
	}

	for i := range catalog {
		for _, dep := range catalog[i].DependsOn {
			if !names[dep] {
				return fmt.Errorf("permission %s depends on unknown permission %s", catalog[i].Name, dep)
			}
		}
		for _, conflict := range catalog[i].ConflictsWith {
			if !names[conflict] {
				return fmt.Errorf("permission %s conflicts with unknown permission %s", catalog[i].Name, conflict)
			}
		}
	}
	return nil
}
