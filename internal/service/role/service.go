package role

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/internal/service/audit"
	permissionService "github.com/clinicore/clinic-api/internal/service/permission"
	"github.com/clinicore/clinic-api/pkg/errors"
)

// maxInheritanceDepth bounds the upward walk through parent roles. Trees are
// expected to be shallow; anything deeper than this is treated as corrupt.
const maxInheritanceDepth = 32

// Service is the role registry: role lifecycle, grant mutations and
// inheritance-aware effective permission resolution.
type Service struct {
	repo    repository.RoleRepository
	catalog *permissionService.Service
	auditor *audit.Service
}

func NewService(repo repository.RoleRepository, catalog *permissionService.Service, auditor *audit.Service) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		auditor: auditor,
	}
}

// normalizeTenancy applies the tenancy rules before any persist. System roles
// silently drop their clinic id and become undeletable; non-system roles
// must carry one.
func (s *Service) normalizeTenancy(role *model.Role) error {
	if role.IsSystemRole {
		role.ClinicID = nil
		role.CanBeDeleted = false
		return nil
	}
	if role.ClinicID == nil {
		return errors.Validation("clinic_id", "clinic id is required for non-system roles")
	}
	return nil
}

// checkInheritance rejects self-reference and multi-hop cycles by walking up
// the parent chain from the proposed parent.
func (s *Service) checkInheritance(ctx context.Context, roleID uuid.UUID, parentID *uuid.UUID) error {
	if parentID == nil {
		return nil
	}
	if *parentID == roleID {
		return errors.StateConflict(errors.SelfInheritance, "role cannot inherit from itself")
	}

	visited := map[uuid.UUID]bool{roleID: true}
	current := *parentID
	for depth := 0; depth < maxInheritanceDepth; depth++ {
		if visited[current] {
			return errors.StateConflict(errors.InheritanceCycle,
				fmt.Sprintf("role inheritance cycle detected through %s", current))
		}
		visited[current] = true

		parent, err := s.repo.Get(ctx, current)
		if err != nil {
			// A missing parent breaks the chain; it contributes nothing
			// at resolution time and cannot close a cycle.
			var appErr *errors.AppError
			if errors.As(err, &appErr) && appErr.Code == errors.ErrNotFound {
				return nil
			}
			return fmt.Errorf("failed to walk inheritance chain: %w", err)
		}
		if parent.InheritsFrom == nil {
			return nil
		}
		current = *parent.InheritsFrom
	}
	return errors.StateConflict(errors.InheritanceCycle, "role inheritance chain exceeds maximum depth")
}

func (s *Service) CreateRole(ctx context.Context, role *model.Role, actorID uuid.UUID) error {
	if role.Priority == 0 {
		role.Priority = 1
	}
	if err := role.Validate(); err != nil {
		return errors.Validation("role", err.Error())
	}
	if err := s.normalizeTenancy(role); err != nil {
		return err
	}

	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	if err := s.checkInheritance(ctx, role.ID, role.InheritsFrom); err != nil {
		return err
	}

	existing, err := s.repo.GetByName(ctx, role.Name, role.ClinicID)
	if err == nil && existing != nil {
		return errors.Validation("name", fmt.Sprintf("role %q already exists in this scope", role.Name))
	}

	if err := s.repo.Create(ctx, role); err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	s.auditor.Log(ctx, actorID, clinicOrNil(role), model.AuditActionCreate, model.AuditEntityRole, role.ID, &audit.LogOptions{
		Changes: role,
	})
	return nil
}

func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

func (s *Service) UpdateRole(ctx context.Context, role *model.Role, actorID uuid.UUID) error {
	if !role.CanBeModified {
		return errors.StateConflict(errors.RoleProtected, "role cannot be modified")
	}
	if err := role.Validate(); err != nil {
		return errors.Validation("role", err.Error())
	}
	if err := s.normalizeTenancy(role); err != nil {
		return err
	}
	if err := s.checkInheritance(ctx, role.ID, role.InheritsFrom); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, role); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	s.auditor.Log(ctx, actorID, clinicOrNil(role), model.AuditActionUpdate, model.AuditEntityRole, role.ID, &audit.LogOptions{
		Changes: role,
	})
	return nil
}

func (s *Service) DeleteRole(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get role: %w", err)
	}

	if !role.CanBeDeleted {
		return errors.StateConflict(errors.RoleProtected, "role is protected and cannot be deleted")
	}
	if role.UserCount > 0 {
		return errors.StateConflict(errors.RoleInUse,
			fmt.Sprintf("role is assigned to %d user(s)", role.UserCount))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	s.auditor.Log(ctx, actorID, clinicOrNil(role), model.AuditActionDelete, model.AuditEntityRole, id, nil)
	return nil
}

// FindSystemRoles returns active system roles sorted by descending priority.
func (s *Service) FindSystemRoles(ctx context.Context) ([]*model.Role, error) {
	return s.repo.ListSystemRoles(ctx)
}

// FindClinicRoles returns active roles visible to a clinic: its own roles
// plus all system roles, sorted by descending priority.
func (s *Service) FindClinicRoles(ctx context.Context, clinicID uuid.UUID) ([]*model.Role, error) {
	return s.repo.ListClinicRoles(ctx, clinicID)
}

// AddPermission attaches a permission to a role after validating the grant
// against the catalog's dependency and conflict constraints. An existing
// entry is refreshed in place rather than duplicated.
func (s *Service) AddPermission(ctx context.Context, roleID uuid.UUID, permissionName string, grantedBy *uuid.UUID) error {
	role, err := s.repo.Get(ctx, roleID)
	if err != nil {
		return fmt.Errorf("failed to get role: %w", err)
	}

	perm, err := s.catalog.GetPermissionByName(ctx, permissionName)
	if err != nil {
		return fmt.Errorf("failed to resolve permission %q: %w", permissionName, err)
	}

	check := s.catalog.CanBeGranted(perm, role.GrantedNames())
	if !check.CanGrant {
		if len(perm.DependsOn) > 0 && !hasAll(role.GrantedNames(), perm.DependsOn) {
			return &errors.DependencyError{Missing: missingFrom(role.GrantedNames(), perm.DependsOn)}
		}
		return &errors.ConflictError{Conflicting: presentIn(role.GrantedNames(), perm.ConflictsWith)}
	}

	now := time.Now()
	updated := false
	for i := range role.Permissions {
		if role.Permissions[i].PermissionName == permissionName {
			role.Permissions[i].Granted = true
			role.Permissions[i].GrantedAt = now
			role.Permissions[i].GrantedBy = grantedBy
			updated = true
			break
		}
	}
	if !updated {
		role.Permissions = append(role.Permissions, model.PermissionGrant{
			PermissionName: permissionName,
			Granted:        true,
			GrantedAt:      now,
			GrantedBy:      grantedBy,
		})
	}

	if err := s.repo.Update(ctx, role); err != nil {
		return fmt.Errorf("failed to persist role grants: %w", err)
	}

	s.auditor.Log(ctx, actorOrNil(grantedBy), clinicOrNil(role), model.AuditActionGrant, model.AuditEntityRole, roleID, &audit.LogOptions{
		Changes: map[string]interface{}{"permission_name": permissionName},
	})
	return nil
}

// RemovePermission drops the named grant from the role's list.
func (s *Service) RemovePermission(ctx context.Context, roleID uuid.UUID, permissionName string, actorID uuid.UUID) error {
	role, err := s.repo.Get(ctx, roleID)
	if err != nil {
		return fmt.Errorf("failed to get role: %w", err)
	}

	filtered := role.Permissions[:0]
	for _, g := range role.Permissions {
		if g.PermissionName != permissionName {
			filtered = append(filtered, g)
		}
	}
	role.Permissions = filtered

	if err := s.repo.Update(ctx, role); err != nil {
		return fmt.Errorf("failed to persist role grants: %w", err)
	}

	s.auditor.Log(ctx, actorID, clinicOrNil(role), model.AuditActionRevoke, model.AuditEntityRole, roleID, &audit.LogOptions{
		Changes: map[string]interface{}{"permission_name": permissionName},
	})
	return nil
}

// HasPermission returns the granted flag of the matching entry, or false if
// the role carries no such grant.
func (s *Service) HasPermission(role *model.Role, permissionName string) bool {
	for _, g := range role.Permissions {
		if g.PermissionName == permissionName {
			return g.Granted
		}
	}
	return false
}

// GetEffectivePermissions returns the union of the role's own granted
// permissions and everything inherited transitively through parent roles.
// A parent that no longer resolves contributes nothing. The walk is
// cycle-guarded so corrupt data cannot recurse forever.
func (s *Service) GetEffectivePermissions(ctx context.Context, role *model.Role) ([]string, error) {
	set := make(map[string]bool)
	s.collectEffective(ctx, role, set, map[uuid.UUID]bool{})

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Service) collectEffective(ctx context.Context, role *model.Role, set map[string]bool, visited map[uuid.UUID]bool) {
	if visited[role.ID] {
		return
	}
	visited[role.ID] = true

	for _, g := range role.Permissions {
		if g.Granted {
			set[g.PermissionName] = true
		}
	}

	if role.InheritsFrom == nil {
		return
	}
	parent, err := s.repo.Get(ctx, *role.InheritsFrom)
	if err != nil {
		// Deleted or unreadable parents contribute nothing.
		return
	}
	s.collectEffective(ctx, parent, set, visited)
}

// CopyFromRole replaces the target role's grant list wholesale with the
// source role's effective (inheritance-expanded) permission set, each entry
// freshly stamped.
func (s *Service) CopyFromRole(ctx context.Context, targetID, sourceID uuid.UUID, grantedBy *uuid.UUID) error {
	target, err := s.repo.Get(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to get target role: %w", err)
	}

	source, err := s.repo.Get(ctx, sourceID)
	if err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) && appErr.Code == errors.ErrNotFound {
			return errors.StateConflict(errors.SourceNotFound, "source role not found")
		}
		return fmt.Errorf("failed to get source role: %w", err)
	}

	effective, err := s.GetEffectivePermissions(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to resolve source permissions: %w", err)
	}

	now := time.Now()
	grants := make(model.GrantList, 0, len(effective))
	for _, name := range effective {
		grants = append(grants, model.PermissionGrant{
			PermissionName: name,
			Granted:        true,
			GrantedAt:      now,
			GrantedBy:      grantedBy,
		})
	}
	target.Permissions = grants

	if err := s.repo.Update(ctx, target); err != nil {
		return fmt.Errorf("failed to persist copied grants: %w", err)
	}

	s.auditor.Log(ctx, actorOrNil(grantedBy), clinicOrNil(target), model.AuditActionUpdate, model.AuditEntityRole, targetID, &audit.LogOptions{
		Changes: map[string]interface{}{"copied_from": sourceID, "permission_count": len(grants)},
	})
	return nil
}

func clinicOrNil(role *model.Role) uuid.UUID {
	if role.ClinicID != nil {
		return *role.ClinicID
	}
	return uuid.Nil
}

func actorOrNil(id *uuid.UUID) uuid.UUID {
	if id != nil {
		return *id
	}
	return uuid.Nil
}

func hasAll(granted []string, required []string) bool {
	return len(missingFrom(granted, required)) == 0
}

func missingFrom(granted []string, required []string) []string {
	set := make(map[string]bool, len(granted))
	for _, g := range granted {
		set[g] = true
	}
	var missing []string
	for _, r := range required {
		if !set[r] {
			missing = append(missing, r)
		}
	}
	return missing
}

func presentIn(granted []string, conflicts []string) []string {
	set := make(map[string]bool, len(granted))
	for _, g := range granted {
		set[g] = true
	}
	var present []string
	for _, c := range conflicts {
		if set[c] {
			present = append(present, c)
		}
	}
	return present
}
