package access

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	roleService "github.com/clinicore/clinic-api/internal/service/role"
	"github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/logger"
)

// Resolver computes effective permission and role sets for a membership.
// Resolution is a pure function of current role, permission and membership
// state: every check re-walks the inheritance chain. Trees are shallow and
// memberships are read far more often than written, so no cache sits here.
type Resolver struct {
	memberships repository.MembershipRepository
	roles       repository.RoleRepository
	registry    *roleService.Service
	logger      *logger.Logger
}

func NewResolver(
	memberships repository.MembershipRepository,
	roles repository.RoleRepository,
	registry *roleService.Service,
	logger *logger.Logger,
) *Resolver {
	return &Resolver{
		memberships: memberships,
		roles:       roles,
		registry:    registry,
		logger:      logger,
	}
}

// GetActiveMembership loads the membership and rejects inactive ones. No
// permission check can succeed without an active membership.
func (r *Resolver) GetActiveMembership(ctx context.Context, userID, clinicID uuid.UUID) (*model.UserClinicMembership, error) {
	m, err := r.memberships.GetByUserAndClinic(ctx, userID, clinicID)
	if err != nil {
		return nil, err
	}
	if !m.IsActive {
		return nil, errors.NotFound("active membership", nil)
	}
	return m, nil
}

// EffectivePermissions returns the union of permissions granted through the
// membership's assigned roles (each resolved with its own inheritance chain)
// and any legacy flat permission entries kept for migration-period
// compatibility.
func (r *Resolver) EffectivePermissions(ctx context.Context, m *model.UserClinicMembership) ([]string, error) {
	set := make(map[string]bool)

	for _, assignment := range m.Roles {
		role, err := r.roles.Get(ctx, assignment.RoleID)
		if err != nil {
			// A stale assignment to a deleted role contributes nothing.
			r.logger.Debug("skipping unresolvable role assignment",
				"role_id", assignment.RoleID, "membership_id", m.ID)
			continue
		}
		effective, err := r.registry.GetEffectivePermissions(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve role %s: %w", role.Name, err)
		}
		for _, name := range effective {
			set[name] = true
		}
	}

	for _, name := range m.Permissions {
		set[name] = true
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// EffectiveRoles returns the names of the membership's assigned roles.
func (r *Resolver) EffectiveRoles(m *model.UserClinicMembership) []string {
	names := make([]string, 0, len(m.Roles))
	for _, assignment := range m.Roles {
		names = append(names, assignment.RoleName)
	}
	return names
}

// IsAdmin reports whether the membership carries an admin role.
func (r *Resolver) IsAdmin(m *model.UserClinicMembership) bool {
	return m.HasRoleName(model.RoleAdmin) || m.HasRoleName(model.RoleSuperAdmin)
}

// HasPermission reports whether the user holds the named permission in the
// clinic, resolved through the same membership lookup as the middleware.
func (r *Resolver) HasPermission(ctx context.Context, userID, clinicID uuid.UUID, permissionName string) (bool, error) {
	m, err := r.GetActiveMembership(ctx, userID, clinicID)
	if err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) && appErr.Code == errors.ErrNotFound {
			return false, nil
		}
		return false, err
	}

	effective, err := r.EffectivePermissions(ctx, m)
	if err != nil {
		return false, err
	}
	for _, name := range effective {
		if name == permissionName {
			return true, nil
		}
	}
	return false, nil
}

// HasRole reports whether the user holds the named role in the clinic.
func (r *Resolver) HasRole(ctx context.Context, userID, clinicID uuid.UUID, roleName string) (bool, error) {
	m, err := r.GetActiveMembership(ctx, userID, clinicID)
	if err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) && appErr.Code == errors.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return m.HasRoleName(roleName), nil
}
