package permission

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
)

// Service exposes the permission catalog: lookups plus the pure grant
// feasibility check used before any permission is attached to a role.
type Service struct {
	repo repository.PermissionRepository
}

func NewService(repo repository.PermissionRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListPermissions(ctx context.Context) ([]*model.Permission, error) {
	return s.repo.List(ctx)
}

func (s *Service) GetPermission(ctx context.Context, id uuid.UUID) (*model.Permission, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetPermissionByName(ctx context.Context, name string) (*model.Permission, error) {
	return s.repo.GetByName(ctx, name)
}

// FindByModule returns catalog entries for a module, optionally narrowed to a
// sub-module, sorted by (module, sub_module, action).
func (s *Service) FindByModule(ctx context.Context, module model.PermissionModule, subModule string) ([]*model.Permission, error) {
	perms, err := s.repo.ListByModule(ctx, module, subModule)
	if err != nil {
		return nil, fmt.Errorf("failed to find permissions by module: %w", err)
	}
	return perms, nil
}

// FindSystemPermissions returns all system permissions sorted by (module, action).
func (s *Service) FindSystemPermissions(ctx context.Context) ([]*model.Permission, error) {
	perms, err := s.repo.ListSystem(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find system permissions: %w", err)
	}
	return perms, nil
}

// CanBeGranted evaluates the permission's dependency and conflict constraints
// against a set of already-granted permission names. Pure: no persistence.
func (s *Service) CanBeGranted(permission *model.Permission, grantedNames []string) model.GrantCheck {
	granted := make(map[string]bool, len(grantedNames))
	for _, name := range grantedNames {
		granted[name] = true
	}

	var missing []string
	for _, dep := range permission.DependsOn {
		if !granted[dep] {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return model.GrantCheck{
			CanGrant: false,
			Reason:   fmt.Sprintf("Missing required permissions: %s", strings.Join(missing, ", ")),
		}
	}

	var conflicting []string
	for _, conflict := range permission.ConflictsWith {
		if granted[conflict] {
			conflicting = append(conflicting, conflict)
		}
	}
	if len(conflicting) > 0 {
		return model.GrantCheck{
			CanGrant: false,
			Reason:   fmt.Sprintf("Conflicts with existing permissions: %s", strings.Join(conflicting, ", ")),
		}
	}

	return model.GrantCheck{CanGrant: true}
}
