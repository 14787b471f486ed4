package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/email"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/internal/service/audit"
	"github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/logger"
)

// Service manages user-clinic memberships: the join entity that grants a
// user access to one clinic with one or more roles.
type Service struct {
	repo       repository.MembershipRepository
	roleRepo   repository.RoleRepository
	userRepo   repository.UserRepository
	clinicRepo repository.ClinicRepository
	auditor    *audit.Service
	mailer     email.Service
	logger     *logger.Logger
}

func NewService(
	repo repository.MembershipRepository,
	roleRepo repository.RoleRepository,
	userRepo repository.UserRepository,
	clinicRepo repository.ClinicRepository,
	auditor *audit.Service,
	mailer email.Service,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		roleRepo:   roleRepo,
		userRepo:   userRepo,
		clinicRepo: clinicRepo,
		auditor:    auditor,
		mailer:     mailer,
		logger:     logger,
	}
}

// Create adds a user to a clinic. At most one membership may exist per
// (user, clinic) pair; the check is a read-before-write, so two racing
// creates can still both pass it - the unique index is the backstop.
func (s *Service) Create(ctx context.Context, m *model.UserClinicMembership, actorID uuid.UUID) error {
	exists, err := s.repo.Exists(ctx, m.UserID, m.ClinicID)
	if err != nil {
		return fmt.Errorf("failed to check membership existence: %w", err)
	}
	if exists {
		return errors.StateConflict(errors.DuplicateMembership,
			"user already has a membership in this clinic")
	}

	m.IsActive = true
	if m.SchemaVersion == 0 {
		m.SchemaVersion = model.MembershipSchemaRBAC
	}

	// Pre-RBAC compatibility: a membership created without explicit
	// permissions gets the legacy defaults for its primary role name.
	if len(m.Permissions) == 0 {
		if defaults, ok := model.DefaultPermissionsByRole[s.primaryRoleName(m)]; ok {
			m.Permissions = append(m.Permissions, defaults...)
		}
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}

	for _, assignment := range m.Roles {
		if err := s.roleRepo.AdjustUserCount(ctx, assignment.RoleID, 1); err != nil {
			s.logger.Error(err, "failed to bump role user count", "role_id", assignment.RoleID)
		}
	}

	s.auditor.Log(ctx, actorID, m.ClinicID, model.AuditActionCreate, model.AuditEntityMembership, m.ID, &audit.LogOptions{
		Changes: m,
	})

	s.sendInvitation(ctx, m)
	return nil
}

func (s *Service) primaryRoleName(m *model.UserClinicMembership) string {
	for _, r := range m.Roles {
		if r.IsPrimary {
			return r.RoleName
		}
	}
	if len(m.Roles) > 0 {
		return m.Roles[0].RoleName
	}
	return model.RoleStaff
}

// sendInvitation is best-effort; a mail failure never fails the membership.
func (s *Service) sendInvitation(ctx context.Context, m *model.UserClinicMembership) {
	user, err := s.userRepo.Get(ctx, m.UserID)
	if err != nil {
		s.logger.Error(err, "failed to load user for invitation", "user_id", m.UserID)
		return
	}
	clinic, err := s.clinicRepo.Get(ctx, m.ClinicID)
	if err != nil {
		s.logger.Error(err, "failed to load clinic for invitation", "clinic_id", m.ClinicID)
		return
	}
	if err := s.mailer.SendInvitation(ctx, user.Email, user.Name, clinic.Name); err != nil {
		s.logger.Error(err, "failed to send invitation email", "user_id", m.UserID)
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.UserClinicMembership, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByUserAndClinic(ctx context.Context, userID, clinicID uuid.UUID) (*model.UserClinicMembership, error) {
	return s.repo.GetByUserAndClinic(ctx, userID, clinicID)
}

func (s *Service) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.UserClinicMembership, error) {
	return s.repo.ListByClinic(ctx, clinicID)
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.UserClinicMembership, error) {
	return s.repo.ListByUser(ctx, userID)
}

// AssignRole adds a role to the membership with assignment metadata. An
// already-assigned role is left untouched.
func (s *Service) AssignRole(ctx context.Context, membershipID, roleID uuid.UUID, isPrimary bool, assignedBy *uuid.UUID) error {
	m, err := s.repo.Get(ctx, membershipID)
	if err != nil {
		return fmt.Errorf("failed to get membership: %w", err)
	}

	role, err := s.roleRepo.Get(ctx, roleID)
	if err != nil {
		return fmt.Errorf("failed to get role: %w", err)
	}

	for _, r := range m.Roles {
		if r.RoleID == roleID {
			return nil
		}
	}

	m.Roles = append(m.Roles, model.RoleAssignment{
		RoleID:     roleID,
		RoleName:   role.Name,
		AssignedAt: time.Now(),
		AssignedBy: assignedBy,
		IsPrimary:  isPrimary,
	})
	m.SchemaVersion = model.MembershipSchemaRBAC

	if err := s.repo.Update(ctx, m); err != nil {
		return fmt.Errorf("failed to persist role assignment: %w", err)
	}

	if err := s.roleRepo.AdjustUserCount(ctx, roleID, 1); err != nil {
		s.logger.Error(err, "failed to bump role user count", "role_id", roleID)
	}

	s.auditor.Log(ctx, actorOrNil(assignedBy), m.ClinicID, model.AuditActionAssignRole, model.AuditEntityMembership, membershipID, &audit.LogOptions{
		Changes: map[string]interface{}{"role_id": roleID, "role_name": role.Name},
	})
	return nil
}

// RemoveRole drops a role from the membership.
func (s *Service) RemoveRole(ctx context.Context, membershipID, roleID uuid.UUID, actorID uuid.UUID) error {
	m, err := s.repo.Get(ctx, membershipID)
	if err != nil {
		return fmt.Errorf("failed to get membership: %w", err)
	}

	found := false
	filtered := m.Roles[:0]
	for _, r := range m.Roles {
		if r.RoleID == roleID {
			found = true
			continue
		}
		filtered = append(filtered, r)
	}
	if !found {
		return errors.NotFound("role assignment", nil)
	}
	m.Roles = filtered

	if err := s.repo.Update(ctx, m); err != nil {
		return fmt.Errorf("failed to persist role removal: %w", err)
	}

	if err := s.roleRepo.AdjustUserCount(ctx, roleID, -1); err != nil {
		s.logger.Error(err, "failed to drop role user count", "role_id", roleID)
	}

	s.auditor.Log(ctx, actorID, m.ClinicID, model.AuditActionRemoveRole, model.AuditEntityMembership, membershipID, &audit.LogOptions{
		Changes: map[string]interface{}{"role_id": roleID},
	})
	return nil
}

// Activate re-enables a deactivated membership.
func (s *Service) Activate(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error {
	return s.setActive(ctx, id, actorID, true)
}

// Deactivate disables the membership. Memberships are deactivated rather
// than hard-deleted in normal flows.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error {
	return s.setActive(ctx, id, actorID, false)
}

func (s *Service) setActive(ctx context.Context, id uuid.UUID, actorID uuid.UUID, active bool) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get membership: %w", err)
	}

	m.IsActive = active
	if err := s.repo.Update(ctx, m); err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}

	s.auditor.Log(ctx, actorID, m.ClinicID, model.AuditActionUpdate, model.AuditEntityMembership, id, &audit.LogOptions{
		Changes: map[string]interface{}{"is_active": active},
	})
	return nil
}

func actorOrNil(id *uuid.UUID) uuid.UUID {
	if id != nil {
		return *id
	}
	return uuid.Nil
}
