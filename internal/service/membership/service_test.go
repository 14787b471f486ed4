package membership

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinic-api/internal/email"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/service/audit"
	"github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/logger"
)

type fakeMembershipRepo struct {
	byID map[uuid.UUID]*model.UserClinicMembership
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{byID: make(map[uuid.UUID]*model.UserClinicMembership)}
}

func (f *fakeMembershipRepo) Create(_ context.Context, m *model.UserClinicMembership) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	copied := *m
	f.byID[m.ID] = &copied
	return nil
}

func (f *fakeMembershipRepo) Get(_ context.Context, id uuid.UUID) (*model.UserClinicMembership, error) {
	m, ok := f.byID[id]
	if !ok {
		return nil, errors.NotFound("membership", nil)
	}
	copied := *m
	return &copied, nil
}

func (f *fakeMembershipRepo) GetByUserAndClinic(_ context.Context, userID, clinicID uuid.UUID) (*model.UserClinicMembership, error) {
	for _, m := range f.byID {
		if m.UserID == userID && m.ClinicID == clinicID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, errors.NotFound("membership", nil)
}

func (f *fakeMembershipRepo) Update(_ context.Context, m *model.UserClinicMembership) error {
	if _, ok := f.byID[m.ID]; !ok {
		return errors.NotFound("membership", nil)
	}
	copied := *m
	f.byID[m.ID] = &copied
	return nil
}

func (f *fakeMembershipRepo) Exists(_ context.Context, userID, clinicID uuid.UUID) (bool, error) {
	for _, m := range f.byID {
		if m.UserID == userID && m.ClinicID == clinicID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMembershipRepo) ListByClinic(_ context.Context, clinicID uuid.UUID) ([]*model.UserClinicMembership, error) {
	var out []*model.UserClinicMembership
	for _, m := range f.byID {
		if m.ClinicID == clinicID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMembershipRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*model.UserClinicMembership, error) {
	var out []*model.UserClinicMembership
	for _, m := range f.byID {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMembershipRepo) ListBySchemaVersion(_ context.Context, version int) ([]*model.UserClinicMembership, error) {
	var out []*model.UserClinicMembership
	for _, m := range f.byID {
		if m.SchemaVersion == version {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeRoleRepo struct {
	roles      map[uuid.UUID]*model.Role
	userCounts map[uuid.UUID]int
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{
		roles:      make(map[uuid.UUID]*model.Role),
		userCounts: make(map[uuid.UUID]int),
	}
}

func (f *fakeRoleRepo) Create(_ context.Context, role *model.Role) error {
	f.roles[role.ID] = role
	return nil
}

func (f *fakeRoleRepo) Get(_ context.Context, id uuid.UUID) (*model.Role, error) {
	role, ok := f.roles[id]
	if !ok {
		return nil, errors.NotFound("role", nil)
	}
	return role, nil
}

func (f *fakeRoleRepo) GetByName(_ context.Context, name string, _ *uuid.UUID) (*model.Role, error) {
	for _, role := range f.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return nil, errors.NotFound("role", nil)
}

func (f *fakeRoleRepo) Update(_ context.Context, _ *model.Role) error { return nil }
func (f *fakeRoleRepo) Delete(_ context.Context, _ uuid.UUID) error   { return nil }
func (f *fakeRoleRepo) ListSystemRoles(_ context.Context) ([]*model.Role, error) {
	return nil, nil
}
func (f *fakeRoleRepo) ListClinicRoles(_ context.Context, _ uuid.UUID) ([]*model.Role, error) {
	return nil, nil
}

func (f *fakeRoleRepo) AdjustUserCount(_ context.Context, id uuid.UUID, delta int) error {
	f.userCounts[id] += delta
	return nil
}

func (f *fakeRoleRepo) Upsert(_ context.Context, _ *model.Role) (bool, error) {
	return false, nil
}

type fakeUserRepo struct{ users map[uuid.UUID]*model.User }

func (f *fakeUserRepo) Create(_ context.Context, _ *model.User) error { return nil }
func (f *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, errors.NotFound("user", nil)
}
func (f *fakeUserRepo) GetByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, errors.NotFound("user", nil)
}
func (f *fakeUserRepo) Update(_ context.Context, _ *model.User) error { return nil }

type fakeClinicRepo struct{ clinics map[uuid.UUID]*model.Clinic }

func (f *fakeClinicRepo) Create(_ context.Context, _ *model.Clinic) error { return nil }
func (f *fakeClinicRepo) Get(_ context.Context, id uuid.UUID) (*model.Clinic, error) {
	if c, ok := f.clinics[id]; ok {
		return c, nil
	}
	return nil, errors.NotFound("clinic", nil)
}
func (f *fakeClinicRepo) List(_ context.Context) ([]*model.Clinic, error) { return nil, nil }

type fakeAuditRepo struct{ entries []*model.AuditLog }

func (f *fakeAuditRepo) Create(_ context.Context, entry *model.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}
func (f *fakeAuditRepo) List(_ context.Context, _ map[string]interface{}) ([]*model.AuditLog, error) {
	return f.entries, nil
}
func (f *fakeAuditRepo) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type recordingMailer struct {
	email.NoopService
	sent []string
}

func (r *recordingMailer) SendInvitation(_ context.Context, to, _, _ string) error {
	r.sent = append(r.sent, to)
	return nil
}

type fixture struct {
	svc     *Service
	repo    *fakeMembershipRepo
	roles   *fakeRoleRepo
	users   *fakeUserRepo
	clinics *fakeClinicRepo
	mailer  *recordingMailer
}

func newFixture() *fixture {
	repo := newFakeMembershipRepo()
	roles := newFakeRoleRepo()
	users := &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
	clinics := &fakeClinicRepo{clinics: make(map[uuid.UUID]*model.Clinic)}
	mailer := &recordingMailer{}
	log := logger.NewLogger(nil)
	auditor := audit.NewService(&fakeAuditRepo{}, log)
	svc := NewService(repo, roles, users, clinics, auditor, mailer, log)
	return &fixture{svc: svc, repo: repo, roles: roles, users: users, clinics: clinics, mailer: mailer}
}

func newMembership(roleName string, roleID uuid.UUID) *model.UserClinicMembership {
	m := &model.UserClinicMembership{
		UserID:   uuid.New(),
		ClinicID: uuid.New(),
		Roles: model.RoleAssignmentList{
			{RoleID: roleID, RoleName: roleName, IsPrimary: true},
		},
	}
	return m
}

func TestCreateMembership(t *testing.T) {
	ctx := context.Background()
	actor := uuid.New()

	t.Run("duplicate pair rejected", func(t *testing.T) {
		f := newFixture()
		m := newMembership(model.RoleNurse, uuid.New())
		require.NoError(t, f.svc.Create(ctx, m, actor))

		dup := &model.UserClinicMembership{UserID: m.UserID, ClinicID: m.ClinicID}
		err := f.svc.Create(ctx, dup, actor)

		var scErr *errors.StateConflictError
		require.ErrorAs(t, err, &scErr)
		assert.Equal(t, errors.DuplicateMembership, scErr.Reason)
	})

	t.Run("same user in another clinic allowed", func(t *testing.T) {
		f := newFixture()
		m := newMembership(model.RoleNurse, uuid.New())
		require.NoError(t, f.svc.Create(ctx, m, actor))

		other := &model.UserClinicMembership{UserID: m.UserID, ClinicID: uuid.New()}
		assert.NoError(t, f.svc.Create(ctx, other, actor))
	})

	t.Run("legacy defaults applied when no explicit permissions", func(t *testing.T) {
		f := newFixture()
		m := newMembership(model.RoleDoctor, uuid.New())
		require.NoError(t, f.svc.Create(ctx, m, actor))

		stored, err := f.repo.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, model.DefaultPermissionsByRole[model.RoleDoctor], []string(stored.Permissions))
	})

	t.Run("explicit permissions kept as given", func(t *testing.T) {
		f := newFixture()
		m := newMembership(model.RoleDoctor, uuid.New())
		m.Permissions = []string{"patients.view"}
		require.NoError(t, f.svc.Create(ctx, m, actor))

		stored, err := f.repo.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"patients.view"}, []string(stored.Permissions))
	})

	t.Run("new membership is active with current schema", func(t *testing.T) {
		f := newFixture()
		m := newMembership(model.RoleStaff, uuid.New())
		require.NoError(t, f.svc.Create(ctx, m, actor))

		stored, err := f.repo.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsActive)
		assert.Equal(t, model.MembershipSchemaRBAC, stored.SchemaVersion)
	})

	t.Run("role user counts bumped", func(t *testing.T) {
		f := newFixture()
		roleID := uuid.New()
		m := newMembership(model.RoleNurse, roleID)
		require.NoError(t, f.svc.Create(ctx, m, actor))
		assert.Equal(t, 1, f.roles.userCounts[roleID])
	})

	t.Run("invitation sent when user and clinic resolve", func(t *testing.T) {
		f := newFixture()
		m := newMembership(model.RoleStaff, uuid.New())
		user := &model.User{Email: "dr@example.com", Name: "Dr. Example"}
		user.ID = m.UserID
		clinic := &model.Clinic{Name: "Downtown Clinic"}
		clinic.ID = m.ClinicID
		f.users.users[m.UserID] = user
		f.clinics.clinics[m.ClinicID] = clinic

		require.NoError(t, f.svc.Create(ctx, m, actor))
		assert.Equal(t, []string{"dr@example.com"}, f.mailer.sent)
	})

	t.Run("mail lookup failure does not fail the create", func(t *testing.T) {
		f := newFixture()
		m := newMembership(model.RoleStaff, uuid.New())
		assert.NoError(t, f.svc.Create(ctx, m, actor))
		assert.Empty(t, f.mailer.sent)
	})
}

func TestAssignRole(t *testing.T) {
	ctx := context.Background()
	actor := uuid.New()

	setup := func(t *testing.T) (*fixture, *model.UserClinicMembership, *model.Role) {
		f := newFixture()
		role := &model.Role{Name: "doctor"}
		role.ID = uuid.New()
		require.NoError(t, f.roles.Create(ctx, role))

		m := newMembership(model.RoleStaff, uuid.New())
		require.NoError(t, f.svc.Create(ctx, m, actor))
		return f, m, role
	}

	t.Run("adds assignment with metadata", func(t *testing.T) {
		f, m, role := setup(t)
		require.NoError(t, f.svc.AssignRole(ctx, m.ID, role.ID, false, &actor))

		stored, err := f.repo.Get(ctx, m.ID)
		require.NoError(t, err)
		require.Len(t, stored.Roles, 2)
		assignment := stored.Roles[1]
		assert.Equal(t, role.ID, assignment.RoleID)
		assert.Equal(t, "doctor", assignment.RoleName)
		assert.Equal(t, &actor, assignment.AssignedBy)
		assert.Equal(t, 1, f.roles.userCounts[role.ID])
	})

	t.Run("already assigned role is a no-op", func(t *testing.T) {
		f, m, role := setup(t)
		require.NoError(t, f.svc.AssignRole(ctx, m.ID, role.ID, false, &actor))
		require.NoError(t, f.svc.AssignRole(ctx, m.ID, role.ID, false, &actor))

		stored, err := f.repo.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Roles, 2)
		assert.Equal(t, 1, f.roles.userCounts[role.ID])
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		f, m, _ := setup(t)
		err := f.svc.AssignRole(ctx, m.ID, uuid.New(), false, &actor)
		assert.Error(t, err)
	})
}

func TestRemoveRole(t *testing.T) {
	ctx := context.Background()
	actor := uuid.New()

	t.Run("removes assignment and drops count", func(t *testing.T) {
		f := newFixture()
		role := &model.Role{Name: "doctor"}
		role.ID = uuid.New()
		require.NoError(t, f.roles.Create(ctx, role))

		m := newMembership("doctor", role.ID)
		require.NoError(t, f.svc.Create(ctx, m, actor))
		require.NoError(t, f.svc.RemoveRole(ctx, m.ID, role.ID, actor))

		stored, err := f.repo.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Roles)
		assert.Equal(t, 0, f.roles.userCounts[role.ID])
	})

	t.Run("absent assignment is not found", func(t *testing.T) {
		f := newFixture()
		m := newMembership(model.RoleStaff, uuid.New())
		require.NoError(t, f.svc.Create(ctx, m, actor))

		err := f.svc.RemoveRole(ctx, m.ID, uuid.New(), actor)
		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, errors.ErrNotFound, appErr.Code)
	})
}

func TestActivation(t *testing.T) {
	ctx := context.Background()
	actor := uuid.New()
	f := newFixture()

	m := newMembership(model.RoleStaff, uuid.New())
	require.NoError(t, f.svc.Create(ctx, m, actor))

	require.NoError(t, f.svc.Deactivate(ctx, m.ID, actor))
	stored, err := f.repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	require.NoError(t, f.svc.Activate(ctx, m.ID, actor))
	stored, err = f.repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
}
