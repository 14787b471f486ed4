package access

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/service/audit"
	permissionService "github.com/clinicore/clinic-api/internal/service/permission"
	roleService "github.com/clinicore/clinic-api/internal/service/role"
	"github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/logger"
)

type fakeMembershipRepo struct {
	byPair map[string]*model.UserClinicMembership
}

func pairKey(userID, clinicID uuid.UUID) string {
	return userID.String() + "/" + clinicID.String()
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{byPair: make(map[string]*model.UserClinicMembership)}
}

func (f *fakeMembershipRepo) put(m *model.UserClinicMembership) {
	f.byPair[pairKey(m.UserID, m.ClinicID)] = m
}

func (f *fakeMembershipRepo) Create(_ context.Context, m *model.UserClinicMembership) error {
	f.put(m)
	return nil
}

func (f *fakeMembershipRepo) Get(_ context.Context, id uuid.UUID) (*model.UserClinicMembership, error) {
	for _, m := range f.byPair {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, errors.NotFound("membership", nil)
}

func (f *fakeMembershipRepo) GetByUserAndClinic(_ context.Context, userID, clinicID uuid.UUID) (*model.UserClinicMembership, error) {
	if m, ok := f.byPair[pairKey(userID, clinicID)]; ok {
		return m, nil
	}
	return nil, errors.NotFound("membership", nil)
}

func (f *fakeMembershipRepo) Update(_ context.Context, m *model.UserClinicMembership) error {
	f.put(m)
	return nil
}

func (f *fakeMembershipRepo) Exists(_ context.Context, userID, clinicID uuid.UUID) (bool, error) {
	_, ok := f.byPair[pairKey(userID, clinicID)]
	return ok, nil
}

func (f *fakeMembershipRepo) ListByClinic(_ context.Context, _ uuid.UUID) ([]*model.UserClinicMembership, error) {
	return nil, nil
}

func (f *fakeMembershipRepo) ListByUser(_ context.Context, _ uuid.UUID) ([]*model.UserClinicMembership, error) {
	return nil, nil
}

func (f *fakeMembershipRepo) ListBySchemaVersion(_ context.Context, _ int) ([]*model.UserClinicMembership, error) {
	return nil, nil
}

type fakeRoleRepo struct {
	roles map[uuid.UUID]*model.Role
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{roles: make(map[uuid.UUID]*model.Role)}
}

func (f *fakeRoleRepo) Create(_ context.Context, role *model.Role) error {
	f.roles[role.ID] = role
	return nil
}

func (f *fakeRoleRepo) Get(_ context.Context, id uuid.UUID) (*model.Role, error) {
	if role, ok := f.roles[id]; ok {
		return role, nil
	}
	return nil, errors.NotFound("role", nil)
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
func (f *fakeRoleRepo) AdjustUserCount(_ context.Context, _ uuid.UUID, _ int) error {
	return nil
}
func (f *fakeRoleRepo) Upsert(_ context.Context, _ *model.Role) (bool, error) {
	return false, nil
}

type fakePermissionRepo struct{}

func (fakePermissionRepo) Create(_ context.Context, _ *model.Permission) error { return nil }
func (fakePermissionRepo) Get(_ context.Context, _ uuid.UUID) (*model.Permission, error) {
	return nil, errors.NotFound("permission", nil)
}
func (fakePermissionRepo) GetByName(_ context.Context, _ string) (*model.Permission, error) {
	return nil, errors.NotFound("permission", nil)
}
func (fakePermissionRepo) Update(_ context.Context, _ *model.Permission) error { return nil }
func (fakePermissionRepo) Delete(_ context.Context, _ uuid.UUID) error         { return nil }
func (fakePermissionRepo) List(_ context.Context) ([]*model.Permission, error) { return nil, nil }
func (fakePermissionRepo) ListByModule(_ context.Context, _ model.PermissionModule, _ string) ([]*model.Permission, error) {
	return nil, nil
}
func (fakePermissionRepo) ListSystem(_ context.Context) ([]*model.Permission, error) {
	return nil, nil
}
func (fakePermissionRepo) ListByNames(_ context.Context, _ []string) ([]*model.Permission, error) {
	return nil, nil
}
func (fakePermissionRepo) Upsert(_ context.Context, _ *model.Permission) (bool, error) {
	return false, nil
}

type fakeAuditRepo struct{}

func (fakeAuditRepo) Create(_ context.Context, _ *model.AuditLog) error { return nil }
func (fakeAuditRepo) List(_ context.Context, _ map[string]interface{}) ([]*model.AuditLog, error) {
	return nil, nil
}
func (fakeAuditRepo) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fixture struct {
	resolver    *Resolver
	memberships *fakeMembershipRepo
	roles       *fakeRoleRepo
}

func newFixture() *fixture {
	memberships := newFakeMembershipRepo()
	roles := newFakeRoleRepo()
	log := logger.NewLogger(nil)
	auditor := audit.NewService(fakeAuditRepo{}, log)
	registry := roleService.NewService(roles, permissionService.NewService(fakePermissionRepo{}), auditor)
	return &fixture{
		resolver:    NewResolver(memberships, roles, registry, log),
		memberships: memberships,
		roles:       roles,
	}
}

func (f *fixture) addRole(name string, parent *uuid.UUID, grants ...string) *model.Role {
	var list model.GrantList
	for _, g := range grants {
		list = append(list, model.PermissionGrant{PermissionName: g, Granted: true})
	}
	role := &model.Role{Name: name, IsActive: true, InheritsFrom: parent, Permissions: list}
	role.ID = uuid.New()
	f.roles.roles[role.ID] = role
	return role
}

func (f *fixture) addMembership(roles []*model.Role, legacyPerms ...string) *model.UserClinicMembership {
	m := &model.UserClinicMembership{
		UserID:        uuid.New(),
		ClinicID:      uuid.New(),
		IsActive:      true,
		SchemaVersion: model.MembershipSchemaRBAC,
		Permissions:   pq.StringArray(legacyPerms),
	}
	m.ID = uuid.New()
	for _, role := range roles {
		m.Roles = append(m.Roles, model.RoleAssignment{RoleID: role.ID, RoleName: role.Name})
	}
	f.memberships.put(m)
	return m
}

func TestEffectivePermissions(t *testing.T) {
	ctx := context.Background()

	t.Run("union across roles and inheritance", func(t *testing.T) {
		f := newFixture()
		doctor := f.addRole("doctor", nil, "patients.view", "prescriptions.create")
		nurse := f.addRole("nurse", &doctor.ID, "inventory.view")
		accountant := f.addRole("accountant", nil, "invoices.view")
		m := f.addMembership([]*model.Role{nurse, accountant})

		effective, err := f.resolver.EffectivePermissions(ctx, m)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"inventory.view", "invoices.view", "patients.view", "prescriptions.create",
		}, effective)
	})

	t.Run("legacy flat permissions merged in", func(t *testing.T) {
		f := newFixture()
		staff := f.addRole("staff", nil, "appointments.view")
		m := f.addMembership([]*model.Role{staff}, "reports.view", "appointments.view")

		effective, err := f.resolver.EffectivePermissions(ctx, m)
		require.NoError(t, err)
		assert.Equal(t, []string{"appointments.view", "reports.view"}, effective)
	})

	t.Run("stale role assignment skipped", func(t *testing.T) {
		f := newFixture()
		staff := f.addRole("staff", nil, "appointments.view")
		m := f.addMembership([]*model.Role{staff})
		m.Roles = append(m.Roles, model.RoleAssignment{RoleID: uuid.New(), RoleName: "deleted_role"})

		effective, err := f.resolver.EffectivePermissions(ctx, m)
		require.NoError(t, err)
		assert.Equal(t, []string{"appointments.view"}, effective)
	})

	t.Run("no roles no legacy permissions", func(t *testing.T) {
		f := newFixture()
		m := f.addMembership(nil)

		effective, err := f.resolver.EffectivePermissions(ctx, m)
		require.NoError(t, err)
		assert.Empty(t, effective)
	})
}

func TestGetActiveMembership(t *testing.T) {
	ctx := context.Background()

	t.Run("inactive membership is not found", func(t *testing.T) {
		f := newFixture()
		m := f.addMembership(nil)
		m.IsActive = false

		_, err := f.resolver.GetActiveMembership(ctx, m.UserID, m.ClinicID)
		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, errors.ErrNotFound, appErr.Code)
	})

	t.Run("active membership returned", func(t *testing.T) {
		f := newFixture()
		m := f.addMembership(nil)

		got, err := f.resolver.GetActiveMembership(ctx, m.UserID, m.ClinicID)
		require.NoError(t, err)
		assert.Equal(t, m.ID, got.ID)
	})
}

func TestHasPermission(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	doctor := f.addRole("doctor", nil, "patients.view")
	m := f.addMembership([]*model.Role{doctor})

	t.Run("held permission", func(t *testing.T) {
		ok, err := f.resolver.HasPermission(ctx, m.UserID, m.ClinicID, "patients.view")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("missing permission", func(t *testing.T) {
		ok, err := f.resolver.HasPermission(ctx, m.UserID, m.ClinicID, "patients.delete")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no membership is false not error", func(t *testing.T) {
		ok, err := f.resolver.HasPermission(ctx, uuid.New(), m.ClinicID, "patients.view")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRoleHelpers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	admin := f.addRole(model.RoleAdmin, nil)
	staff := f.addRole("staff", nil)

	adminMember := f.addMembership([]*model.Role{admin})
	staffMember := f.addMembership([]*model.Role{staff})

	assert.True(t, f.resolver.IsAdmin(adminMember))
	assert.False(t, f.resolver.IsAdmin(staffMember))

	assert.Equal(t, []string{"staff"}, f.resolver.EffectiveRoles(staffMember))

	ok, err := f.resolver.HasRole(ctx, staffMember.UserID, staffMember.ClinicID, "staff")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.resolver.HasRole(ctx, staffMember.UserID, staffMember.ClinicID, model.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)
}
