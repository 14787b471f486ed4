package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/service/access"
	"github.com/clinicore/clinic-api/internal/service/audit"
	permissionService "github.com/clinicore/clinic-api/internal/service/permission"
	roleService "github.com/clinicore/clinic-api/internal/service/role"
	"github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/logger"
	"github.com/clinicore/clinic-api/pkg/metrics"
)

// Shared across all tests; prometheus collectors register globally and a
// second NewMetrics with the same names would panic.
var testMetrics = metrics.NewMetrics("test", "authz")

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMembershipRepo struct {
	byPair map[string]*model.UserClinicMembership
}

func pairKey(userID, clinicID uuid.UUID) string {
	return userID.String() + "/" + clinicID.String()
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

type harness struct {
	mw          *AccessMiddleware
	memberships *fakeMembershipRepo
	roles       *fakeRoleRepo
	audits      *fakeAuditRepo
}

func newHarness() *harness {
	memberships := &fakeMembershipRepo{byPair: make(map[string]*model.UserClinicMembership)}
	roles := &fakeRoleRepo{roles: make(map[uuid.UUID]*model.Role)}
	audits := &fakeAuditRepo{}
	log := logger.NewLogger(nil)
	auditor := audit.NewService(audits, log)
	registry := roleService.NewService(roles, permissionService.NewService(fakePermissionRepo{}), auditor)
	resolver := access.NewResolver(memberships, roles, registry, log)
	return &harness{
		mw:          NewAccessMiddleware(resolver, auditor, testMetrics, log),
		memberships: memberships,
		roles:       roles,
		audits:      audits,
	}
}

func (h *harness) addRole(name string, grants ...string) *model.Role {
	var list model.GrantList
	for _, g := range grants {
		list = append(list, model.PermissionGrant{PermissionName: g, Granted: true})
	}
	role := &model.Role{Name: name, IsActive: true, Permissions: list}
	role.ID = uuid.New()
	h.roles.roles[role.ID] = role
	return role
}

func (h *harness) addMembership(userID, clinicID uuid.UUID, roles ...*model.Role) *model.UserClinicMembership {
	m := &model.UserClinicMembership{
		UserID:        userID,
		ClinicID:      clinicID,
		IsActive:      true,
		SchemaVersion: model.MembershipSchemaRBAC,
	}
	m.ID = uuid.New()
	for _, role := range roles {
		m.Roles = append(m.Roles, model.RoleAssignment{RoleID: role.ID, RoleName: role.Name})
	}
	h.memberships.put(m)
	return m
}

// serve runs one GET request through an optional identity injection, the
// gate under test, and a trivial handler.
func serve(claims *model.TokenClaims, gate gin.HandlerFunc, headers map[string]string) *httptest.ResponseRecorder {
	engine := gin.New()
	engine.GET("/protected",
		func(c *gin.Context) {
			if claims != nil {
				c.Set(ContextIdentity, claims)
			}
		},
		gate,
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true})
		},
	)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func claimsFor(userID uuid.UUID, clinicID *uuid.UUID) *model.TokenClaims {
	return &model.TokenClaims{UserID: userID, DefaultClinicID: clinicID}
}

func TestRequireAccessGates(t *testing.T) {
	t.Run("no identity", func(t *testing.T) {
		h := newHarness()
		rec := serve(nil, h.mw.RequirePermission("patients.view"), nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, CodeAuthRequired, decodeBody(t, rec)["error_code"])
	})

	t.Run("no clinic context", func(t *testing.T) {
		h := newHarness()
		rec := serve(claimsFor(uuid.New(), nil), h.mw.RequirePermission("patients.view"), nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, CodeClinicRequired, decodeBody(t, rec)["error_code"])
	})

	t.Run("malformed clinic header", func(t *testing.T) {
		h := newHarness()
		rec := serve(claimsFor(uuid.New(), nil), h.mw.RequirePermission("patients.view"),
			map[string]string{HeaderClinicID: "not-a-uuid"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, CodeClinicRequired, decodeBody(t, rec)["error_code"])
	})

	t.Run("no membership in clinic", func(t *testing.T) {
		h := newHarness()
		clinicID := uuid.New()
		rec := serve(claimsFor(uuid.New(), &clinicID), h.mw.RequirePermission("patients.view"), nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, CodeClinicAccessDenied, decodeBody(t, rec)["error_code"])
	})

	t.Run("inactive membership denied", func(t *testing.T) {
		h := newHarness()
		userID, clinicID := uuid.New(), uuid.New()
		staff := h.addRole("staff", "patients.view")
		m := h.addMembership(userID, clinicID, staff)
		m.IsActive = false

		rec := serve(claimsFor(userID, &clinicID), h.mw.RequirePermission("patients.view"), nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, CodeClinicAccessDenied, decodeBody(t, rec)["error_code"])
	})

	t.Run("held permission allowed", func(t *testing.T) {
		h := newHarness()
		userID, clinicID := uuid.New(), uuid.New()
		staff := h.addRole("staff", "patients.view")
		h.addMembership(userID, clinicID, staff)

		rec := serve(claimsFor(userID, &clinicID), h.mw.RequirePermission("patients.view"), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("header clinic overrides default", func(t *testing.T) {
		h := newHarness()
		userID := uuid.New()
		defaultClinic, headerClinic := uuid.New(), uuid.New()
		staff := h.addRole("staff", "patients.view")
		h.addMembership(userID, headerClinic, staff)

		rec := serve(claimsFor(userID, &defaultClinic), h.mw.RequirePermission("patients.view"),
			map[string]string{HeaderClinicID: headerClinic.String()})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestOperatorSemantics(t *testing.T) {
	t.Run("or passes with one of two", func(t *testing.T) {
		h := newHarness()
		userID, clinicID := uuid.New(), uuid.New()
		staff := h.addRole("staff", "patients.view")
		h.addMembership(userID, clinicID, staff)

		rec := serve(claimsFor(userID, &clinicID),
			h.mw.RequirePermissions("patients.view", "patients.edit"), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("and fails with one of two", func(t *testing.T) {
		h := newHarness()
		userID, clinicID := uuid.New(), uuid.New()
		staff := h.addRole("staff", "patients.view")
		h.addMembership(userID, clinicID, staff)

		rec := serve(claimsFor(userID, &clinicID),
			h.mw.RequireAllPermissions("patients.view", "patients.edit"), nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, CodePermissionDenied, body["error_code"])
		assert.Equal(t, "AND", body["operator"])
		assert.ElementsMatch(t, []interface{}{"patients.view", "patients.edit"}, body["required_permissions"])
		assert.ElementsMatch(t, []interface{}{"patients.view"}, body["user_permissions"])
	})

	t.Run("and passes with both", func(t *testing.T) {
		h := newHarness()
		userID, clinicID := uuid.New(), uuid.New()
		staff := h.addRole("staff", "patients.view", "patients.edit")
		h.addMembership(userID, clinicID, staff)

		rec := serve(claimsFor(userID, &clinicID),
			h.mw.RequireAllPermissions("patients.view", "patients.edit"), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("or fails with none", func(t *testing.T) {
		h := newHarness()
		userID, clinicID := uuid.New(), uuid.New()
		staff := h.addRole("staff")
		h.addMembership(userID, clinicID, staff)

		rec := serve(claimsFor(userID, &clinicID),
			h.mw.RequirePermissions("patients.view", "patients.edit"), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, CodePermissionDenied, decodeBody(t, rec)["error_code"])
	})
}

func TestAdminBypass(t *testing.T) {
	t.Run("admin role skips permission check", func(t *testing.T) {
		h := newHarness()
		userID, clinicID := uuid.New(), uuid.New()
		admin := h.addRole(model.RoleAdmin)
		h.addMembership(userID, clinicID, admin)

		rec := serve(claimsFor(userID, &clinicID), h.mw.RequirePermission("settings.manage_settings"), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("platform admin claim skips permission check", func(t *testing.T) {
		h := newHarness()
		userID, clinicID := uuid.New(), uuid.New()
		staff := h.addRole("staff")
		h.addMembership(userID, clinicID, staff)

		claims := claimsFor(userID, &clinicID)
		claims.IsAdmin = true
		rec := serve(claims, h.mw.RequirePermission("settings.manage_settings"), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bypass disabled still checks admin", func(t *testing.T) {
		h := newHarness()
		userID, clinicID := uuid.New(), uuid.New()
		admin := h.addRole(model.RoleAdmin)
		h.addMembership(userID, clinicID, admin)

		cfg := DefaultAccessConfig()
		cfg.AdminBypass = false
		cfg.Permissions = []string{"settings.manage_settings"}

		rec := serve(claimsFor(userID, &clinicID), h.mw.RequireAccess(cfg), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRoleChecks(t *testing.T) {
	t.Run("missing role denied", func(t *testing.T) {
		h := newHarness()
		userID, clinicID := uuid.New(), uuid.New()
		staff := h.addRole("staff")
		h.addMembership(userID, clinicID, staff)

		rec := serve(claimsFor(userID, &clinicID), h.mw.RequireRole("doctor"), nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, CodeRoleDenied, body["error_code"])
		assert.ElementsMatch(t, []interface{}{"doctor"}, body["required_roles"])
	})

	t.Run("any role passes with one", func(t *testing.T) {
		h := newHarness()
		userID, clinicID := uuid.New(), uuid.New()
		nurse := h.addRole("nurse")
		h.addMembership(userID, clinicID, nurse)

		rec := serve(claimsFor(userID, &clinicID), h.mw.RequireAnyRole("doctor", "nurse"), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("all roles requires every one", func(t *testing.T) {
		h := newHarness()
		userID, clinicID := uuid.New(), uuid.New()
		nurse := h.addRole("nurse")
		h.addMembership(userID, clinicID, nurse)

		rec := serve(claimsFor(userID, &clinicID), h.mw.RequireAllRoles("doctor", "nurse"), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestCustomCheck(t *testing.T) {
	t.Run("denying custom check", func(t *testing.T) {
		h := newHarness()
		userID, clinicID := uuid.New(), uuid.New()
		staff := h.addRole("staff", "patients.view")
		h.addMembership(userID, clinicID, staff)

		cfg := DefaultAccessConfig()
		cfg.CustomCheck = func(_ *gin.Context, _ *AuthContext) bool { return false }

		rec := serve(claimsFor(userID, &clinicID), h.mw.RequireAccess(cfg), nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, CodeCustomPermissionDenied, decodeBody(t, rec)["error_code"])
	})

	t.Run("panicking check is a 500 not an allow", func(t *testing.T) {
		h := newHarness()
		userID, clinicID := uuid.New(), uuid.New()
		staff := h.addRole("staff")
		h.addMembership(userID, clinicID, staff)

		cfg := DefaultAccessConfig()
		cfg.CustomCheck = func(_ *gin.Context, _ *AuthContext) bool { panic("boom") }

		rec := serve(claimsFor(userID, &clinicID), h.mw.RequireAccess(cfg), nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, CodePermissionCheckError, decodeBody(t, rec)["error_code"])
	})
}

func TestRequireAuthenticated(t *testing.T) {
	h := newHarness()

	t.Run("identity alone suffices", func(t *testing.T) {
		rec := serve(claimsFor(uuid.New(), nil), h.mw.RequireAuthenticated(), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("still rejects anonymous", func(t *testing.T) {
		rec := serve(nil, h.mw.RequireAuthenticated(), nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestDecisionsAudited(t *testing.T) {
	h := newHarness()
	userID, clinicID := uuid.New(), uuid.New()
	staff := h.addRole("staff", "patients.view")
	h.addMembership(userID, clinicID, staff)

	serve(claimsFor(userID, &clinicID), h.mw.RequirePermission("patients.view"), nil)
	serve(claimsFor(userID, &clinicID), h.mw.RequirePermission("patients.delete"), nil)

	require.Len(t, h.audits.entries, 2)
}
