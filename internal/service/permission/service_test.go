package permission

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/clinicore/clinic-api/internal/model"
)

func TestCanBeGranted(t *testing.T) {
	svc := NewService(nil)

	t.Run("no constraints", func(t *testing.T) {
		perm := &model.Permission{Name: "patients.view"}
		check := svc.CanBeGranted(perm, nil)
		assert.True(t, check.CanGrant)
		assert.Empty(t, check.Reason)
	})

	t.Run("missing dependency", func(t *testing.T) {
		perm := &model.Permission{
			Name:      "users.manage_permissions",
			DependsOn: pq.StringArray{"users.edit"},
		}
		check := svc.CanBeGranted(perm, []string{"users.view"})
		assert.False(t, check.CanGrant)
		assert.Equal(t, "Missing required permissions: users.edit", check.Reason)
	})

	t.Run("dependency satisfied", func(t *testing.T) {
		perm := &model.Permission{
			Name:      "users.manage_permissions",
			DependsOn: pq.StringArray{"users.edit"},
		}
		check := svc.CanBeGranted(perm, []string{"users.view", "users.edit"})
		assert.True(t, check.CanGrant)
	})

	t.Run("multiple missing dependencies listed", func(t *testing.T) {
		perm := &model.Permission{
			Name:      "reports.export",
			DependsOn: pq.StringArray{"reports.view", "patients.view"},
		}
		check := svc.CanBeGranted(perm, nil)
		assert.False(t, check.CanGrant)
		assert.Equal(t, "Missing required permissions: reports.view, patients.view", check.Reason)
	})

	t.Run("conflict blocks grant", func(t *testing.T) {
		perm := &model.Permission{
			Name:          "payments.refund",
			ConflictsWith: pq.StringArray{"payments.create"},
		}
		check := svc.CanBeGranted(perm, []string{"payments.view", "payments.create"})
		assert.False(t, check.CanGrant)
		assert.Equal(t, "Conflicts with existing permissions: payments.create", check.Reason)
	})

	t.Run("conflict absent allows grant", func(t *testing.T) {
		perm := &model.Permission{
			Name:          "payments.refund",
			ConflictsWith: pq.StringArray{"payments.create"},
		}
		check := svc.CanBeGranted(perm, []string{"payments.view"})
		assert.True(t, check.CanGrant)
	})

	t.Run("dependencies checked before conflicts", func(t *testing.T) {
		perm := &model.Permission{
			Name:          "invoices.approve",
			DependsOn:     pq.StringArray{"invoices.view"},
			ConflictsWith: pq.StringArray{"invoices.create"},
		}
		check := svc.CanBeGranted(perm, []string{"invoices.create"})
		assert.False(t, check.CanGrant)
		assert.Equal(t, "Missing required permissions: invoices.view", check.Reason)
	})
}

func TestPermissionValidate(t *testing.T) {
	valid := model.Permission{
		Name:   "patients.view",
		Module: model.ModulePatients,
		Action: model.ActionView,
		Level:  model.LevelView,
	}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Name = "Patients.View"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Name = "patients"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Module = "spaceships"
	assert.Error(t, bad.Validate())
}
