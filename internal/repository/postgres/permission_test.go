package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/pkg/errors"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func permissionRows(p *model.Permission) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "display_name", "description", "module", "sub_module",
		"action", "level", "is_system_permission", "depends_on",
		"conflicts_with", "applies_to_clinic", "created_at", "updated_at",
	}).AddRow(
		p.ID, p.Name, p.DisplayName, p.Description, p.Module, p.SubModule,
		p.Action, p.Level, p.IsSystemPermission, "{}",
		"{}", p.AppliesToClinic, p.CreatedAt, p.UpdatedAt,
	)
}

func TestPermissionGetByName(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPermissionRepository(db)

		want := &model.Permission{
			Name:               "patients.view",
			DisplayName:        "View Patients",
			Module:             model.ModulePatients,
			Action:             model.ActionView,
			Level:              model.LevelView,
			IsSystemPermission: true,
			DependsOn:          pq.StringArray{},
			ConflictsWith:      pq.StringArray{},
			AppliesToClinic:    true,
			CreatedAt:          time.Now(),
			UpdatedAt:          time.Now(),
		}
		want.ID = uuid.New()

		mock.ExpectQuery(`(?s)SELECT.*FROM permissions.*WHERE name = \$1`).
			WithArgs("patients.view").
			WillReturnRows(permissionRows(want))

		got, err := repo.GetByName(ctx, "patients.view")
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, "patients.view", got.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing maps to not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPermissionRepository(db)

		mock.ExpectQuery(`(?s)SELECT.*FROM permissions.*WHERE name = \$1`).
			WithArgs("ghosts.view").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByName(ctx, "ghosts.view")
		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, errors.ErrNotFound, appErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPermissionUpsert(t *testing.T) {
	ctx := context.Background()

	perm := func() *model.Permission {
		return &model.Permission{
			Name:               "patients.view",
			DisplayName:        "View Patients",
			Module:             model.ModulePatients,
			Action:             model.ActionView,
			Level:              model.LevelView,
			IsSystemPermission: true,
			AppliesToClinic:    true,
		}
	}

	t.Run("insert reports created", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPermissionRepository(db)

		mock.ExpectQuery(`(?s)INSERT INTO permissions.*ON CONFLICT \(name\) DO UPDATE SET`).
			WillReturnRows(sqlmock.NewRows([]string{"created"}).AddRow(true))

		created, err := repo.Upsert(ctx, perm())
		require.NoError(t, err)
		assert.True(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict reports updated", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPermissionRepository(db)

		mock.ExpectQuery(`(?s)INSERT INTO permissions.*ON CONFLICT \(name\) DO UPDATE SET`).
			WillReturnRows(sqlmock.NewRows([]string{"created"}).AddRow(false))

		created, err := repo.Upsert(ctx, perm())
		require.NoError(t, err)
		assert.False(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPermissionUpdateMissingRow(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewPermissionRepository(db)

	mock.ExpectExec(`UPDATE permissions`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	p := &model.Permission{Name: "patients.view", Module: model.ModulePatients, Level: model.LevelView}
	err := repo.Update(ctx, p)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrNotFound, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
