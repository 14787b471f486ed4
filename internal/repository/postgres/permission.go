package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/pkg/errors"
)

const permissionColumns = `
	id, name, display_name, description, module, sub_module, action, level,
	is_system_permission, depends_on, conflicts_with, applies_to_clinic,
	created_at, updated_at
`

func (r *permissionRepository) Create(ctx context.Context, permission *model.Permission) error {
	query := `
		INSERT INTO permissions (` + permissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	permission.ID = uuid.New()
	permission.CreatedAt = time.Now()
	permission.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		permission.ID,
		permission.Name,
		permission.DisplayName,
		permission.Description,
		permission.Module,
		permission.SubModule,
		permission.Action,
		permission.Level,
		permission.IsSystemPermission,
		permission.DependsOn,
		permission.ConflictsWith,
		permission.AppliesToClinic,
		permission.CreatedAt,
		permission.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create permission: %w", err)
	}
	return nil
}

func (r *permissionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Permission, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE id = $1`

	var permission model.Permission
	err := r.db.GetContext(ctx, &permission, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("permission", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return &permission, nil
}

func (r *permissionRepository) GetByName(ctx context.Context, name string) (*model.Permission, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE name = $1`

	var permission model.Permission
	err := r.db.GetContext(ctx, &permission, query, name)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("permission", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission by name: %w", err)
	}
	return &permission, nil
}

func (r *permissionRepository) Update(ctx context.Context, permission *model.Permission) error {
	query := `
		UPDATE permissions
		SET display_name = $1, description = $2, module = $3, sub_module = $4,
			action = $5, level = $6, is_system_permission = $7, depends_on = $8,
			conflicts_with = $9, applies_to_clinic = $10, updated_at = $11
		WHERE name = $12
	`
	permission.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		permission.DisplayName,
		permission.Description,
		permission.Module,
		permission.SubModule,
		permission.Action,
		permission.Level,
		permission.IsSystemPermission,
		permission.DependsOn,
		permission.ConflictsWith,
		permission.AppliesToClinic,
		permission.UpdatedAt,
		permission.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to update permission: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("permission", nil)
	}
	return nil
}

func (r *permissionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// System permissions are not deletable through normal flows.
	query := `DELETE FROM permissions WHERE id = $1 AND is_system_permission = false`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("permission", nil)
	}
	return nil
}

func (r *permissionRepository) List(ctx context.Context) ([]*model.Permission, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions ORDER BY module, sub_module, action`

	var permissions []*model.Permission
	if err := r.db.SelectContext(ctx, &permissions, query); err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	return permissions, nil
}

func (r *permissionRepository) ListByModule(ctx context.Context, module model.PermissionModule, subModule string) ([]*model.Permission, error) {
	var query string
	var args []interface{}

	if subModule != "" {
		query = `SELECT ` + permissionColumns + `
			FROM permissions
			WHERE module = $1 AND sub_module = $2
			ORDER BY module, sub_module, action`
		args = []interface{}{module, subModule}
	} else {
		query = `SELECT ` + permissionColumns + `
			FROM permissions
			WHERE module = $1
			ORDER BY module, sub_module, action`
		args = []interface{}{module}
	}

	var permissions []*model.Permission
	if err := r.db.SelectContext(ctx, &permissions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list permissions by module: %w", err)
	}
	return permissions, nil
}

func (r *permissionRepository) ListSystem(ctx context.Context) ([]*model.Permission, error) {
	query := `SELECT ` + permissionColumns + `
		FROM permissions
		WHERE is_system_permission = true
		ORDER BY module, action`

	var permissions []*model.Permission
	if err := r.db.SelectContext(ctx, &permissions, query); err != nil {
		return nil, fmt.Errorf("failed to list system permissions: %w", err)
	}
	return permissions, nil
}

func (r *permissionRepository) ListByNames(ctx context.Context, names []string) ([]*model.Permission, error) {
	if len(names) == 0 {
		return nil, nil
	}
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE name = ANY($1) ORDER BY name`

	var permissions []*model.Permission
	if err := r.db.SelectContext(ctx, &permissions, query, pq.Array(names)); err != nil {
		return nil, fmt.Errorf("failed to list permissions by names: %w", err)
	}
	return permissions, nil
}

// Upsert inserts the permission or updates the existing row by name.
// Returns true when a new row was created.
func (r *permissionRepository) Upsert(ctx context.Context, permission *model.Permission) (bool, error) {
	query := `
		INSERT INTO permissions (` + permissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			description = EXCLUDED.description,
			module = EXCLUDED.module,
			sub_module = EXCLUDED.sub_module,
			action = EXCLUDED.action,
			level = EXCLUDED.level,
			is_system_permission = EXCLUDED.is_system_permission,
			depends_on = EXCLUDED.depends_on,
			conflicts_with = EXCLUDED.conflicts_with,
			applies_to_clinic = EXCLUDED.applies_to_clinic,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS created
	`
	permission.ID = uuid.New()
	permission.CreatedAt = time.Now()
	permission.UpdatedAt = time.Now()

	var created bool
	err := r.db.GetContext(ctx, &created, query,
		permission.ID,
		permission.Name,
		permission.DisplayName,
		permission.Description,
		permission.Module,
		permission.SubModule,
		permission.Action,
		permission.Level,
		permission.IsSystemPermission,
		permission.DependsOn,
		permission.ConflictsWith,
		permission.AppliesToClinic,
		permission.CreatedAt,
		permission.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert permission: %w", err)
	}
	return created, nil
}
