package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/pkg/errors"
)

const roleColumns = `
	id, name, display_name, description, clinic_id, is_system_role, is_active,
	inherits_from, permissions, user_count, color, icon, priority,
	can_be_modified, can_be_deleted, created_at, updated_at
`

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	query := `
		INSERT INTO roles (` + roleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	role.CreatedAt = time.Now()
	role.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		role.ID,
		role.Name,
		role.DisplayName,
		role.Description,
		role.ClinicID,
		role.IsSystemRole,
		role.IsActive,
		role.InheritsFrom,
		role.Permissions,
		role.UserCount,
		role.Color,
		role.Icon,
		role.Priority,
		role.CanBeModified,
		role.CanBeDeleted,
		role.CreatedAt,
		role.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

func (r *roleRepository) Get(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`

	var role model.Role
	err := r.db.GetContext(ctx, &role, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("role", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &role, nil
}

func (r *roleRepository) GetByName(ctx context.Context, name string, clinicID *uuid.UUID) (*model.Role, error) {
	var query string
	var args []interface{}

	if clinicID != nil {
		query = `SELECT ` + roleColumns + ` FROM roles WHERE name = $1 AND clinic_id = $2`
		args = []interface{}{name, *clinicID}
	} else {
		query = `SELECT ` + roleColumns + ` FROM roles WHERE name = $1 AND clinic_id IS NULL`
		args = []interface{}{name}
	}

	var role model.Role
	err := r.db.GetContext(ctx, &role, query, args...)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("role", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role by name: %w", err)
	}
	return &role, nil
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	query := `
		UPDATE roles
		SET display_name = $1, description = $2, clinic_id = $3, is_active = $4,
			inherits_from = $5, permissions = $6, color = $7, icon = $8,
			priority = $9, can_be_modified = $10, can_be_deleted = $11,
			updated_at = $12
		WHERE id = $13
	`
	role.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		role.DisplayName,
		role.Description,
		role.ClinicID,
		role.IsActive,
		role.InheritsFrom,
		role.Permissions,
		role.Color,
		role.Icon,
		role.Priority,
		role.CanBeModified,
		role.CanBeDeleted,
		role.UpdatedAt,
		role.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("role", nil)
	}
	return nil
}

func (r *roleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM roles WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("role", nil)
	}
	return nil
}

func (r *roleRepository) ListSystemRoles(ctx context.Context) ([]*model.Role, error) {
	query := `SELECT ` + roleColumns + `
		FROM roles
		WHERE is_system_role = true AND is_active = true
		ORDER BY priority DESC`

	var roles []*model.Role
	if err := r.db.SelectContext(ctx, &roles, query); err != nil {
		return nil, fmt.Errorf("failed to list system roles: %w", err)
	}
	return roles, nil
}

func (r *roleRepository) ListClinicRoles(ctx context.Context, clinicID uuid.UUID) ([]*model.Role, error) {
	query := `SELECT ` + roleColumns + `
		FROM roles
		WHERE (clinic_id = $1 OR is_system_role = true) AND is_active = true
		ORDER BY priority DESC`

	var roles []*model.Role
	if err := r.db.SelectContext(ctx, &roles, query, clinicID); err != nil {
		return nil, fmt.Errorf("failed to list clinic roles: %w", err)
	}
	return roles, nil
}

func (r *roleRepository) AdjustUserCount(ctx context.Context, id uuid.UUID, delta int) error {
	query := `
		UPDATE roles
		SET user_count = GREATEST(user_count + $1, 0), updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, delta, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to adjust role user count: %w", err)
	}
	return nil
}

// Upsert inserts the role or updates the existing row matched by
// (name, clinic_id). Returns true when a new row was created.
func (r *roleRepository) Upsert(ctx context.Context, role *model.Role) (bool, error) {
	query := `
		INSERT INTO roles (` + roleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (name, COALESCE(clinic_id, '00000000-0000-0000-0000-000000000000'::uuid)) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			description = EXCLUDED.description,
			is_active = EXCLUDED.is_active,
			inherits_from = EXCLUDED.inherits_from,
			permissions = EXCLUDED.permissions,
			color = EXCLUDED.color,
			icon = EXCLUDED.icon,
			priority = EXCLUDED.priority,
			can_be_modified = EXCLUDED.can_be_modified,
			can_be_deleted = EXCLUDED.can_be_deleted,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS created
	`
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	role.CreatedAt = time.Now()
	role.UpdatedAt = time.Now()

	var created bool
	err := r.db.GetContext(ctx, &created, query,
		role.ID,
		role.Name,
		role.DisplayName,
		role.Description,
		role.ClinicID,
		role.IsSystemRole,
		role.IsActive,
		role.InheritsFrom,
		role.Permissions,
		role.UserCount,
		role.Color,
		role.Icon,
		role.Priority,
		role.CanBeModified,
		role.CanBeDeleted,
		role.CreatedAt,
		role.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert role: %w", err)
	}
	return created, nil
}
