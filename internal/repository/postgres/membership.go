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

const membershipColumns = `
	id, user_id, clinic_id, roles, permissions, is_active, schema_version,
	joined_at, created_at, updated_at
`

func (r *membershipRepository) Create(ctx context.Context, m *model.UserClinicMembership) error {
	query := `
		INSERT INTO user_clinic_memberships (` + membershipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now()
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.UserID,
		m.ClinicID,
		m.Roles,
		m.Permissions,
		m.IsActive,
		m.SchemaVersion,
		m.JoinedAt,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

func (r *membershipRepository) Get(ctx context.Context, id uuid.UUID) (*model.UserClinicMembership, error) {
	query := `SELECT ` + membershipColumns + ` FROM user_clinic_memberships WHERE id = $1`

	var m model.UserClinicMembership
	err := r.db.GetContext(ctx, &m, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("membership", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

func (r *membershipRepository) GetByUserAndClinic(ctx context.Context, userID, clinicID uuid.UUID) (*model.UserClinicMembership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM user_clinic_memberships
		WHERE user_id = $1 AND clinic_id = $2`

	var m model.UserClinicMembership
	err := r.db.GetContext(ctx, &m, query, userID, clinicID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("membership", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

func (r *membershipRepository) Update(ctx context.Context, m *model.UserClinicMembership) error {
	query := `
		UPDATE user_clinic_memberships
		SET roles = $1, permissions = $2, is_active = $3, schema_version = $4,
			updated_at = $5
		WHERE id = $6
	`
	m.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		m.Roles,
		m.Permissions,
		m.IsActive,
		m.SchemaVersion,
		m.UpdatedAt,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("membership", nil)
	}
	return nil
}

func (r *membershipRepository) Exists(ctx context.Context, userID, clinicID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM user_clinic_memberships
			WHERE user_id = $1 AND clinic_id = $2
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, clinicID); err != nil {
		return false, fmt.Errorf("failed to check membership existence: %w", err)
	}
	return exists, nil
}

func (r *membershipRepository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.UserClinicMembership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM user_clinic_memberships
		WHERE clinic_id = $1
		ORDER BY joined_at DESC`

	var memberships []*model.UserClinicMembership
	if err := r.db.SelectContext(ctx, &memberships, query, clinicID); err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return memberships, nil
}

func (r *membershipRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.UserClinicMembership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM user_clinic_memberships
		WHERE user_id = $1
		ORDER BY joined_at DESC`

	var memberships []*model.UserClinicMembership
	if err := r.db.SelectContext(ctx, &memberships, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return memberships, nil
}

func (r *membershipRepository) ListBySchemaVersion(ctx context.Context, version int) ([]*model.UserClinicMembership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM user_clinic_memberships
		WHERE schema_version = $1
		ORDER BY created_at`

	var memberships []*model.UserClinicMembership
	if err := r.db.SelectContext(ctx, &memberships, query, version); err != nil {
		return nil, fmt.Errorf("failed to list memberships by schema version: %w", err)
	}
	return memberships, nil
}
