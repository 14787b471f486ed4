package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/clinicore/clinic-api/internal/repository"
)

type permissionRepository struct {
	db *sqlx.DB
}

type roleRepository struct {
	db *sqlx.DB
}

type membershipRepository struct {
	db *sqlx.DB
}

type userRepository struct {
	db *sqlx.DB
}

type clinicRepository struct {
	db *sqlx.DB
}

func NewPermissionRepository(db *sqlx.DB) repository.PermissionRepository {
	return &permissionRepository{db: db}
}

func NewRoleRepository(db *sqlx.DB) repository.RoleRepository {
	return &roleRepository{db: db}
}

func NewMembershipRepository(db *sqlx.DB) repository.MembershipRepository {
	return &membershipRepository{db: db}
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func NewClinicRepository(db *sqlx.DB) repository.ClinicRepository {
	return &clinicRepository{db: db}
}
