package model

import (
	"time"
)

// Clinic is the tenant boundary. Roles and memberships scope to one clinic.
type Clinic struct {
	Base
	Name      string    `db:"name" json:"name"`
	Location  string    `db:"location" json:"location"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
