package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/cohortly/attendance-api/internal/models"
)

// AdminRepository persists backoffice operator accounts.
type AdminRepository struct {
	db *sqlx.DB
}

// NewAdminRepository constructs the repository.
func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// FindByUsername loads an admin account.
func (r *AdminRepository) FindByUsername(ctx context.Context, username string) (*models.Admin, error) {
	var admin models.Admin
	const query = `SELECT id, username, password_hash, created_at FROM admins WHERE username = $1`
	if err := r.db.GetContext(ctx, &admin, query, username); err != nil {
		return nil, err
	}
	return &admin, nil
}
