package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cohortly/attendance-api/internal/models"
)

// MemberRepository persists program members.
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository constructs the repository.
func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

const memberColumns = `id, name, email, status, created_at, updated_at`

// FindByID loads one member.
func (r *MemberRepository) FindByID(ctx context.Context, id string) (*models.Member, error) {
	var member models.Member
	query := fmt.Sprintf(`SELECT %s FROM members WHERE id = $1`, memberColumns)
	if err := r.db.GetContext(ctx, &member, query, id); err != nil {
		return nil, err
	}
	return &member, nil
}

// List returns members matching the filter along with the total count.
func (r *MemberRepository) List(ctx context.Context, filter models.MemberFilter) ([]models.Member, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM members WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, memberColumns, whereClause, size, offset)
	var members []models.Member
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM members WHERE %s`, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}
	return members, total, nil
}

// Create inserts a member.
func (r *MemberRepository) Create(ctx context.Context, member *models.Member) error {
	now := time.Now().UTC()
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	member.CreatedAt = now
	member.UpdatedAt = now
	const insert = `INSERT INTO members (id, name, email, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, insert, member.ID, member.Name, member.Email, member.Status, member.CreatedAt, member.UpdatedAt); err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// UpdateStatus transitions a member's lifecycle state. Withdrawal is a
// soft terminal state; rows are never deleted.
func (r *MemberRepository) UpdateStatus(ctx context.Context, id string, status models.MemberStatus) error {
	const update = `UPDATE members SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, update, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update member status: %w", err)
	}
	return nil
}
