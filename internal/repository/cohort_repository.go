package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cohortly/attendance-api/internal/models"
)

// CohortRepository persists cohorts and cohort memberships.
type CohortRepository struct {
	db *sqlx.DB
}

// NewCohortRepository constructs the repository.
func NewCohortRepository(db *sqlx.DB) *CohortRepository {
	return &CohortRepository{db: db}
}

// FindByGeneration resolves a cohort by its generation number. The
// active generation is configuration, threaded in by callers rather
// than held as process state.
func (r *CohortRepository) FindByGeneration(ctx context.Context, generation int) (*models.Cohort, error) {
	var cohort models.Cohort
	const query = `SELECT id, generation, name, created_at FROM cohorts WHERE generation = $1`
	if err := r.db.GetContext(ctx, &cohort, query, generation); err != nil {
		return nil, err
	}
	return &cohort, nil
}

const membershipColumns = `id, member_id, cohort_id, part_id, team_id, deposit, excuse_count`

// FindMembershipByID loads one cohort membership.
func (r *CohortRepository) FindMembershipByID(ctx context.Context, id string) (*models.CohortMember, error) {
	var cm models.CohortMember
	query := fmt.Sprintf(`SELECT %s FROM cohort_members WHERE id = $1`, membershipColumns)
	if err := r.db.GetContext(ctx, &cm, query, id); err != nil {
		return nil, err
	}
	return &cm, nil
}

// FindMembership resolves the unique (member, cohort) enrollment.
func (r *CohortRepository) FindMembership(ctx context.Context, memberID, cohortID string) (*models.CohortMember, error) {
	var cm models.CohortMember
	query := fmt.Sprintf(`SELECT %s FROM cohort_members WHERE member_id = $1 AND cohort_id = $2`, membershipColumns)
	if err := r.db.GetContext(ctx, &cm, query, memberID, cohortID); err != nil {
		return nil, err
	}
	return &cm, nil
}

// FindMembershipDetail loads a membership joined with member and
// assignment names.
func (r *CohortRepository) FindMembershipDetail(ctx context.Context, id string) (*models.CohortMemberDetail, error) {
	const query = `SELECT cm.id, cm.member_id, cm.cohort_id, cm.part_id, cm.team_id, cm.deposit, cm.excuse_count,
m.name AS member_name, c.generation, p.name AS part_name, t.name AS team_name
FROM cohort_members cm
JOIN members m ON m.id = cm.member_id
JOIN cohorts c ON c.id = cm.cohort_id
LEFT JOIN parts p ON p.id = cm.part_id
LEFT JOIN teams t ON t.id = cm.team_id
WHERE cm.id = $1`
	var detail models.CohortMemberDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CreateMembership enrolls a member into a cohort with the configured
// starting deposit and writes the INITIAL ledger entry in the same
// transaction, so the balance reconciles against the ledger from the
// very first row. The unique (member_id, cohort_id) constraint rejects
// double enrollment.
func (r *CohortRepository) CreateMembership(ctx context.Context, cm *models.CohortMember, initialDeposit int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin membership create: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	if cm.ID == "" {
		cm.ID = uuid.NewString()
	}
	cm.Deposit = initialDeposit
	cm.ExcuseCount = 0

	const insert = `INSERT INTO cohort_members (id, member_id, cohort_id, part_id, team_id, deposit, excuse_count)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, insert, cm.ID, cm.MemberID, cm.CohortID, cm.PartID, cm.TeamID, cm.Deposit, cm.ExcuseCount); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMembership
		}
		return fmt.Errorf("insert membership: %w", err)
	}

	if initialDeposit > 0 {
		const entry = `INSERT INTO deposit_entries (id, cohort_member_id, type, amount, balance_after, attendance_id, description, created_at)
VALUES ($1, $2, $3, $4, $5, NULL, $6, $7)`
		if _, err := tx.ExecContext(ctx, entry, uuid.NewString(), cm.ID, models.DepositEntryInitial, initialDeposit, initialDeposit, "initial deposit", time.Now().UTC()); err != nil {
			return fmt.Errorf("insert initial deposit entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit membership create: %w", err)
	}
	committed = true
	return nil
}

// ListMembershipsByCohort returns every enrollment of a cohort with
// member names attached.
func (r *CohortRepository) ListMembershipsByCohort(ctx context.Context, cohortID string) ([]models.CohortMemberDetail, error) {
	const query = `SELECT cm.id, cm.member_id, cm.cohort_id, cm.part_id, cm.team_id, cm.deposit, cm.excuse_count,
m.name AS member_name, c.generation, p.name AS part_name, t.name AS team_name
FROM cohort_members cm
JOIN members m ON m.id = cm.member_id
JOIN cohorts c ON c.id = cm.cohort_id
LEFT JOIN parts p ON p.id = cm.part_id
LEFT JOIN teams t ON t.id = cm.team_id
WHERE cm.cohort_id = $1
ORDER BY m.name ASC`
	var rows []models.CohortMemberDetail
	if err := r.db.SelectContext(ctx, &rows, query, cohortID); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return rows, nil
}
