package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cohortly/attendance-api/internal/models"
)

// DepositRepository persists the append-only deposit ledger. Every
// balance change goes through applyDepositTx so the membership deposit
// and its ledger can never drift apart.
type DepositRepository struct {
	db *sqlx.DB
}

// NewDepositRepository constructs the repository.
func NewDepositRepository(db *sqlx.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

// applyDepositTx moves the membership balance and appends the matching
// ledger line inside the caller's transaction. The membership row is
// locked first so concurrent adjustments on the same membership
// serialize; no entry is ever computed against a stale balance. A zero
// amount writes nothing. Returns ErrInsufficientDeposit when a debit
// would drive the balance negative; the caller must roll back.
func applyDepositTx(ctx context.Context, tx *sqlx.Tx, membershipID string, amount int, entryType models.DepositEntryType, attendanceID *string, description string) (*models.DepositEntry, error) {
	if amount == 0 {
		return nil, nil
	}

	var balance int
	if err := tx.GetContext(ctx, &balance, `SELECT deposit FROM cohort_members WHERE id = $1 FOR UPDATE`, membershipID); err != nil {
		return nil, fmt.Errorf("lock membership %s: %w", membershipID, err)
	}

	newBalance := balance + amount
	if newBalance < 0 {
		return nil, ErrInsufficientDeposit
	}

	if _, err := tx.ExecContext(ctx, `UPDATE cohort_members SET deposit = $1 WHERE id = $2`, newBalance, membershipID); err != nil {
		return nil, fmt.Errorf("update deposit: %w", err)
	}

	entry := &models.DepositEntry{
		ID:             uuid.NewString(),
		CohortMemberID: membershipID,
		Type:           entryType,
		Amount:         amount,
		BalanceAfter:   newBalance,
		AttendanceID:   attendanceID,
		Description:    description,
		CreatedAt:      time.Now().UTC(),
	}
	const insert = `INSERT INTO deposit_entries (id, cohort_member_id, type, amount, balance_after, attendance_id, description, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, insert, entry.ID, entry.CohortMemberID, entry.Type, entry.Amount, entry.BalanceAfter, entry.AttendanceID, entry.Description, entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert deposit entry: %w", err)
	}

	return entry, nil
}

// Apply performs a standalone signed adjustment in its own transaction.
// Used for INITIAL seeding and administrative corrections that are not
// tied to an attendance write.
func (r *DepositRepository) Apply(ctx context.Context, membershipID string, amount int, entryType models.DepositEntryType, attendanceID *string, description string) (*models.DepositEntry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin deposit adjustment: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	entry, err := applyDepositTx(ctx, tx, membershipID, amount, entryType, attendanceID, description)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit deposit adjustment: %w", err)
	}
	committed = true
	return entry, nil
}

// History returns all ledger entries for a membership, oldest first.
func (r *DepositRepository) History(ctx context.Context, membershipID string) ([]models.DepositEntry, error) {
	const query = `SELECT id, cohort_member_id, type, amount, balance_after, attendance_id, description, created_at
FROM deposit_entries
WHERE cohort_member_id = $1
ORDER BY created_at ASC, id ASC`
	var entries []models.DepositEntry
	if err := r.db.SelectContext(ctx, &entries, query, membershipID); err != nil {
		return nil, fmt.Errorf("deposit history: %w", err)
	}
	return entries, nil
}
