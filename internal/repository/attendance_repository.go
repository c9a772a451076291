package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cohortly/attendance-api/internal/models"
)

// AttendanceRepository persists attendance records. The write paths
// that carry monetary or quota effects are composite transactions: the
// attendance row, the excuse-count change, and the ledger line commit
// together or not at all.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, session_id, member_id, qr_token_id, status, late_minutes, penalty_amount, reason, checked_in_at, created_at, updated_at`

// FindByID loads one attendance record.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	var att models.Attendance
	query := fmt.Sprintf(`SELECT %s FROM attendances WHERE id = $1`, attendanceColumns)
	if err := r.db.GetContext(ctx, &att, query, id); err != nil {
		return nil, err
	}
	return &att, nil
}

// ExistsBySessionAndMember reports whether the pair already produced a
// record. The unique constraint on (session_id, member_id) remains the
// backstop for concurrent writers.
func (r *AttendanceRepository) ExistsBySessionAndMember(ctx context.Context, sessionID, memberID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM attendances WHERE session_id = $1 AND member_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, sessionID, memberID); err != nil {
		return false, fmt.Errorf("attendance exists check: %w", err)
	}
	return exists, nil
}

// ListByMember returns a member's attendance records, newest session
// first.
func (r *AttendanceRepository) ListByMember(ctx context.Context, memberID string) ([]models.Attendance, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendances WHERE member_id = $1 ORDER BY created_at DESC`, attendanceColumns)
	var rows []models.Attendance
	if err := r.db.SelectContext(ctx, &rows, query, memberID); err != nil {
		return nil, fmt.Errorf("list attendances by member: %w", err)
	}
	return rows, nil
}

// ListBySession returns all records for a session.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Attendance, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendances WHERE session_id = $1 ORDER BY created_at ASC`, attendanceColumns)
	var rows []models.Attendance
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("list attendances by session: %w", err)
	}
	return rows, nil
}

// ListBySessionWithMembers returns a session's records joined with the
// member names, ordered by name for report output.
func (r *AttendanceRepository) ListBySessionWithMembers(ctx context.Context, sessionID string) ([]models.AttendanceWithMember, error) {
	const query = `SELECT a.id, a.session_id, a.member_id, a.qr_token_id, a.status, a.late_minutes, a.penalty_amount, a.reason, a.checked_in_at, a.created_at, a.updated_at, m.name AS member_name
FROM attendances a
JOIN members m ON m.id = a.member_id
WHERE a.session_id = $1
ORDER BY m.name ASC`
	var rows []models.AttendanceWithMember
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("list attendances with members: %w", err)
	}
	return rows, nil
}

// CreateWithLedger inserts the attendance record and, when the record
// carries a penalty, debits the membership and appends the PENALTY
// ledger line in the same transaction. When incrementExcuse is set the
// excuse quota is checked and bumped under the membership row lock.
// Nothing is persisted on any failure: an insufficient balance or an
// exhausted quota leaves attendance, deposit, and ledger untouched.
func (r *AttendanceRepository) CreateWithLedger(ctx context.Context, att *models.Attendance, membershipID string, incrementExcuse bool, description string) (*models.Attendance, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attendance create: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	if incrementExcuse {
		if err := incrementExcuseTx(ctx, tx, membershipID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	att.CreatedAt = now
	att.UpdatedAt = now

	const insert = `INSERT INTO attendances (id, session_id, member_id, qr_token_id, status, late_minutes, penalty_amount, reason, checked_in_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := tx.ExecContext(ctx, insert, att.ID, att.SessionID, att.MemberID, att.QRTokenID, att.Status, att.LateMinutes, att.PenaltyAmount, att.Reason, att.CheckedInAt, att.CreatedAt, att.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateAttendance
		}
		return nil, fmt.Errorf("insert attendance: %w", err)
	}

	if att.PenaltyAmount > 0 {
		if _, err := applyDepositTx(ctx, tx, membershipID, -att.PenaltyAmount, models.DepositEntryPenalty, &att.ID, description); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit attendance create: %w", err)
	}
	committed = true
	return att, nil
}

// UpdateWithLedger mutates an existing attendance record and applies
// the signed penalty delta and excuse-quota transition in the same
// transaction. diff > 0 debits the membership (PENALTY), diff < 0
// credits it (REFUND), diff == 0 writes no ledger line. excuseDelta is
// -1, 0 or +1; decrements floor at zero.
func (r *AttendanceRepository) UpdateWithLedger(ctx context.Context, att *models.Attendance, membershipID string, excuseDelta, diff int, description string) (*models.Attendance, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attendance update: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	switch {
	case excuseDelta > 0:
		if err := incrementExcuseTx(ctx, tx, membershipID); err != nil {
			return nil, err
		}
	case excuseDelta < 0:
		if _, err := tx.ExecContext(ctx, `UPDATE cohort_members SET excuse_count = GREATEST(excuse_count - 1, 0) WHERE id = $1`, membershipID); err != nil {
			return nil, fmt.Errorf("decrement excuse count: %w", err)
		}
	}

	switch {
	case diff > 0:
		if _, err := applyDepositTx(ctx, tx, membershipID, -diff, models.DepositEntryPenalty, &att.ID, description); err != nil {
			return nil, err
		}
	case diff < 0:
		if _, err := applyDepositTx(ctx, tx, membershipID, -diff, models.DepositEntryRefund, &att.ID, description); err != nil {
			return nil, err
		}
	}

	att.UpdatedAt = time.Now().UTC()
	const update = `UPDATE attendances SET status = $1, late_minutes = $2, penalty_amount = $3, reason = $4, updated_at = $5 WHERE id = $6`
	if _, err := tx.ExecContext(ctx, update, att.Status, att.LateMinutes, att.PenaltyAmount, att.Reason, att.UpdatedAt, att.ID); err != nil {
		return nil, fmt.Errorf("update attendance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit attendance update: %w", err)
	}
	committed = true
	return att, nil
}

// incrementExcuseTx bumps the excuse counter under the membership row
// lock, enforcing the per-generation cap.
func incrementExcuseTx(ctx context.Context, tx *sqlx.Tx, membershipID string) error {
	var count int
	if err := tx.GetContext(ctx, &count, `SELECT excuse_count FROM cohort_members WHERE id = $1 FOR UPDATE`, membershipID); err != nil {
		return fmt.Errorf("lock membership %s: %w", membershipID, err)
	}
	if count >= models.MaxExcuseCount {
		return ErrExcuseLimitExceeded
	}
	if _, err := tx.ExecContext(ctx, `UPDATE cohort_members SET excuse_count = excuse_count + 1 WHERE id = $1`, membershipID); err != nil {
		return fmt.Errorf("increment excuse count: %w", err)
	}
	return nil
}

// CountsBySession aggregates attendance outcomes for one session.
func (r *AttendanceRepository) CountsBySession(ctx context.Context, sessionID string) (*models.SessionAttendanceCounts, error) {
	const query = `SELECT
COUNT(*) FILTER (WHERE status = 'PRESENT') AS present,
COUNT(*) FILTER (WHERE status = 'ABSENT') AS absent,
COUNT(*) FILTER (WHERE status = 'LATE') AS late,
COUNT(*) FILTER (WHERE status = 'EXCUSED') AS excused,
COUNT(*) AS total
FROM attendances WHERE session_id = $1`
	var counts models.SessionAttendanceCounts
	if err := r.db.GetContext(ctx, &counts, query, sessionID); err != nil {
		return nil, fmt.Errorf("session attendance counts: %w", err)
	}
	return &counts, nil
}
