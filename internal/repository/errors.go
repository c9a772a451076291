package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors surfaced from transactional write paths. Services map
// these onto API error codes.
var (
	// ErrInsufficientDeposit means a debit would drive the membership
	// balance negative. The enclosing transaction must be rolled back.
	ErrInsufficientDeposit = errors.New("insufficient deposit balance")

	// ErrDuplicateAttendance is raised by the (session_id, member_id)
	// uniqueness constraint, the storage-level backstop beneath the
	// pipeline's duplicate pre-check.
	ErrDuplicateAttendance = errors.New("attendance already exists for session and member")

	// ErrExcuseLimitExceeded means the membership already used all
	// excused absences for the generation.
	ErrExcuseLimitExceeded = errors.New("excuse limit exceeded")

	// ErrTokenActive means an unexpired QR token already exists for the
	// session.
	ErrTokenActive = errors.New("active qr token already exists")

	// ErrSessionCancelConflict means the session was already cancelled
	// when the terminal transition was attempted.
	ErrSessionCancelConflict = errors.New("session already cancelled")

	// ErrDuplicateMembership is raised by the (member_id, cohort_id)
	// uniqueness constraint on cohort_members.
	ErrDuplicateMembership = errors.New("membership already exists for member and cohort")
)

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
