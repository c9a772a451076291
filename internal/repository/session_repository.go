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

// SessionRepository persists scheduled sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, cohort_id, title, date, time, location, status, created_at, updated_at`

// FindByID loads one session.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns)
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByCohort returns a cohort's sessions matching the filter, soonest
// first.
func (r *SessionRepository) ListByCohort(ctx context.Context, cohortID string, filter models.SessionFilter) ([]models.Session, error) {
	where := []string{"cohort_id = $1"}
	args := []interface{}{cohortID}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != "" {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, filter.DateTo)
	}
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE %s ORDER BY date ASC, time ASC`, sessionColumns, strings.Join(where, " AND "))
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// ListUpcomingByCohort returns the member-facing view: every session
// except cancelled ones.
func (r *SessionRepository) ListUpcomingByCohort(ctx context.Context, cohortID string) ([]models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE cohort_id = $1 AND status <> $2 ORDER BY date ASC, time ASC`, sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, cohortID, models.SessionStatusCancelled); err != nil {
		return nil, fmt.Errorf("list member sessions: %w", err)
	}
	return sessions, nil
}

// Create inserts a session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CreatedAt = now
	session.UpdatedAt = now
	const insert = `INSERT INTO sessions (id, cohort_id, title, date, time, location, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, insert, session.ID, session.CohortID, session.Title, session.Date, session.Time, session.Location, session.Status, session.CreatedAt, session.UpdatedAt); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a session.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const update = `UPDATE sessions SET title = $1, date = $2, time = $3, location = $4, status = $5, updated_at = $6 WHERE id = $7`
	if _, err := r.db.ExecContext(ctx, update, session.Title, session.Date, session.Time, session.Location, session.Status, session.UpdatedAt, session.ID); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Cancel marks the session cancelled and expires every active token for
// it in the same transaction. The status guard keeps cancellation
// terminal even when two admins race. Token expiry is idempotent.
func (r *SessionRepository) Cancel(ctx context.Context, sessionID string, now time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session cancel: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET status = $1, updated_at = $2 WHERE id = $3 AND status <> $1`, models.SessionStatusCancelled, now, sessionID)
	if err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrSessionCancelConflict
	}

	if _, err := tx.ExecContext(ctx, `UPDATE qr_tokens SET expires_at = $1 WHERE session_id = $2 AND expires_at > $1`, now, sessionID); err != nil {
		return fmt.Errorf("retire session tokens: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session cancel: %w", err)
	}
	committed = true
	return nil
}
