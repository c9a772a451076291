package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cohortly/attendance-api/internal/models"
)

// QRTokenRepository persists session check-in tokens. Tokens are never
// deleted; expiry sets expires_at to the current instant.
type QRTokenRepository struct {
	db *sqlx.DB
}

// NewQRTokenRepository constructs the repository.
func NewQRTokenRepository(db *sqlx.DB) *QRTokenRepository {
	return &QRTokenRepository{db: db}
}

const qrTokenColumns = `id, session_id, hash_value, created_at, expires_at`

// FindByHash resolves a token by its opaque hash value, exact match only.
func (r *QRTokenRepository) FindByHash(ctx context.Context, hashValue string) (*models.QRToken, error) {
	var token models.QRToken
	query := fmt.Sprintf(`SELECT %s FROM qr_tokens WHERE hash_value = $1`, qrTokenColumns)
	if err := r.db.GetContext(ctx, &token, query, hashValue); err != nil {
		return nil, err
	}
	return &token, nil
}

// FindByID loads one token.
func (r *QRTokenRepository) FindByID(ctx context.Context, id string) (*models.QRToken, error) {
	var token models.QRToken
	query := fmt.Sprintf(`SELECT %s FROM qr_tokens WHERE id = $1`, qrTokenColumns)
	if err := r.db.GetContext(ctx, &token, query, id); err != nil {
		return nil, err
	}
	return &token, nil
}

// ActiveExists reports whether an unexpired token exists for a session.
func (r *QRTokenRepository) ActiveExists(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM qr_tokens WHERE session_id = $1 AND expires_at > $2)`
	if err := r.db.GetContext(ctx, &exists, query, sessionID, now); err != nil {
		return false, fmt.Errorf("active token check: %w", err)
	}
	return exists, nil
}

// Issue creates a fresh token for the session. The session row is
// locked for the duration of the transaction so two concurrent issue
// calls cannot both observe "no active token" and insert twice.
// Returns sql.ErrNoRows when the session does not exist and
// ErrTokenActive when an unexpired token is already present.
func (r *QRTokenRepository) Issue(ctx context.Context, sessionID string, now time.Time, ttl time.Duration) (*models.QRToken, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin token issue: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	var lockedID string
	if err := tx.GetContext(ctx, &lockedID, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, sessionID); err != nil {
		return nil, err
	}

	var active bool
	if err := tx.GetContext(ctx, &active, `SELECT EXISTS (SELECT 1 FROM qr_tokens WHERE session_id = $1 AND expires_at > $2)`, sessionID, now); err != nil {
		return nil, fmt.Errorf("active token check: %w", err)
	}
	if active {
		return nil, ErrTokenActive
	}

	token, err := insertTokenTx(ctx, tx, sessionID, now, ttl)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit token issue: %w", err)
	}
	committed = true
	return token, nil
}

// Renew expires the given token and issues its replacement atomically.
// The session never observes a window with zero live tokens: both
// effects land in one transaction.
func (r *QRTokenRepository) Renew(ctx context.Context, tokenID string, now time.Time, ttl time.Duration) (*models.QRToken, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin token renew: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	var old models.QRToken
	query := fmt.Sprintf(`SELECT %s FROM qr_tokens WHERE id = $1 FOR UPDATE`, qrTokenColumns)
	if err := tx.GetContext(ctx, &old, query, tokenID); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE qr_tokens SET expires_at = $1 WHERE id = $2`, now, tokenID); err != nil {
		return nil, fmt.Errorf("expire token: %w", err)
	}

	token, err := insertTokenTx(ctx, tx, old.SessionID, now, ttl)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit token renew: %w", err)
	}
	committed = true
	return token, nil
}

func insertTokenTx(ctx context.Context, tx *sqlx.Tx, sessionID string, now time.Time, ttl time.Duration) (*models.QRToken, error) {
	token := &models.QRToken{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		HashValue: uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	const insert = `INSERT INTO qr_tokens (id, session_id, hash_value, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, insert, token.ID, token.SessionID, token.HashValue, token.CreatedAt, token.ExpiresAt); err != nil {
		return nil, fmt.Errorf("insert qr token: %w", err)
	}
	return token, nil
}
