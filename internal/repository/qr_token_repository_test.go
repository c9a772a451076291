package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestIssueTokenLocksSession(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewQRTokenRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM sessions WHERE id = $1 FOR UPDATE")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sess-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM qr_tokens WHERE session_id = $1 AND expires_at > $2)")).
		WithArgs("sess-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO qr_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	token, err := repo.Issue(context.Background(), "sess-1", now, time.Hour)
	require.NoError(t, err)
	require.Equal(t, "sess-1", token.SessionID)
	require.NotEmpty(t, token.HashValue)
	require.Equal(t, now.Add(time.Hour), token.ExpiresAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueTokenUnknownSession(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewQRTokenRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM sessions WHERE id = $1 FOR UPDATE")).
		WithArgs("sess-missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Issue(context.Background(), "sess-missing", now, time.Hour)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueTokenRejectsActiveToken(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewQRTokenRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM sessions WHERE id = $1 FOR UPDATE")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sess-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM qr_tokens WHERE session_id = $1 AND expires_at > $2)")).
		WithArgs("sess-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.Issue(context.Background(), "sess-1", now, time.Hour)
	require.ErrorIs(t, err, ErrTokenActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenewExpiresOldAndInsertsNew(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewQRTokenRepository(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "session_id", "hash_value", "created_at", "expires_at"}).
		AddRow("tok-1", "sess-1", "hash-1", now.Add(-time.Hour), now.Add(time.Hour))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, session_id, hash_value, created_at, expires_at FROM qr_tokens WHERE id = $1 FOR UPDATE")).
		WithArgs("tok-1").
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE qr_tokens SET expires_at = $1 WHERE id = $2")).
		WithArgs(now, "tok-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO qr_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	token, err := repo.Renew(context.Background(), "tok-1", now, time.Hour)
	require.NoError(t, err)
	require.Equal(t, "sess-1", token.SessionID)
	require.NotEqual(t, "tok-1", token.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
