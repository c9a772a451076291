package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cohortly/attendance-api/internal/models"
	"github.com/cohortly/attendance-api/internal/repository"
	appErrors "github.com/cohortly/attendance-api/pkg/errors"
)

type mockQRTokenRepo struct {
	sessions map[string]bool
	tokens   map[string]*models.QRToken

	issued  []*models.QRToken
	lastTTL time.Duration
}

func (m *mockQRTokenRepo) FindByID(ctx context.Context, id string) (*models.QRToken, error) {
	if t, ok := m.tokens[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockQRTokenRepo) ActiveExists(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	for _, t := range m.tokens {
		if t.SessionID == sessionID && !t.Expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockQRTokenRepo) Issue(ctx context.Context, sessionID string, now time.Time, ttl time.Duration) (*models.QRToken, error) {
	if !m.sessions[sessionID] {
		return nil, sql.ErrNoRows
	}
	if active, _ := m.ActiveExists(ctx, sessionID, now); active {
		return nil, repository.ErrTokenActive
	}
	return m.insert(sessionID, now, ttl), nil
}

func (m *mockQRTokenRepo) Renew(ctx context.Context, tokenID string, now time.Time, ttl time.Duration) (*models.QRToken, error) {
	old, ok := m.tokens[tokenID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	old.ExpiresAt = now
	return m.insert(old.SessionID, now, ttl), nil
}

func (m *mockQRTokenRepo) insert(sessionID string, now time.Time, ttl time.Duration) *models.QRToken {
	token := &models.QRToken{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		HashValue: uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if m.tokens == nil {
		m.tokens = make(map[string]*models.QRToken)
	}
	m.tokens[token.ID] = token
	m.issued = append(m.issued, token)
	m.lastTTL = ttl
	return token
}

func newQRFixture() (*QRTokenService, *mockQRTokenRepo) {
	repo := &mockQRTokenRepo{sessions: map[string]bool{"sess-1": true}, tokens: map[string]*models.QRToken{}}
	svc := NewQRTokenService(repo, zap.NewNop(), time.Hour)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	return svc, repo
}

func TestIssueToken(t *testing.T) {
	svc, repo := newQRFixture()

	token, err := svc.Issue(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.Equal(t, "sess-1", token.SessionID)
	assert.NotEmpty(t, token.HashValue)
	assert.Equal(t, time.Hour, repo.lastTTL)
	assert.Equal(t, token.CreatedAt.Add(time.Hour), token.ExpiresAt)
}

func TestIssueTokenUnknownSession(t *testing.T) {
	svc, _ := newQRFixture()

	_, err := svc.Issue(context.Background(), "sess-missing")
	assert.ErrorIs(t, err, appErrors.ErrSessionNotFound)
}

func TestIssueTokenRejectsSecondActive(t *testing.T) {
	svc, _ := newQRFixture()

	_, err := svc.Issue(context.Background(), "sess-1")
	require.NoError(t, err)

	_, err = svc.Issue(context.Background(), "sess-1")
	assert.ErrorIs(t, err, appErrors.ErrQRAlreadyActive)
}

func TestRenewSwapsTokens(t *testing.T) {
	svc, repo := newQRFixture()

	first, err := svc.Issue(context.Background(), "sess-1")
	require.NoError(t, err)

	second, err := svc.Renew(context.Background(), first.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.HashValue, second.HashValue)
	// The old token is expired at the renewal instant, so only the
	// replacement is live.
	assert.True(t, repo.tokens[first.ID].Expired(svc.now().Add(time.Second)))
	active, err := svc.ActiveForSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestRenewUnknownToken(t *testing.T) {
	svc, _ := newQRFixture()

	_, err := svc.Renew(context.Background(), "tok-missing")
	assert.ErrorIs(t, err, appErrors.ErrQRNotFound)
}
