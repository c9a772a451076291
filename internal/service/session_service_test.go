package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cohortly/attendance-api/internal/models"
	"github.com/cohortly/attendance-api/internal/repository"
	appErrors "github.com/cohortly/attendance-api/pkg/errors"
)

type mockSessionRepo struct {
	sessions map[string]*models.Session

	cancelErr   error
	cancelledAt *time.Time
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) ListByCohort(ctx context.Context, cohortID string, filter models.SessionFilter) ([]models.Session, error) {
	var list []models.Session
	for _, s := range m.sessions {
		if s.CohortID != cohortID {
			continue
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		list = append(list, *s)
	}
	return list, nil
}

func (m *mockSessionRepo) ListUpcomingByCohort(ctx context.Context, cohortID string) ([]models.Session, error) {
	var list []models.Session
	for _, s := range m.sessions {
		if s.CohortID == cohortID && s.Status != models.SessionStatusCancelled {
			list = append(list, *s)
		}
	}
	return list, nil
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = "sess-new"
	}
	if m.sessions == nil {
		m.sessions = make(map[string]*models.Session)
	}
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *mockSessionRepo) Update(ctx context.Context, session *models.Session) error {
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *mockSessionRepo) Cancel(ctx context.Context, sessionID string, now time.Time) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	s, ok := m.sessions[sessionID]
	if !ok || s.Status == models.SessionStatusCancelled {
		return repository.ErrSessionCancelConflict
	}
	s.Status = models.SessionStatusCancelled
	m.cancelledAt = &now
	return nil
}

type mockCountsReader struct {
	counts map[string]*models.SessionAttendanceCounts
}

func (m *mockCountsReader) CountsBySession(ctx context.Context, sessionID string) (*models.SessionAttendanceCounts, error) {
	if c, ok := m.counts[sessionID]; ok {
		return c, nil
	}
	return &models.SessionAttendanceCounts{}, nil
}

type mockTokenIssuer struct {
	issued    []string
	issueErr  error
	activeFor map[string]bool
}

func (m *mockTokenIssuer) Issue(ctx context.Context, sessionID string) (*models.QRToken, error) {
	if m.issueErr != nil {
		return nil, m.issueErr
	}
	m.issued = append(m.issued, sessionID)
	return &models.QRToken{ID: "tok-" + sessionID, SessionID: sessionID}, nil
}

func (m *mockTokenIssuer) ActiveForSession(ctx context.Context, sessionID string) (bool, error) {
	return m.activeFor[sessionID], nil
}

type sessionFixture struct {
	svc    *SessionService
	repo   *mockSessionRepo
	tokens *mockTokenIssuer
}

func newSessionFixture() *sessionFixture {
	repo := &mockSessionRepo{sessions: map[string]*models.Session{
		"sess-1": {
			ID: "sess-1", CohortID: "cohort-1", Title: "Week 1",
			Date: "2026-03-02", Time: "19:00", Location: "Hall A",
			Status: models.SessionStatusScheduled,
		},
		"sess-done": {
			ID: "sess-done", CohortID: "cohort-1", Title: "Week 0",
			Date: "2026-02-23", Time: "19:00", Location: "Hall A",
			Status: models.SessionStatusCancelled,
		},
	}}
	cohorts := &mockCohortReader{cohort: &models.Cohort{ID: "cohort-1", Generation: 5}}
	counts := &mockCountsReader{counts: map[string]*models.SessionAttendanceCounts{
		"sess-1": {Present: 3, Late: 1, Total: 4},
	}}
	tokens := &mockTokenIssuer{activeFor: map[string]bool{"sess-1": true}}

	svc := NewSessionService(repo, cohorts, counts, tokens, nil, nil, zap.NewNop(), 5)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return &sessionFixture{svc: svc, repo: repo, tokens: tokens}
}

func TestCreateSessionIssuesToken(t *testing.T) {
	f := newSessionFixture()

	session, err := f.svc.Create(context.Background(), CreateSessionRequest{
		Title:    "Week 2",
		Date:     "2026-03-09",
		Time:     "19:00",
		Location: "Hall B",
	})
	require.NoError(t, err)

	assert.Equal(t, "cohort-1", session.CohortID)
	assert.Equal(t, models.SessionStatusScheduled, session.Status)
	assert.Equal(t, []string{session.ID}, f.tokens.issued)
}

func TestCreateSessionSurvivesTokenFailure(t *testing.T) {
	f := newSessionFixture()
	f.tokens.issueErr = appErrors.ErrQRAlreadyActive

	session, err := f.svc.Create(context.Background(), CreateSessionRequest{
		Title:    "Week 2",
		Date:     "2026-03-09",
		Time:     "19:00",
		Location: "Hall B",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
}

func TestCreateSessionRejectsBadDate(t *testing.T) {
	f := newSessionFixture()

	_, err := f.svc.Create(context.Background(), CreateSessionRequest{
		Title:    "Week 2",
		Date:     "09-03-2026",
		Time:     "19:00",
		Location: "Hall B",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateCancelledSessionRejected(t *testing.T) {
	f := newSessionFixture()

	_, err := f.svc.Update(context.Background(), "sess-done", UpdateSessionRequest{Title: strPtr("renamed")})
	assert.ErrorIs(t, err, appErrors.ErrSessionAlreadyCancelled)
}

func TestUpdateCannotCancelViaStatus(t *testing.T) {
	f := newSessionFixture()
	status := "CANCELLED"

	_, err := f.svc.Update(context.Background(), "sess-1", UpdateSessionRequest{Status: &status})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdatePartialEdit(t *testing.T) {
	f := newSessionFixture()
	status := "IN_PROGRESS"

	session, err := f.svc.Update(context.Background(), "sess-1", UpdateSessionRequest{Status: &status})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusInProgress, session.Status)
	assert.Equal(t, "Week 1", session.Title)
	assert.Equal(t, "Hall A", session.Location)
}

func TestCancelSession(t *testing.T) {
	f := newSessionFixture()

	session, err := f.svc.Cancel(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusCancelled, session.Status)
	require.NotNil(t, f.repo.cancelledAt)
	assert.Equal(t, f.svc.now().UTC(), *f.repo.cancelledAt)
}

func TestCancelAlreadyCancelled(t *testing.T) {
	f := newSessionFixture()

	_, err := f.svc.Cancel(context.Background(), "sess-done")
	assert.ErrorIs(t, err, appErrors.ErrSessionAlreadyCancelled)
}

func TestCancelLosingRaceMapsToConflict(t *testing.T) {
	f := newSessionFixture()
	f.repo.cancelErr = repository.ErrSessionCancelConflict

	_, err := f.svc.Cancel(context.Background(), "sess-1")
	assert.ErrorIs(t, err, appErrors.ErrSessionAlreadyCancelled)
}

func TestListForMembersSkipsCancelled(t *testing.T) {
	f := newSessionFixture()

	sessions, err := f.svc.ListForMembers(context.Background())
	require.NoError(t, err)

	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-1", sessions[0].ID)
}

func TestGetAttachesCountsAndTokenState(t *testing.T) {
	f := newSessionFixture()

	detail, err := f.svc.Get(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.Equal(t, 3, detail.Counts.Present)
	assert.Equal(t, 4, detail.Counts.Total)
	assert.True(t, detail.QRActive)
}
