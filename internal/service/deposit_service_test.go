package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cohortly/attendance-api/internal/models"
	"github.com/cohortly/attendance-api/internal/repository"
	appErrors "github.com/cohortly/attendance-api/pkg/errors"
)

type mockDepositRepo struct {
	entries  map[string][]models.DepositEntry
	applyErr error
	applied  []models.DepositEntry
}

func (m *mockDepositRepo) Apply(ctx context.Context, membershipID string, amount int, entryType models.DepositEntryType, attendanceID *string, description string) (*models.DepositEntry, error) {
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	balance := 0
	for _, e := range m.entries[membershipID] {
		balance += e.Amount
	}
	entry := models.DepositEntry{
		ID:             "entry-new",
		CohortMemberID: membershipID,
		Type:           entryType,
		Amount:         amount,
		BalanceAfter:   balance + amount,
		AttendanceID:   attendanceID,
		Description:    description,
		CreatedAt:      time.Now().UTC(),
	}
	if m.entries == nil {
		m.entries = make(map[string][]models.DepositEntry)
	}
	m.entries[membershipID] = append(m.entries[membershipID], entry)
	m.applied = append(m.applied, entry)
	return &entry, nil
}

func (m *mockDepositRepo) History(ctx context.Context, membershipID string) ([]models.DepositEntry, error) {
	return m.entries[membershipID], nil
}

type mockMembershipReader struct {
	memberships map[string]*models.CohortMember
}

func (m *mockMembershipReader) FindMembershipByID(ctx context.Context, id string) (*models.CohortMember, error) {
	if cm, ok := m.memberships[id]; ok {
		return cm, nil
	}
	return nil, sql.ErrNoRows
}

func newDepositFixture() (*DepositService, *mockDepositRepo, *mockMembershipReader) {
	repo := &mockDepositRepo{entries: map[string][]models.DepositEntry{
		"cm-1": {
			{ID: "e1", CohortMemberID: "cm-1", Type: models.DepositEntryInitial, Amount: 100000, BalanceAfter: 100000},
			{ID: "e2", CohortMemberID: "cm-1", Type: models.DepositEntryPenalty, Amount: -10000, BalanceAfter: 90000},
		},
	}}
	memberships := &mockMembershipReader{memberships: map[string]*models.CohortMember{
		"cm-1": {ID: "cm-1", MemberID: "mem-1", CohortID: "cohort-1", Deposit: 90000},
	}}
	svc := NewDepositService(repo, memberships, nil, zap.NewNop())
	return svc, repo, memberships
}

func TestDepositHistory(t *testing.T) {
	svc, _, _ := newDepositFixture()

	entries, err := svc.History(context.Background(), "cm-1")
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, models.DepositEntryInitial, entries[0].Type)
	assert.Equal(t, 90000, entries[1].BalanceAfter)
}

func TestDepositHistoryUnknownMembership(t *testing.T) {
	svc, _, _ := newDepositFixture()

	_, err := svc.History(context.Background(), "cm-missing")
	assert.ErrorIs(t, err, appErrors.ErrCohortMemberNotFound)
}

func TestDepositHistoryDetectsDrift(t *testing.T) {
	svc, _, memberships := newDepositFixture()
	// Balance no longer matches the ledger sum; surface as internal.
	memberships.memberships["cm-1"].Deposit = 42

	_, err := svc.History(context.Background(), "cm-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestAdjustCreditWritesRefund(t *testing.T) {
	svc, repo, _ := newDepositFixture()

	entry, err := svc.Adjust(context.Background(), "cm-1", 5000, "event prize")
	require.NoError(t, err)

	assert.Equal(t, models.DepositEntryRefund, entry.Type)
	assert.Equal(t, 5000, entry.Amount)
	assert.Equal(t, 95000, entry.BalanceAfter)
	require.Len(t, repo.applied, 1)
}

func TestAdjustDebitWritesPenalty(t *testing.T) {
	svc, _, _ := newDepositFixture()

	entry, err := svc.Adjust(context.Background(), "cm-1", -2000, "equipment damage")
	require.NoError(t, err)

	assert.Equal(t, models.DepositEntryPenalty, entry.Type)
	assert.Equal(t, 88000, entry.BalanceAfter)
}

func TestAdjustZeroRejected(t *testing.T) {
	svc, _, _ := newDepositFixture()

	_, err := svc.Adjust(context.Background(), "cm-1", 0, "noop")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAdjustPastZeroRejected(t *testing.T) {
	svc, repo, _ := newDepositFixture()
	repo.applyErr = repository.ErrInsufficientDeposit

	_, err := svc.Adjust(context.Background(), "cm-1", -500000, "too much")
	assert.ErrorIs(t, err, appErrors.ErrDepositInsufficient)
}

func TestExportHistoryCSV(t *testing.T) {
	svc, _, _ := newDepositFixture()

	payload, contentType, err := svc.ExportHistory(context.Background(), "cm-1", "csv")
	require.NoError(t, err)

	assert.Equal(t, "text/csv", contentType)
	body := string(payload)
	assert.True(t, strings.Contains(body, "INITIAL"))
	assert.True(t, strings.Contains(body, "90000"))
}

func TestExportHistoryPDF(t *testing.T) {
	svc, _, _ := newDepositFixture()

	payload, contentType, err := svc.ExportHistory(context.Background(), "cm-1", "pdf")
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, len(payload) > 0)
}
