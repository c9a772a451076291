package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cohortly/attendance-api/internal/models"
	"github.com/cohortly/attendance-api/internal/repository"
	appErrors "github.com/cohortly/attendance-api/pkg/errors"
)

type mockMemberRepo struct {
	members map[string]*models.Member
	status  map[string]models.MemberStatus
}

func (m *mockMemberRepo) FindByID(ctx context.Context, id string) (*models.Member, error) {
	if mem, ok := m.members[id]; ok {
		copied := *mem
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMemberRepo) List(ctx context.Context, filter models.MemberFilter) ([]models.Member, int, error) {
	var list []models.Member
	for _, mem := range m.members {
		if filter.Status != nil && mem.Status != *filter.Status {
			continue
		}
		list = append(list, *mem)
	}
	return list, len(list), nil
}

func (m *mockMemberRepo) Create(ctx context.Context, member *models.Member) error {
	if member.ID == "" {
		member.ID = "mem-new"
	}
	if m.members == nil {
		m.members = make(map[string]*models.Member)
	}
	copied := *member
	m.members[member.ID] = &copied
	return nil
}

func (m *mockMemberRepo) UpdateStatus(ctx context.Context, id string, status models.MemberStatus) error {
	if m.status == nil {
		m.status = make(map[string]models.MemberStatus)
	}
	m.status[id] = status
	if mem, ok := m.members[id]; ok {
		mem.Status = status
	}
	return nil
}

type mockMembershipRepo struct {
	cohort      *models.Cohort
	memberships map[string]*models.CohortMember
	details     map[string]*models.CohortMemberDetail

	createErr      error
	created        *models.CohortMember
	initialDeposit int
}

func (m *mockMembershipRepo) FindByGeneration(ctx context.Context, generation int) (*models.Cohort, error) {
	if m.cohort == nil || m.cohort.Generation != generation {
		return nil, sql.ErrNoRows
	}
	return m.cohort, nil
}

func (m *mockMembershipRepo) FindMembership(ctx context.Context, memberID, cohortID string) (*models.CohortMember, error) {
	for _, cm := range m.memberships {
		if cm.MemberID == memberID && cm.CohortID == cohortID {
			return cm, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockMembershipRepo) FindMembershipDetail(ctx context.Context, id string) (*models.CohortMemberDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	if cm, ok := m.memberships[id]; ok {
		return &models.CohortMemberDetail{CohortMember: *cm}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMembershipRepo) CreateMembership(ctx context.Context, cm *models.CohortMember, initialDeposit int) error {
	if m.createErr != nil {
		return m.createErr
	}
	if cm.ID == "" {
		cm.ID = "cm-new"
	}
	cm.Deposit = initialDeposit
	if m.memberships == nil {
		m.memberships = make(map[string]*models.CohortMember)
	}
	m.memberships[cm.ID] = cm
	m.created = cm
	m.initialDeposit = initialDeposit
	return nil
}

func (m *mockMembershipRepo) ListMembershipsByCohort(ctx context.Context, cohortID string) ([]models.CohortMemberDetail, error) {
	var list []models.CohortMemberDetail
	for _, cm := range m.memberships {
		if cm.CohortID == cohortID {
			list = append(list, models.CohortMemberDetail{CohortMember: *cm})
		}
	}
	return list, nil
}

func newMemberFixture() (*MemberService, *mockMemberRepo, *mockMembershipRepo) {
	members := &mockMemberRepo{members: map[string]*models.Member{
		"mem-1":  {ID: "mem-1", Name: "Kim", Email: "kim@example.com", Status: models.MemberStatusActive},
		"mem-wd": {ID: "mem-wd", Name: "Lee", Email: "lee@example.com", Status: models.MemberStatusWithdrawn},
	}}
	cohorts := &mockMembershipRepo{
		cohort:      &models.Cohort{ID: "cohort-1", Generation: 5},
		memberships: map[string]*models.CohortMember{},
	}
	svc := NewMemberService(members, cohorts, nil, zap.NewNop(), 5, 100000)
	return svc, members, cohorts
}

func TestCreateMember(t *testing.T) {
	svc, _, _ := newMemberFixture()

	member, err := svc.Create(context.Background(), CreateMemberRequest{Name: "Choi", Email: "choi@example.com"})
	require.NoError(t, err)

	assert.Equal(t, models.MemberStatusActive, member.Status)
	assert.NotEmpty(t, member.ID)
}

func TestCreateMemberRejectsBadEmail(t *testing.T) {
	svc, _, _ := newMemberFixture()

	_, err := svc.Create(context.Background(), CreateMemberRequest{Name: "Choi", Email: "not-an-email"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestWithdrawMember(t *testing.T) {
	svc, members, _ := newMemberFixture()

	member, err := svc.Withdraw(context.Background(), "mem-1")
	require.NoError(t, err)

	assert.Equal(t, models.MemberStatusWithdrawn, member.Status)
	assert.Equal(t, models.MemberStatusWithdrawn, members.status["mem-1"])
}

func TestWithdrawIsIdempotent(t *testing.T) {
	svc, members, _ := newMemberFixture()

	member, err := svc.Withdraw(context.Background(), "mem-wd")
	require.NoError(t, err)

	assert.Equal(t, models.MemberStatusWithdrawn, member.Status)
	// Already withdrawn; no second status write.
	assert.Empty(t, members.status)
}

func TestEnrollSeedsInitialDeposit(t *testing.T) {
	svc, _, cohorts := newMemberFixture()

	detail, err := svc.Enroll(context.Background(), EnrollRequest{MemberID: "mem-1"})
	require.NoError(t, err)

	assert.Equal(t, 100000, cohorts.initialDeposit)
	assert.Equal(t, "cohort-1", detail.CohortID)
	assert.Equal(t, 100000, detail.Deposit)
}

func TestEnrollWithdrawnMemberRejected(t *testing.T) {
	svc, _, _ := newMemberFixture()

	_, err := svc.Enroll(context.Background(), EnrollRequest{MemberID: "mem-wd"})
	assert.ErrorIs(t, err, appErrors.ErrMemberWithdrawn)
}

func TestEnrollTwiceRejected(t *testing.T) {
	svc, _, cohorts := newMemberFixture()
	cohorts.createErr = repository.ErrDuplicateMembership

	_, err := svc.Enroll(context.Background(), EnrollRequest{MemberID: "mem-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollUnknownMember(t *testing.T) {
	svc, _, _ := newMemberFixture()

	_, err := svc.Enroll(context.Background(), EnrollRequest{MemberID: "mem-missing"})
	assert.ErrorIs(t, err, appErrors.ErrMemberNotFound)
}

func TestRosterListsActiveCohort(t *testing.T) {
	svc, _, cohorts := newMemberFixture()
	cohorts.memberships["cm-1"] = &models.CohortMember{ID: "cm-1", MemberID: "mem-1", CohortID: "cohort-1"}

	roster, err := svc.Roster(context.Background())
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "cm-1", roster[0].ID)
}
