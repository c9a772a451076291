package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cohortly/attendance-api/internal/models"
	"github.com/cohortly/attendance-api/internal/repository"
	appErrors "github.com/cohortly/attendance-api/pkg/errors"
)

type memberRepository interface {
	FindByID(ctx context.Context, id string) (*models.Member, error)
	List(ctx context.Context, filter models.MemberFilter) ([]models.Member, int, error)
	Create(ctx context.Context, member *models.Member) error
	UpdateStatus(ctx context.Context, id string, status models.MemberStatus) error
}

type membershipRepository interface {
	FindByGeneration(ctx context.Context, generation int) (*models.Cohort, error)
	FindMembership(ctx context.Context, memberID, cohortID string) (*models.CohortMember, error)
	FindMembershipDetail(ctx context.Context, id string) (*models.CohortMemberDetail, error)
	CreateMembership(ctx context.Context, cm *models.CohortMember, initialDeposit int) error
	ListMembershipsByCohort(ctx context.Context, cohortID string) ([]models.CohortMemberDetail, error)
}

// MemberService manages member records and cohort enrollments.
type MemberService struct {
	members        memberRepository
	cohorts        membershipRepository
	validate       *validator.Validate
	logger         *zap.Logger
	generation     int
	initialDeposit int
}

// NewMemberService constructs the service. generation is the cohort
// enrollments are created against; initialDeposit seeds each new
// membership's balance.
func NewMemberService(members memberRepository, cohorts membershipRepository, validate *validator.Validate, logger *zap.Logger, generation, initialDeposit int) *MemberService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemberService{
		members:        members,
		cohorts:        cohorts,
		validate:       validate,
		logger:         logger,
		generation:     generation,
		initialDeposit: initialDeposit,
	}
}

// CreateMemberRequest is the payload for registering a member.
type CreateMemberRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Email string `json:"email" validate:"required,email"`
}

// ListMembersRequest scopes a member listing.
type ListMembersRequest struct {
	Search   string `form:"search"`
	Status   string `form:"status" validate:"omitempty,oneof=ACTIVE WITHDRAWN"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// EnrollRequest enrolls an existing member into the active cohort.
type EnrollRequest struct {
	MemberID string  `json:"member_id" validate:"required"`
	PartID   *string `json:"part_id"`
	TeamID   *string `json:"team_id"`
}

// Create registers a new member in ACTIVE state.
func (s *MemberService) Create(ctx context.Context, req CreateMemberRequest) (*models.Member, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	member := &models.Member{
		Name:   req.Name,
		Email:  req.Email,
		Status: models.MemberStatusActive,
	}
	if err := s.members.Create(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create member")
	}

	s.logger.Info("member created", zap.String("member_id", member.ID))
	return member, nil
}

// Get loads one member.
func (s *MemberService) Get(ctx context.Context, id string) (*models.Member, error) {
	member, err := s.members.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrMemberNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load member")
	}
	return member, nil
}

// List returns members matching the filter along with the total count.
func (s *MemberService) List(ctx context.Context, req ListMembersRequest) ([]models.Member, int, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	filter := models.MemberFilter{
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.Status != "" {
		status := models.MemberStatus(req.Status)
		filter.Status = &status
	}

	members, total, err := s.members.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	return members, total, nil
}

// Withdraw marks a member WITHDRAWN. The record and its attendance
// history stay in place; only future check-ins are blocked.
func (s *MemberService) Withdraw(ctx context.Context, id string) (*models.Member, error) {
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if member.Status == models.MemberStatusWithdrawn {
		return member, nil
	}

	if err := s.members.UpdateStatus(ctx, id, models.MemberStatusWithdrawn); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw member")
	}
	member.Status = models.MemberStatusWithdrawn

	s.logger.Info("member withdrawn", zap.String("member_id", id))
	return member, nil
}

// Enroll creates a membership in the active cohort, seeding the deposit
// balance and its INITIAL ledger entry atomically.
func (s *MemberService) Enroll(ctx context.Context, req EnrollRequest) (*models.CohortMemberDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	member, err := s.Get(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if member.Status == models.MemberStatusWithdrawn {
		return nil, appErrors.ErrMemberWithdrawn
	}

	cohort, err := s.cohorts.FindByGeneration(ctx, s.generation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrCohortNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
	}

	cm := &models.CohortMember{
		MemberID: req.MemberID,
		CohortID: cohort.ID,
		PartID:   req.PartID,
		TeamID:   req.TeamID,
	}
	if err := s.cohorts.CreateMembership(ctx, cm, s.initialDeposit); err != nil {
		if errors.Is(err, repository.ErrDuplicateMembership) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "member already enrolled in this cohort")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll member")
	}

	s.logger.Info("member enrolled",
		zap.String("member_id", req.MemberID),
		zap.String("membership_id", cm.ID),
		zap.Int("generation", cohort.Generation))
	return s.MembershipDetail(ctx, cm.ID)
}

// MembershipDetail loads one enrollment with member and assignment
// names attached.
func (s *MemberService) MembershipDetail(ctx context.Context, membershipID string) (*models.CohortMemberDetail, error) {
	detail, err := s.cohorts.FindMembershipDetail(ctx, membershipID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrCohortMemberNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership")
	}
	return detail, nil
}

// Roster lists every enrollment of the active cohort.
func (s *MemberService) Roster(ctx context.Context) ([]models.CohortMemberDetail, error) {
	cohort, err := s.cohorts.FindByGeneration(ctx, s.generation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrCohortNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
	}

	roster, err := s.cohorts.ListMembershipsByCohort(ctx, cohort.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roster")
	}
	return roster, nil
}
