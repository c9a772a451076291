package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cohortly/attendance-api/internal/models"
	"github.com/cohortly/attendance-api/internal/repository"
	appErrors "github.com/cohortly/attendance-api/pkg/errors"
	"github.com/cohortly/attendance-api/pkg/export"
)

type qrTokenReader interface {
	FindByHash(ctx context.Context, hashValue string) (*models.QRToken, error)
}

type sessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type memberReader interface {
	FindByID(ctx context.Context, id string) (*models.Member, error)
}

type cohortReader interface {
	FindByGeneration(ctx context.Context, generation int) (*models.Cohort, error)
	FindMembership(ctx context.Context, memberID, cohortID string) (*models.CohortMember, error)
}

type attendanceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	ExistsBySessionAndMember(ctx context.Context, sessionID, memberID string) (bool, error)
	ListByMember(ctx context.Context, memberID string) ([]models.Attendance, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Attendance, error)
	ListBySessionWithMembers(ctx context.Context, sessionID string) ([]models.AttendanceWithMember, error)
	CreateWithLedger(ctx context.Context, att *models.Attendance, membershipID string, incrementExcuse bool, description string) (*models.Attendance, error)
	UpdateWithLedger(ctx context.Context, att *models.Attendance, membershipID string, excuseDelta, diff int, description string) (*models.Attendance, error)
}

// AttendanceService runs the check-in validation pipeline, the
// administrative registration path, and the correction flow.
type AttendanceService struct {
	tokens      qrTokenReader
	sessions    sessionReader
	members     memberReader
	cohorts     cohortReader
	attendances attendanceRepository
	validator   *validator.Validate
	logger      *zap.Logger

	generation int
	location   *time.Location
	now        func() time.Time
}

// NewAttendanceService constructs the service. location is the fixed
// reference zone for lateness comparison; generation identifies the
// active cohort.
func NewAttendanceService(tokens qrTokenReader, sessions sessionReader, members memberReader, cohorts cohortReader, attendances attendanceRepository, validate *validator.Validate, logger *zap.Logger, generation int, location *time.Location) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	svc := &AttendanceService{
		tokens:      tokens,
		sessions:    sessions,
		members:     members,
		cohorts:     cohorts,
		attendances: attendances,
		validator:   validate,
		logger:      logger,
		generation:  generation,
		location:    location,
		now:         time.Now,
	}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// CheckInRequest is the member-facing check-in payload.
type CheckInRequest struct {
	HashValue string `json:"hash_value" validate:"required"`
	MemberID  string `json:"member_id" validate:"required"`
}

// RegisterAttendanceRequest is the admin registration payload.
type RegisterAttendanceRequest struct {
	SessionID   string  `json:"session_id" validate:"required"`
	MemberID    string  `json:"member_id" validate:"required"`
	Status      string  `json:"status" validate:"required,attendance_status"`
	LateMinutes *int    `json:"late_minutes" validate:"omitempty,gte=0"`
	Reason      *string `json:"reason"`
}

// CorrectAttendanceRequest is the admin correction payload. Reason is a
// partial update: nil leaves the stored reason untouched.
type CorrectAttendanceRequest struct {
	Status      string  `json:"status" validate:"required,attendance_status"`
	LateMinutes *int    `json:"late_minutes" validate:"omitempty,gte=0"`
	Reason      *string `json:"reason"`
}

// CheckIn validates a QR check-in through the ordered gate sequence and
// persists the attendance together with any penalty debit. The gate
// order is part of the API contract: callers receive the first
// applicable error.
func (s *AttendanceService) CheckIn(ctx context.Context, req CheckInRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}

	// Gate 1: token resolves by hash.
	token, err := s.tokens.FindByHash(ctx, req.HashValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrQRInvalid
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve qr token")
	}

	// Gate 2: token window still open.
	now := s.now().In(s.location)
	if token.Expired(now) {
		return nil, appErrors.ErrQRExpired
	}

	// Gate 3: session must be in progress.
	session, err := s.sessions.FindByID(ctx, token.SessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Status != models.SessionStatusInProgress {
		return nil, appErrors.ErrSessionNotInProgress
	}

	// Gates 4-5: member exists and has not withdrawn.
	member, err := s.loadMember(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if member.Status == models.MemberStatusWithdrawn {
		return nil, appErrors.ErrMemberWithdrawn
	}

	// Gate 6: one attendance per (session, member).
	exists, err := s.attendances.ExistsBySessionAndMember(ctx, session.ID, member.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if exists {
		return nil, appErrors.ErrAttendanceAlreadyChecked
	}

	// Gate 7: membership in the active cohort.
	membership, err := s.loadMembership(ctx, member.ID)
	if err != nil {
		return nil, err
	}

	sessionAt, err := sessionTime(session, s.location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "malformed session schedule")
	}

	status := models.AttendanceStatusPresent
	var lateMinutes *int
	if now.After(sessionAt) {
		minutes := int(now.Sub(sessionAt).Minutes())
		status = models.AttendanceStatusLate
		lateMinutes = &minutes
	}

	penalty := CalculatePenalty(status, lateMinutes)
	checkedInAt := now.UTC()
	att := &models.Attendance{
		SessionID:     session.ID,
		MemberID:      member.ID,
		QRTokenID:     &token.ID,
		Status:        status,
		LateMinutes:   lateMinutes,
		PenaltyAmount: penalty,
		CheckedInAt:   &checkedInAt,
	}

	description := fmt.Sprintf("qr check-in - %s penalty %d", status, penalty)
	created, err := s.attendances.CreateWithLedger(ctx, att, membership.ID, false, description)
	if err != nil {
		return nil, s.mapWriteError(err, "check-in failed")
	}

	s.logger.Info("member checked in",
		zap.String("session_id", session.ID),
		zap.String("member_id", member.ID),
		zap.String("status", string(status)),
		zap.Int("penalty", penalty))
	return created, nil
}

// Register records an attendance outcome on behalf of an admin. There
// is no token or time-of-day gate; the supplied status is authoritative.
// An EXCUSED registration consumes one slot of the excuse quota.
func (s *AttendanceService) Register(ctx context.Context, req RegisterAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	status := models.AttendanceStatus(strings.ToUpper(req.Status))

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	member, err := s.loadMember(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if member.Status == models.MemberStatusWithdrawn {
		return nil, appErrors.ErrMemberWithdrawn
	}

	exists, err := s.attendances.ExistsBySessionAndMember(ctx, session.ID, member.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if exists {
		return nil, appErrors.ErrAttendanceAlreadyChecked
	}

	membership, err := s.loadMembership(ctx, member.ID)
	if err != nil {
		return nil, err
	}

	penalty := CalculatePenalty(status, req.LateMinutes)
	att := &models.Attendance{
		SessionID:     session.ID,
		MemberID:      member.ID,
		Status:        status,
		LateMinutes:   req.LateMinutes,
		PenaltyAmount: penalty,
		Reason:        req.Reason,
	}

	description := fmt.Sprintf("attendance registered - %s penalty %d", status, penalty)
	created, err := s.attendances.CreateWithLedger(ctx, att, membership.ID, status == models.AttendanceStatusExcused, description)
	if err != nil {
		return nil, s.mapWriteError(err, "registration failed")
	}

	s.logger.Info("attendance registered",
		zap.String("session_id", session.ID),
		zap.String("member_id", member.ID),
		zap.String("status", string(status)))
	return created, nil
}

// Correct mutates an existing attendance record, applying the penalty
// delta to the deposit ledger and adjusting the excuse quota. The
// whole correction is one atomic unit; a rejected debit leaves every
// field and counter as it was.
func (s *AttendanceService) Correct(ctx context.Context, attendanceID string, req CorrectAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid correction payload")
	}
	newStatus := models.AttendanceStatus(strings.ToUpper(req.Status))

	att, err := s.attendances.FindByID(ctx, attendanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAttendanceNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	membership, err := s.loadMembership(ctx, att.MemberID)
	if err != nil {
		return nil, err
	}

	oldStatus := att.Status
	oldPenalty := att.PenaltyAmount
	newPenalty := CalculatePenalty(newStatus, req.LateMinutes)

	excuseDelta := 0
	switch {
	case oldStatus != models.AttendanceStatusExcused && newStatus == models.AttendanceStatusExcused:
		excuseDelta = 1
	case oldStatus == models.AttendanceStatusExcused && newStatus != models.AttendanceStatusExcused:
		excuseDelta = -1
	}

	diff := newPenalty - oldPenalty
	att.Status = newStatus
	att.LateMinutes = req.LateMinutes
	att.PenaltyAmount = newPenalty
	if req.Reason != nil {
		att.Reason = req.Reason
	}

	var description string
	switch {
	case diff > 0:
		description = fmt.Sprintf("attendance corrected - additional penalty %d", diff)
	case diff < 0:
		description = fmt.Sprintf("attendance corrected - refund %d", -diff)
	}

	updated, err := s.attendances.UpdateWithLedger(ctx, att, membership.ID, excuseDelta, diff, description)
	if err != nil {
		return nil, s.mapWriteError(err, "correction failed")
	}

	s.logger.Info("attendance corrected",
		zap.String("attendance_id", att.ID),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(newStatus)),
		zap.Int("penalty_diff", diff))
	return updated, nil
}

// ListByMember returns a member's attendance history.
func (s *AttendanceService) ListByMember(ctx context.Context, memberID string) ([]models.Attendance, error) {
	if _, err := s.loadMember(ctx, memberID); err != nil {
		return nil, err
	}
	rows, err := s.attendances.ListByMember(ctx, memberID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendances")
	}
	return rows, nil
}

// ListBySession returns every record for one session.
func (s *AttendanceService) ListBySession(ctx context.Context, sessionID string) ([]models.Attendance, error) {
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	rows, err := s.attendances.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendances")
	}
	return rows, nil
}

// ExportSessionReport renders one session's attendance as a PDF,
// member names resolved and rows ordered by name.
func (s *AttendanceService) ExportSessionReport(ctx context.Context, sessionID string) ([]byte, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	rows, err := s.attendances.ListBySessionWithMembers(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendances")
	}

	table := export.Table{
		Title:   fmt.Sprintf("%s - %s %s", session.Title, session.Date, session.Time),
		Columns: []string{"Member", "Status", "Late (min)", "Penalty", "Checked In"},
	}
	for _, row := range rows {
		late := ""
		if row.LateMinutes != nil {
			late = strconv.Itoa(*row.LateMinutes)
		}
		checkedIn := ""
		if row.CheckedInAt != nil {
			checkedIn = row.CheckedInAt.In(s.location).Format("2006-01-02 15:04")
		}
		table.Rows = append(table.Rows, []string{row.MemberName, string(row.Status), late, strconv.Itoa(row.PenaltyAmount), checkedIn})
	}

	out, err := export.RenderPDF(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render session report")
	}
	return out, nil
}

// Summary aggregates a member's outcomes and current deposit.
func (s *AttendanceService) Summary(ctx context.Context, memberID string) (*models.AttendanceSummary, error) {
	if _, err := s.loadMember(ctx, memberID); err != nil {
		return nil, err
	}
	rows, err := s.attendances.ListByMember(ctx, memberID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendances")
	}

	summary := &models.AttendanceSummary{MemberID: memberID}
	for _, att := range rows {
		switch att.Status {
		case models.AttendanceStatusPresent:
			summary.Present++
		case models.AttendanceStatusAbsent:
			summary.Absent++
		case models.AttendanceStatusLate:
			summary.Late++
		case models.AttendanceStatusExcused:
			summary.Excused++
		}
		summary.TotalPenalty += att.PenaltyAmount
	}

	if membership, err := s.loadMembership(ctx, memberID); err == nil {
		deposit := membership.Deposit
		summary.Deposit = &deposit
	}
	return summary, nil
}

func (s *AttendanceService) loadMember(ctx context.Context, memberID string) (*models.Member, error) {
	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrMemberNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load member")
	}
	return member, nil
}

func (s *AttendanceService) loadMembership(ctx context.Context, memberID string) (*models.CohortMember, error) {
	cohort, err := s.cohorts.FindByGeneration(ctx, s.generation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrCohortNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
	}
	membership, err := s.cohorts.FindMembership(ctx, memberID, cohort.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrCohortMemberNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership")
	}
	return membership, nil
}

func (s *AttendanceService) mapWriteError(err error, message string) error {
	switch {
	case errors.Is(err, repository.ErrInsufficientDeposit):
		return appErrors.ErrDepositInsufficient
	case errors.Is(err, repository.ErrDuplicateAttendance):
		return appErrors.ErrAttendanceAlreadyChecked
	case errors.Is(err, repository.ErrExcuseLimitExceeded):
		return appErrors.ErrExcuseLimitExceeded
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}

// sessionTime combines the stored date and time into an instant in the
// reference zone.
func sessionTime(session *models.Session, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", session.Date+" "+session.Time, loc)
}
