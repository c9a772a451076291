package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cohortly/attendance-api/internal/models"
	"github.com/cohortly/attendance-api/internal/repository"
	appErrors "github.com/cohortly/attendance-api/pkg/errors"
)

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	ListByCohort(ctx context.Context, cohortID string, filter models.SessionFilter) ([]models.Session, error)
	ListUpcomingByCohort(ctx context.Context, cohortID string) ([]models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	Cancel(ctx context.Context, sessionID string, now time.Time) error
}

type attendanceCountsReader interface {
	CountsBySession(ctx context.Context, sessionID string) (*models.SessionAttendanceCounts, error)
}

type cohortByGeneration interface {
	FindByGeneration(ctx context.Context, generation int) (*models.Cohort, error)
}

type tokenIssuer interface {
	Issue(ctx context.Context, sessionID string) (*models.QRToken, error)
	ActiveForSession(ctx context.Context, sessionID string) (bool, error)
}

// SessionService manages session scheduling and the cancellation
// transition that retires any live check-in tokens.
type SessionService struct {
	sessions  sessionRepository
	cohorts   cohortByGeneration
	counts    attendanceCountsReader
	tokens    tokenIssuer
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger

	generation int
	now        func() time.Time
}

// NewSessionService constructs the service.
func NewSessionService(sessions sessionRepository, cohorts cohortByGeneration, counts attendanceCountsReader, tokens tokenIssuer, cache *CacheService, validate *validator.Validate, logger *zap.Logger, generation int) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions:   sessions,
		cohorts:    cohorts,
		counts:     counts,
		tokens:     tokens,
		cache:      cache,
		validator:  validate,
		logger:     logger,
		generation: generation,
		now:        time.Now,
	}
}

// CreateSessionRequest is the scheduling payload.
type CreateSessionRequest struct {
	Title    string `json:"title" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Time     string `json:"time" validate:"required,datetime=15:04"`
	Location string `json:"location" validate:"required"`
}

// UpdateSessionRequest is a partial update; nil fields are untouched.
type UpdateSessionRequest struct {
	Title    *string `json:"title"`
	Date     *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time     *string `json:"time" validate:"omitempty,datetime=15:04"`
	Location *string `json:"location"`
	Status   *string `json:"status"`
}

const sessionCacheKey = "sessions:member:%s"

// ListForMembers returns the active cohort's non-cancelled sessions,
// served from cache when possible.
func (s *SessionService) ListForMembers(ctx context.Context) ([]models.Session, error) {
	cohort, err := s.currentCohort(ctx)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf(sessionCacheKey, cohort.ID)
	var cached []models.Session
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	sessions, err := s.sessions.ListUpcomingByCohort(ctx, cohort.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	s.cache.Set(ctx, key, sessions)
	return sessions, nil
}

// ListForAdmin returns the active cohort's sessions with attendance
// counts and live token state.
func (s *SessionService) ListForAdmin(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, error) {
	cohort, err := s.currentCohort(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByCohort(ctx, cohort.ID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	details := make([]models.SessionDetail, 0, len(sessions))
	for _, session := range sessions {
		detail, err := s.detail(ctx, session)
		if err != nil {
			return nil, err
		}
		details = append(details, *detail)
	}
	return details, nil
}

// Get returns one session with counts and token state.
func (s *SessionService) Get(ctx context.Context, id string) (*models.SessionDetail, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, *session)
}

// Create schedules a session for the active cohort and issues its first
// check-in token, matching the original scheduling flow.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	cohort, err := s.currentCohort(ctx)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		CohortID: cohort.ID,
		Title:    req.Title,
		Date:     req.Date,
		Time:     req.Time,
		Location: req.Location,
		Status:   models.SessionStatusScheduled,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	if _, err := s.tokens.Issue(ctx, session.ID); err != nil {
		s.logger.Warn("initial qr token issue failed", zap.String("session_id", session.ID), zap.Error(err))
	}

	s.invalidateCache(ctx)
	s.logger.Info("session created", zap.String("session_id", session.ID), zap.String("title", session.Title))
	return session, nil
}

// Update applies a partial edit. Cancelled sessions are immutable.
func (s *SessionService) Update(ctx context.Context, id string, req UpdateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusCancelled {
		return nil, appErrors.ErrSessionAlreadyCancelled
	}

	if req.Title != nil {
		session.Title = *req.Title
	}
	if req.Date != nil {
		session.Date = *req.Date
	}
	if req.Time != nil {
		session.Time = *req.Time
	}
	if req.Location != nil {
		session.Location = *req.Location
	}
	if req.Status != nil {
		status := models.SessionStatus(strings.ToUpper(*req.Status))
		if !status.Valid() || status == models.SessionStatusCancelled {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid session status")
		}
		session.Status = status
	}

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	s.invalidateCache(ctx)
	return session, nil
}

// Cancel is the terminal transition: it marks the session cancelled and
// expires every active token for it in one atomic step.
func (s *SessionService) Cancel(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusCancelled {
		return nil, appErrors.ErrSessionAlreadyCancelled
	}

	if err := s.sessions.Cancel(ctx, id, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrSessionCancelConflict) {
			return nil, appErrors.ErrSessionAlreadyCancelled
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel session")
	}

	session.Status = models.SessionStatusCancelled
	s.invalidateCache(ctx)
	s.logger.Info("session cancelled", zap.String("session_id", id))
	return session, nil
}

func (s *SessionService) detail(ctx context.Context, session models.Session) (*models.SessionDetail, error) {
	counts, err := s.counts.CountsBySession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance counts")
	}
	active, err := s.tokens.ActiveForSession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return &models.SessionDetail{Session: session, Counts: *counts, QRActive: active}, nil
}

func (s *SessionService) load(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *SessionService) currentCohort(ctx context.Context) (*models.Cohort, error) {
	cohort, err := s.cohorts.FindByGeneration(ctx, s.generation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrCohortNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
	}
	return cohort, nil
}

func (s *SessionService) invalidateCache(ctx context.Context) {
	if err := s.cache.DeleteByPattern(ctx, "sessions:*"); err != nil {
		s.logger.Warn("session cache invalidation failed", zap.Error(err))
	}
}
