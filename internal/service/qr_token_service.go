package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cohortly/attendance-api/internal/models"
	"github.com/cohortly/attendance-api/internal/repository"
	appErrors "github.com/cohortly/attendance-api/pkg/errors"
)

type qrTokenRepository interface {
	FindByID(ctx context.Context, id string) (*models.QRToken, error)
	ActiveExists(ctx context.Context, sessionID string, now time.Time) (bool, error)
	Issue(ctx context.Context, sessionID string, now time.Time, ttl time.Duration) (*models.QRToken, error)
	Renew(ctx context.Context, tokenID string, now time.Time, ttl time.Duration) (*models.QRToken, error)
}

// QRTokenService manages the session check-in token lifecycle: one
// active token per session, soft expiry, atomic rotation.
type QRTokenService struct {
	tokens qrTokenRepository
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time
}

// NewQRTokenService constructs the service. ttl is the validity window
// given to every issued token.
func NewQRTokenService(tokens qrTokenRepository, logger *zap.Logger, ttl time.Duration) *QRTokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &QRTokenService{tokens: tokens, logger: logger, ttl: ttl, now: time.Now}
}

// Issue creates a token for the session, rejecting the call when one is
// already active.
func (s *QRTokenService) Issue(ctx context.Context, sessionID string) (*models.QRToken, error) {
	token, err := s.tokens.Issue(ctx, sessionID, s.now().UTC(), s.ttl)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.ErrSessionNotFound
		case errors.Is(err, repository.ErrTokenActive):
			return nil, appErrors.ErrQRAlreadyActive
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue qr token")
		}
	}
	s.logger.Info("qr token issued", zap.String("session_id", sessionID), zap.String("token_id", token.ID))
	return token, nil
}

// Renew expires the identified token and returns its freshly issued
// replacement; the swap is atomic.
func (s *QRTokenService) Renew(ctx context.Context, tokenID string) (*models.QRToken, error) {
	token, err := s.tokens.Renew(ctx, tokenID, s.now().UTC(), s.ttl)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrQRNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to renew qr token")
	}
	s.logger.Info("qr token renewed", zap.String("old_token_id", tokenID), zap.String("token_id", token.ID))
	return token, nil
}

// ActiveForSession reports whether a session currently has a live token.
func (s *QRTokenService) ActiveForSession(ctx context.Context, sessionID string) (bool, error) {
	active, err := s.tokens.ActiveExists(ctx, sessionID, s.now().UTC())
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check token state")
	}
	return active, nil
}
