package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/cohortly/attendance-api/internal/models"
	"github.com/cohortly/attendance-api/internal/repository"
	appErrors "github.com/cohortly/attendance-api/pkg/errors"
	"github.com/cohortly/attendance-api/pkg/export"
)

type depositRepository interface {
	Apply(ctx context.Context, membershipID string, amount int, entryType models.DepositEntryType, attendanceID *string, description string) (*models.DepositEntry, error)
	History(ctx context.Context, membershipID string) ([]models.DepositEntry, error)
}

type membershipReader interface {
	FindMembershipByID(ctx context.Context, id string) (*models.CohortMember, error)
}

// DepositService reads and adjusts the per-membership deposit ledger.
type DepositService struct {
	deposits    depositRepository
	memberships membershipReader
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewDepositService constructs the service.
func NewDepositService(deposits depositRepository, memberships membershipReader, metrics *MetricsService, logger *zap.Logger) *DepositService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepositService{deposits: deposits, memberships: memberships, metrics: metrics, logger: logger}
}

// History returns the membership's ledger, oldest first, after checking
// that the balance still reconciles against it. A mismatch is a bug,
// not a user error, and is surfaced as an internal failure.
func (s *DepositService) History(ctx context.Context, membershipID string) ([]models.DepositEntry, error) {
	membership, err := s.loadMembership(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	entries, err := s.deposits.History(ctx, membershipID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deposit history")
	}

	sum := 0
	for _, entry := range entries {
		sum += entry.Amount
	}
	if sum != membership.Deposit {
		s.logger.Error("deposit ledger out of balance",
			zap.String("membership_id", membershipID),
			zap.Int("ledger_sum", sum),
			zap.Int("deposit", membership.Deposit))
		return nil, appErrors.Clone(appErrors.ErrInternal, "deposit ledger inconsistent")
	}

	return entries, nil
}

// Adjust applies a standalone signed adjustment: positive amounts are
// credited as REFUND entries, negative amounts debited as PENALTY
// entries. A debit past zero is rejected without writing anything.
func (s *DepositService) Adjust(ctx context.Context, membershipID string, amount int, description string) (*models.DepositEntry, error) {
	if amount == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "adjustment amount must be non-zero")
	}
	if _, err := s.loadMembership(ctx, membershipID); err != nil {
		return nil, err
	}

	entryType := models.DepositEntryRefund
	if amount < 0 {
		entryType = models.DepositEntryPenalty
	}
	if description == "" {
		description = fmt.Sprintf("manual adjustment %d", amount)
	}

	entry, err := s.deposits.Apply(ctx, membershipID, amount, entryType, nil, description)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientDeposit) {
			return nil, appErrors.ErrDepositInsufficient
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to adjust deposit")
	}

	if s.metrics != nil {
		s.metrics.RecordLedgerEntry(string(entryType))
	}
	s.logger.Info("deposit adjusted",
		zap.String("membership_id", membershipID),
		zap.Int("amount", amount),
		zap.Int("balance_after", entry.BalanceAfter))
	return entry, nil
}

// ExportHistory renders the ledger as CSV or PDF.
func (s *DepositService) ExportHistory(ctx context.Context, membershipID, format string) ([]byte, string, error) {
	entries, err := s.History(ctx, membershipID)
	if err != nil {
		return nil, "", err
	}

	table := export.Table{
		Title:   "Deposit History",
		Columns: []string{"Date", "Type", "Amount", "Balance After", "Description"},
	}
	for _, entry := range entries {
		table.Rows = append(table.Rows, []string{
			entry.CreatedAt.Format("2006-01-02 15:04"),
			string(entry.Type),
			strconv.Itoa(entry.Amount),
			strconv.Itoa(entry.BalanceAfter),
			entry.Description,
		})
	}

	switch format {
	case "pdf":
		payload, err := export.RenderPDF(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		payload, err := export.RenderCSV(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	}
}

func (s *DepositService) loadMembership(ctx context.Context, membershipID string) (*models.CohortMember, error) {
	membership, err := s.memberships.FindMembershipByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrCohortMemberNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership")
	}
	return membership, nil
}
