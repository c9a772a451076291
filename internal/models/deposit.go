package models

import "time"

// DepositEntryType classifies a ledger line.
type DepositEntryType string

const (
	DepositEntryInitial DepositEntryType = "INITIAL"
	DepositEntryPenalty DepositEntryType = "PENALTY"
	DepositEntryRefund  DepositEntryType = "REFUND"
)

// DepositEntry is one immutable ledger line for a cohort membership.
// Amount is signed: negative for debits, positive for credits.
// BalanceAfter snapshots the membership balance at write time; the
// newest entry's BalanceAfter must equal the membership's deposit.
type DepositEntry struct {
	ID             string           `db:"id" json:"id"`
	CohortMemberID string           `db:"cohort_member_id" json:"cohort_member_id"`
	Type           DepositEntryType `db:"type" json:"type"`
	Amount         int              `db:"amount" json:"amount"`
	BalanceAfter   int              `db:"balance_after" json:"balance_after"`
	AttendanceID   *string          `db:"attendance_id" json:"attendance_id,omitempty"`
	Description    string           `db:"description" json:"description"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}
