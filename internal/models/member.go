package models

import "time"

// MemberStatus is the lifecycle state of a member. Withdrawal is a
// terminal soft state; member rows are never deleted.
type MemberStatus string

const (
	MemberStatusActive    MemberStatus = "ACTIVE"
	MemberStatusWithdrawn MemberStatus = "WITHDRAWN"
)

// Valid returns true when the status is a supported value.
func (s MemberStatus) Valid() bool {
	switch s {
	case MemberStatusActive, MemberStatusWithdrawn:
		return true
	default:
		return false
	}
}

// Member represents a program participant.
type Member struct {
	ID        string       `db:"id" json:"id"`
	Name      string       `db:"name" json:"name"`
	Email     string       `db:"email" json:"email"`
	Status    MemberStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// MemberFilter scopes member listing queries.
type MemberFilter struct {
	Search   string
	Status   *MemberStatus
	Page     int
	PageSize int
}
