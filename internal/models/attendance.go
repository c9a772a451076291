package models

import "time"

// AttendanceStatus is the outcome of a member's interaction with one
// session.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusLate, AttendanceStatusAbsent, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Attendance records the outcome for one (session, member) pair. The
// pair is unique; records are created once and mutated only through the
// correction flow, never deleted.
type Attendance struct {
	ID            string           `db:"id" json:"id"`
	SessionID     string           `db:"session_id" json:"session_id"`
	MemberID      string           `db:"member_id" json:"member_id"`
	QRTokenID     *string          `db:"qr_token_id" json:"qr_token_id,omitempty"`
	Status        AttendanceStatus `db:"status" json:"status"`
	LateMinutes   *int             `db:"late_minutes" json:"late_minutes,omitempty"`
	PenaltyAmount int              `db:"penalty_amount" json:"penalty_amount"`
	Reason        *string          `db:"reason" json:"reason,omitempty"`
	CheckedInAt   *time.Time       `db:"checked_in_at" json:"checked_in_at,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceWithMember is an attendance row joined with the member's
// name, used by session-level listings and reports.
type AttendanceWithMember struct {
	Attendance
	MemberName string `db:"member_name" json:"member_name"`
}

// AttendanceSummary aggregates a member's outcomes across sessions.
type AttendanceSummary struct {
	MemberID     string `json:"member_id"`
	Present      int    `json:"present"`
	Absent       int    `json:"absent"`
	Late         int    `json:"late"`
	Excused      int    `json:"excused"`
	TotalPenalty int    `json:"total_penalty"`
	Deposit      *int   `json:"deposit,omitempty"`
}
