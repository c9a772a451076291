package models

import "time"

// SessionStatus is the lifecycle state of a scheduled session.
// Cancellation is terminal: a cancelled session never transitions again.
type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "SCHEDULED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusCancelled  SessionStatus = "CANCELLED"
)

// Valid returns true when the status is a supported value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusInProgress, SessionStatusCompleted, SessionStatusCancelled:
		return true
	default:
		return false
	}
}

// Session is a scheduled cohort meeting. Date and Time are stored
// separately and combined in the configured reference zone when judging
// lateness.
type Session struct {
	ID        string        `db:"id" json:"id"`
	CohortID  string        `db:"cohort_id" json:"cohort_id"`
	Title     string        `db:"title" json:"title"`
	Date      string        `db:"date" json:"date"` // YYYY-MM-DD
	Time      string        `db:"time" json:"time"` // HH:MM
	Location  string        `db:"location" json:"location"`
	Status    SessionStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// SessionFilter scopes admin session listing.
type SessionFilter struct {
	Status   *SessionStatus
	DateFrom string
	DateTo   string
}

// SessionAttendanceCounts aggregates attendance outcomes for a session.
type SessionAttendanceCounts struct {
	Present int `db:"present" json:"present"`
	Absent  int `db:"absent" json:"absent"`
	Late    int `db:"late" json:"late"`
	Excused int `db:"excused" json:"excused"`
	Total   int `db:"total" json:"total"`
}

// SessionDetail is the admin view of a session with live token state.
type SessionDetail struct {
	Session
	Counts   SessionAttendanceCounts `json:"attendance_summary"`
	QRActive bool                    `json:"qr_active"`
}
