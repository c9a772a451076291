package service

import "github.com/cohortly/attendance-api/internal/models"

// Penalty policy constants, in deposit units.
const (
	absencePenalty       = 10000
	latePenaltyPerMinute = 500
	latePenaltyCap       = 10000
)

// CalculatePenalty maps an attendance outcome to its monetary penalty.
// PRESENT and EXCUSED cost nothing, ABSENT costs the fixed penalty, and
// LATE accrues per minute up to the absence cap. A nil or negative
// lateMinutes is treated as zero so the result is never negative.
func CalculatePenalty(status models.AttendanceStatus, lateMinutes *int) int {
	switch status {
	case models.AttendanceStatusAbsent:
		return absencePenalty
	case models.AttendanceStatusLate:
		minutes := 0
		if lateMinutes != nil && *lateMinutes > 0 {
			minutes = *lateMinutes
		}
		penalty := minutes * latePenaltyPerMinute
		if penalty > latePenaltyCap {
			penalty = latePenaltyCap
		}
		return penalty
	default:
		return 0
	}
}
