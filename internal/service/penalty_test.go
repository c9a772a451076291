package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cohortly/attendance-api/internal/models"
)

func intPtr(v int) *int { return &v }

func TestCalculatePenalty(t *testing.T) {
	tests := []struct {
		name        string
		status      models.AttendanceStatus
		lateMinutes *int
		want        int
	}{
		{"present", models.AttendanceStatusPresent, nil, 0},
		{"excused", models.AttendanceStatusExcused, nil, 0},
		{"absent", models.AttendanceStatusAbsent, nil, 10000},
		{"absent ignores minutes", models.AttendanceStatusAbsent, intPtr(5), 10000},
		{"late nil minutes", models.AttendanceStatusLate, nil, 0},
		{"late one minute", models.AttendanceStatusLate, intPtr(1), 500},
		{"late below cap", models.AttendanceStatusLate, intPtr(19), 9500},
		{"late at cap", models.AttendanceStatusLate, intPtr(20), 10000},
		{"late past cap", models.AttendanceStatusLate, intPtr(25), 10000},
		{"late far past cap", models.AttendanceStatusLate, intPtr(300), 10000},
		{"late zero minutes", models.AttendanceStatusLate, intPtr(0), 0},
		{"late negative minutes", models.AttendanceStatusLate, intPtr(-10), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculatePenalty(tt.status, tt.lateMinutes))
		})
	}
}
