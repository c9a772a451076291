package models

import "time"

// Cohort is one generation of the program.
type Cohort struct {
	ID         string    `db:"id" json:"id"`
	Generation int       `db:"generation" json:"generation"`
	Name       string    `db:"name" json:"name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Part is a functional track inside a cohort.
type Part struct {
	ID       string `db:"id" json:"id"`
	CohortID string `db:"cohort_id" json:"cohort_id"`
	Name     string `db:"name" json:"name"`
}

// Team is a project team inside a cohort.
type Team struct {
	ID       string `db:"id" json:"id"`
	CohortID string `db:"cohort_id" json:"cohort_id"`
	Name     string `db:"name" json:"name"`
}

// CohortMember is a member's enrollment in one cohort generation. It
// owns the deposit balance; every balance change funnels through the
// deposit ledger so that the balance always equals the sum of its
// ledger entries.
type CohortMember struct {
	ID          string  `db:"id" json:"id"`
	MemberID    string  `db:"member_id" json:"member_id"`
	CohortID    string  `db:"cohort_id" json:"cohort_id"`
	PartID      *string `db:"part_id" json:"part_id,omitempty"`
	TeamID      *string `db:"team_id" json:"team_id,omitempty"`
	Deposit     int     `db:"deposit" json:"deposit"`
	ExcuseCount int     `db:"excuse_count" json:"excuse_count"`
}

// CohortMemberDetail joins membership with member and assignment names.
type CohortMemberDetail struct {
	CohortMember
	MemberName string  `db:"member_name" json:"member_name"`
	Generation int     `db:"generation" json:"generation"`
	PartName   *string `db:"part_name" json:"part_name,omitempty"`
	TeamName   *string `db:"team_name" json:"team_name,omitempty"`
}

// MaxExcuseCount bounds excused absences per membership within a
// generation.
const MaxExcuseCount = 3
