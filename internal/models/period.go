package models

import "time"

// ApplicationPeriod is an administrator-defined window during which new
// applications may be started. At most one row is active at any time,
// enforced by a deactivate-all-then-activate transaction.
type ApplicationPeriod struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	StartDate    time.Time `db:"start_date" json:"start_date"`
	EndDate      time.Time `db:"end_date" json:"end_date"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Open reports whether the wall clock falls inside the period window.
func (p ApplicationPeriod) Open(now time.Time) bool {
	return !now.Before(p.StartDate) && !now.After(p.EndDate)
}

// PeriodFilter captures listing criteria for application periods.
type PeriodFilter struct {
	AcademicYear string
	IsActive     *bool
	Page         int
	PageSize     int
}
