package models

import "time"

// ApplicationStatus enumerates lifecycle states of a bursary application.
type ApplicationStatus string

const (
	StatusDraft       ApplicationStatus = "DRAFT"
	StatusPending     ApplicationStatus = "PENDING"
	StatusUnderReview ApplicationStatus = "UNDER_REVIEW"
	StatusApproved    ApplicationStatus = "APPROVED"
	StatusRejected    ApplicationStatus = "REJECTED"
	StatusDisbursed   ApplicationStatus = "DISBURSED"
)

// ActiveStatuses are the states in which an application still occupies the
// profile's single active-application slot.
var ActiveStatuses = []ApplicationStatus{StatusDraft, StatusPending, StatusUnderReview}

// IsTerminal reports whether the status has no outgoing transitions.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusDisbursed
}

// IsActive reports whether the status occupies the active-application slot.
func (s ApplicationStatus) IsActive() bool {
	return s == StatusDraft || s == StatusPending || s == StatusUnderReview
}

// Application is the central lifecycle record. Working fields are editable
// only in DRAFT; the snapshot_* columns are null until submission and
// immutable afterwards.
type Application struct {
	ID                string            `db:"id" json:"id"`
	ApplicationNumber string            `db:"application_number" json:"application_number"`
	ProfileID         string            `db:"profile_id" json:"profile_id"`
	PeriodID          string            `db:"period_id" json:"period_id"`
	Status            ApplicationStatus `db:"status" json:"status"`

	AmountRequested   float64 `db:"amount_requested" json:"amount_requested"`
	TotalAnnualFees   float64 `db:"total_annual_fees" json:"total_annual_fees"`
	OutstandingFees   float64 `db:"outstanding_fees" json:"outstanding_fees"`
	OtherBursaries    *string `db:"other_bursaries" json:"other_bursaries,omitempty"`
	PersonalStatement string  `db:"personal_statement" json:"personal_statement"`

	SnapshotFullName        *string `db:"snapshot_full_name" json:"snapshot_full_name,omitempty"`
	SnapshotNationalID      *string `db:"snapshot_national_id" json:"snapshot_national_id,omitempty"`
	SnapshotPassportNumber  *string `db:"snapshot_passport_number" json:"snapshot_passport_number,omitempty"`
	SnapshotInstitutionID   *string `db:"snapshot_institution_id" json:"snapshot_institution_id,omitempty"`
	SnapshotAdmissionNumber *string `db:"snapshot_admission_number" json:"snapshot_admission_number,omitempty"`
	SnapshotCountyID        *string `db:"snapshot_county_id" json:"snapshot_county_id,omitempty"`
	SnapshotSubCountyID     *string `db:"snapshot_sub_county_id" json:"snapshot_sub_county_id,omitempty"`
	SnapshotWardID          *string `db:"snapshot_ward_id" json:"snapshot_ward_id,omitempty"`
	SnapshotEmail           *string `db:"snapshot_email" json:"snapshot_email,omitempty"`
	SnapshotPhone           *string `db:"snapshot_phone" json:"snapshot_phone,omitempty"`

	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy  *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewNotes *string    `db:"review_notes" json:"review_notes,omitempty"`

	DisbursedAmount *float64   `db:"disbursed_amount" json:"disbursed_amount,omitempty"`
	DisbursedAt     *time.Time `db:"disbursed_at" json:"disbursed_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ApplicationSnapshot is the point-in-time copy of profile and account
// fields frozen at submission.
type ApplicationSnapshot struct {
	FullName        string  `json:"full_name"`
	NationalID      *string `json:"national_id,omitempty"`
	PassportNumber  *string `json:"passport_number,omitempty"`
	InstitutionID   string  `json:"institution_id"`
	AdmissionNumber string  `json:"admission_number"`
	CountyID        string  `json:"county_id"`
	SubCountyID     string  `json:"sub_county_id"`
	WardID          string  `json:"ward_id"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
}

// ApplicationDetail joins applicant context for admin listings.
type ApplicationDetail struct {
	Application
	ApplicantName  *string `db:"applicant_name" json:"applicant_name,omitempty"`
	ApplicantEmail *string `db:"applicant_email" json:"applicant_email,omitempty"`
}

// ApplicationFilter encapsulates allowed admin search parameters.
type ApplicationFilter struct {
	Status    ApplicationStatus
	PeriodID  string
	CountyID  string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StatusHistory is one row of the append-only status ledger. The ledger is
// the sole source of truth for time-in-status analytics and is never
// mutated or deleted.
type StatusHistory struct {
	ID             string             `db:"id" json:"id"`
	ApplicationID  string             `db:"application_id" json:"application_id"`
	PreviousStatus *ApplicationStatus `db:"previous_status" json:"previous_status,omitempty"`
	NewStatus      ApplicationStatus  `db:"new_status" json:"new_status"`
	ChangedBy      string             `db:"changed_by" json:"changed_by"`
	Reason         *string            `db:"reason" json:"reason,omitempty"`
	System         bool               `db:"is_system" json:"is_system"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
}

// StatusCount aggregates the register per lifecycle state.
type StatusCount struct {
	Status ApplicationStatus `db:"status" json:"status"`
	Count  int               `db:"count" json:"count"`
}

// BulkUpdateError captures one failed item of a bulk transition.
type BulkUpdateError struct {
	ApplicationID string `json:"application_id"`
	Error         string `json:"error"`
}

// BulkUpdateResult reports the partial-failure outcome of a bulk transition.
type BulkUpdateResult struct {
	Updated int               `json:"updated"`
	Failed  int               `json:"failed"`
	Success bool              `json:"success"`
	Errors  []BulkUpdateError `json:"errors"`
}
