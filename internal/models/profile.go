package models

import "time"

// StudentProfile holds the applicant's identity, location, institution and
// household attributes. One profile per user. Exactly one of NationalID and
// PassportNumber must be present; both are globally unique when set.
type StudentProfile struct {
	ID     string `db:"id" json:"id"`
	UserID string `db:"user_id" json:"user_id"`

	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Gender    string    `db:"gender" json:"gender"`
	BirthDate time.Time `db:"birth_date" json:"birth_date"`

	NationalID     *string `db:"national_id" json:"national_id,omitempty"`
	PassportNumber *string `db:"passport_number" json:"passport_number,omitempty"`

	CountyID    string `db:"county_id" json:"county_id"`
	SubCountyID string `db:"sub_county_id" json:"sub_county_id"`
	WardID      string `db:"ward_id" json:"ward_id"`

	InstitutionID   string `db:"institution_id" json:"institution_id"`
	AdmissionNumber string `db:"admission_number" json:"admission_number"`
	CourseName      string `db:"course_name" json:"course_name"`
	YearOfStudy     int    `db:"year_of_study" json:"year_of_study"`

	ParentStatus           string   `db:"parent_status" json:"parent_status"`
	HouseholdMonthlyIncome *float64 `db:"household_monthly_income" json:"household_monthly_income,omitempty"`
	HouseholdSize          int      `db:"household_size" json:"household_size"`
	HasDisability          bool     `db:"has_disability" json:"has_disability"`
	VulnerabilityDetails   *string  `db:"vulnerability_details" json:"vulnerability_details,omitempty"`

	EmergencyContactName  string `db:"emergency_contact_name" json:"emergency_contact_name"`
	EmergencyContactPhone string `db:"emergency_contact_phone" json:"emergency_contact_phone"`

	// IsComplete is a derived, cached flag recomputed after every mutation
	// to the profile or its documents.
	IsComplete bool      `db:"is_complete" json:"is_complete"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// CompletenessResult reports how close a profile is to submission readiness.
type CompletenessResult struct {
	IsComplete        bool           `json:"is_complete"`
	Percentage        int            `json:"percentage"`
	MissingFields     []string       `json:"missing_fields"`
	MissingDocuments  []DocumentType `json:"missing_documents"`
	RequiredDocuments []DocumentType `json:"required_documents"`
	UploadedDocuments []DocumentType `json:"uploaded_documents"`
}

// EligibilityResult is the outcome of the ordered eligibility policy.
type EligibilityResult struct {
	CanApply                bool               `json:"can_apply"`
	Reason                  string             `json:"reason,omitempty"`
	ProfileCompleteness     int                `json:"profile_completeness"`
	MissingFields           []string           `json:"missing_fields,omitempty"`
	HasActiveApplication    bool               `json:"has_active_application"`
	ActiveApplicationID     *string            `json:"active_application_id,omitempty"`
	ActiveApplicationStatus *ApplicationStatus `json:"active_application_status,omitempty"`
}
