package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/elimu-fund/bursary-api/internal/models"
)

const profileColumns = `id, user_id, first_name, last_name, gender, birth_date, national_id, passport_number,
        county_id, sub_county_id, ward_id, institution_id, admission_number, course_name, year_of_study,
        parent_status, household_monthly_income, household_size, has_disability, vulnerability_details,
        emergency_contact_name, emergency_contact_phone, is_complete, created_at, updated_at`

// ProfileRepository handles persistence of student profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByID loads a profile by identifier.
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*models.StudentProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_profiles WHERE id = $1`, profileColumns)
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindByUserID loads the profile owned by a user account.
func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_profiles WHERE user_id = $1`, profileColumns)
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ExistsByNationalID checks the global national ID uniqueness invariant.
func (r *ProfileRepository) ExistsByNationalID(ctx context.Context, nationalID, excludeID string) (bool, error) {
	return r.existsByIdentity(ctx, "national_id", nationalID, excludeID)
}

// ExistsByPassport checks the global passport number uniqueness invariant.
func (r *ProfileRepository) ExistsByPassport(ctx context.Context, passport, excludeID string) (bool, error) {
	return r.existsByIdentity(ctx, "passport_number", passport, excludeID)
}

func (r *ProfileRepository) existsByIdentity(ctx context.Context, column, value, excludeID string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM student_profiles WHERE %s = $1", column)
	args := []interface{}{value}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check profile identity: %w", err)
	}
	return true, nil
}

// Create persists a new profile record.
func (r *ProfileRepository) Create(ctx context.Context, profile *models.StudentProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	const query = `INSERT INTO student_profiles (id, user_id, first_name, last_name, gender, birth_date,
        national_id, passport_number, county_id, sub_county_id, ward_id, institution_id, admission_number,
        course_name, year_of_study, parent_status, household_monthly_income, household_size, has_disability,
        vulnerability_details, emergency_contact_name, emergency_contact_phone, is_complete, created_at, updated_at)
        VALUES (:id, :user_id, :first_name, :last_name, :gender, :birth_date, :national_id, :passport_number,
        :county_id, :sub_county_id, :ward_id, :institution_id, :admission_number, :course_name, :year_of_study,
        :parent_status, :household_monthly_income, :household_size, :has_disability, :vulnerability_details,
        :emergency_contact_name, :emergency_contact_phone, :is_complete, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// Update modifies an existing profile.
func (r *ProfileRepository) Update(ctx context.Context, profile *models.StudentProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE student_profiles SET first_name = :first_name, last_name = :last_name,
        gender = :gender, birth_date = :birth_date, national_id = :national_id,
        passport_number = :passport_number, county_id = :county_id, sub_county_id = :sub_county_id,
        ward_id = :ward_id, institution_id = :institution_id, admission_number = :admission_number,
        course_name = :course_name, year_of_study = :year_of_study, parent_status = :parent_status,
        household_monthly_income = :household_monthly_income, household_size = :household_size,
        has_disability = :has_disability, vulnerability_details = :vulnerability_details,
        emergency_contact_name = :emergency_contact_name, emergency_contact_phone = :emergency_contact_phone,
        is_complete = :is_complete, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// SetComplete persists the cached completeness flag.
func (r *ProfileRepository) SetComplete(ctx context.Context, id string, complete bool) error {
	const query = `UPDATE student_profiles SET is_complete = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, complete, time.Now().UTC()); err != nil {
		return fmt.Errorf("set profile completeness: %w", err)
	}
	return nil
}
