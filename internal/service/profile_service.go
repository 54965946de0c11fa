package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/elimu-fund/bursary-api/internal/models"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
)

type profileRepo interface {
	FindByID(ctx context.Context, id string) (*models.StudentProfile, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
	ExistsByNationalID(ctx context.Context, nationalID, excludeID string) (bool, error)
	ExistsByPassport(ctx context.Context, passport, excludeID string) (bool, error)
	Create(ctx context.Context, profile *models.StudentProfile) error
	Update(ctx context.Context, profile *models.StudentProfile) error
}

type profileDocumentRepo interface {
	ListProfileDocuments(ctx context.Context, profileID string) ([]models.ProfileDocument, error)
}

type profileApplicationRepo interface {
	FindActiveByProfile(ctx context.Context, profileID string) (*models.Application, error)
}

// ProfileRequest carries every editable profile attribute.
type ProfileRequest struct {
	FirstName string    `json:"first_name" validate:"required,min=2,max=60"`
	LastName  string    `json:"last_name" validate:"required,min=2,max=60"`
	Gender    string    `json:"gender" validate:"required,oneof=MALE FEMALE OTHER"`
	BirthDate time.Time `json:"birth_date" validate:"required"`

	NationalID     *string `json:"national_id,omitempty" validate:"omitempty,min=6,max=20"`
	PassportNumber *string `json:"passport_number,omitempty" validate:"omitempty,min=6,max=20"`

	CountyID    string `json:"county_id" validate:"required,uuid"`
	SubCountyID string `json:"sub_county_id" validate:"required,uuid"`
	WardID      string `json:"ward_id" validate:"required,uuid"`

	InstitutionID   string `json:"institution_id" validate:"required,uuid"`
	AdmissionNumber string `json:"admission_number" validate:"required,max=40"`
	CourseName      string `json:"course_name" validate:"required,max=120"`
	YearOfStudy     int    `json:"year_of_study" validate:"required,min=1,max=8"`

	ParentStatus           string   `json:"parent_status" validate:"required,oneof=BOTH_ALIVE ONE_DECEASED BOTH_DECEASED UNKNOWN"`
	HouseholdMonthlyIncome *float64 `json:"household_monthly_income,omitempty" validate:"omitempty,gte=0"`
	HouseholdSize          int      `json:"household_size" validate:"required,min=1,max=30"`
	HasDisability          bool     `json:"has_disability"`
	VulnerabilityDetails   *string  `json:"vulnerability_details,omitempty" validate:"omitempty,max=2000"`

	EmergencyContactName  string `json:"emergency_contact_name" validate:"required,max=120"`
	EmergencyContactPhone string `json:"emergency_contact_phone" validate:"required,e164"`
}

// ProfileService manages student profiles and their derived completeness.
type ProfileService struct {
	profiles     profileRepo
	documents    profileDocumentRepo
	applications profileApplicationRepo
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewProfileService constructs ProfileService.
func NewProfileService(profiles profileRepo, documents profileDocumentRepo, applications profileApplicationRepo, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{
		profiles:     profiles,
		documents:    documents,
		applications: applications,
		validator:    validate,
		logger:       logger,
	}
}

// checkIdentity enforces the exactly-one-of rule and global uniqueness of
// national ID and passport number.
func (s *ProfileService) checkIdentity(ctx context.Context, req ProfileRequest, excludeID string) error {
	hasNational := req.NationalID != nil && *req.NationalID != ""
	hasPassport := req.PassportNumber != nil && *req.PassportNumber != ""
	if hasNational == hasPassport {
		return appErrors.Clone(appErrors.ErrValidation, "exactly one of national_id and passport_number must be provided")
	}
	if hasNational {
		taken, err := s.profiles.ExistsByNationalID(ctx, *req.NationalID, excludeID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check national ID")
		}
		if taken {
			return appErrors.Clone(appErrors.ErrConflict, "national ID is already registered")
		}
		return nil
	}
	taken, err := s.profiles.ExistsByPassport(ctx, *req.PassportNumber, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check passport number")
	}
	if taken {
		return appErrors.Clone(appErrors.ErrConflict, "passport number is already registered")
	}
	return nil
}

func applyProfileRequest(profile *models.StudentProfile, req ProfileRequest) {
	profile.FirstName = req.FirstName
	profile.LastName = req.LastName
	profile.Gender = req.Gender
	profile.BirthDate = req.BirthDate
	profile.NationalID = req.NationalID
	profile.PassportNumber = req.PassportNumber
	profile.CountyID = req.CountyID
	profile.SubCountyID = req.SubCountyID
	profile.WardID = req.WardID
	profile.InstitutionID = req.InstitutionID
	profile.AdmissionNumber = req.AdmissionNumber
	profile.CourseName = req.CourseName
	profile.YearOfStudy = req.YearOfStudy
	profile.ParentStatus = req.ParentStatus
	profile.HouseholdMonthlyIncome = req.HouseholdMonthlyIncome
	profile.HouseholdSize = req.HouseholdSize
	profile.HasDisability = req.HasDisability
	profile.VulnerabilityDetails = req.VulnerabilityDetails
	profile.EmergencyContactName = req.EmergencyContactName
	profile.EmergencyContactPhone = req.EmergencyContactPhone
}

// Create opens the caller's profile. One profile per user account.
func (s *ProfileService) Create(ctx context.Context, userID string, req ProfileRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	if _, err := s.profiles.FindByUserID(ctx, userID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a profile already exists for this account")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing profile")
	}

	if err := s.checkIdentity(ctx, req, ""); err != nil {
		return nil, err
	}

	profile := &models.StudentProfile{UserID: userID}
	applyProfileRequest(profile, req)
	docs := []models.ProfileDocument{}
	profile.IsComplete = EvaluateCompleteness(profile, docs).IsComplete

	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create profile")
	}
	s.logger.Info("student profile created", zap.String("profile_id", profile.ID), zap.String("user_id", userID))
	return profile, nil
}

// Update edits the caller's profile. Profiles lock while an application is
// in flight so the reviewed data cannot shift under the reviewer.
func (s *ProfileService) Update(ctx context.Context, userID string, req ProfileRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	active, err := s.applications.FindActiveByProfile(ctx, profile.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active applications")
	}
	if active != nil && active.Status != models.StatusDraft {
		return nil, appErrors.Clone(appErrors.ErrConflict, "profile is locked while an application is under review")
	}

	if err := s.checkIdentity(ctx, req, profile.ID); err != nil {
		return nil, err
	}

	applyProfileRequest(profile, req)
	docs, err := s.documents.ListProfileDocuments(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile documents")
	}
	profile.IsComplete = EvaluateCompleteness(profile, docs).IsComplete

	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return profile, nil
}

// Get returns the caller's profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.StudentProfile, error) {
	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return profile, nil
}

// GetCompleteness evaluates the caller's profile against the submission
// prerequisites without persisting anything.
func (s *ProfileService) GetCompleteness(ctx context.Context, userID string) (*models.CompletenessResult, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.ListProfileDocuments(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile documents")
	}
	result := EvaluateCompleteness(profile, docs)
	return &result, nil
}
