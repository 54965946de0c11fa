package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/elimu-fund/bursary-api/internal/models"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
)

type eligibilityProfileRepo interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
}

type eligibilityDocumentRepo interface {
	ListProfileDocuments(ctx context.Context, profileID string) ([]models.ProfileDocument, error)
}

type eligibilityApplicationRepo interface {
	FindActiveByProfile(ctx context.Context, profileID string) (*models.Application, error)
}

type eligibilityPeriodRepo interface {
	FindActive(ctx context.Context) (*models.ApplicationPeriod, error)
}

// EligibilityService answers whether a student may start a new application.
// It is read-only and safe to call repeatedly.
type EligibilityService struct {
	profiles     eligibilityProfileRepo
	documents    eligibilityDocumentRepo
	applications eligibilityApplicationRepo
	periods      eligibilityPeriodRepo
	logger       *zap.Logger
	now          func() time.Time
}

// NewEligibilityService constructs EligibilityService.
func NewEligibilityService(profiles eligibilityProfileRepo, documents eligibilityDocumentRepo, applications eligibilityApplicationRepo, periods eligibilityPeriodRepo, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{
		profiles:     profiles,
		documents:    documents,
		applications: applications,
		periods:      periods,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Check evaluates the eligibility policy in order; the first failing
// condition wins and is reported.
func (s *EligibilityService) Check(ctx context.Context, userID string) (*models.EligibilityResult, error) {
	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.EligibilityResult{
				CanApply: false,
				Reason:   "student profile not found; complete your profile before applying",
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	documents, err := s.documents.ListProfileDocuments(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile documents")
	}
	completeness := EvaluateCompleteness(profile, documents)

	result := &models.EligibilityResult{
		ProfileCompleteness: completeness.Percentage,
		MissingFields:       completeness.MissingFields,
	}

	if !completeness.IsComplete {
		result.Reason = "profile is incomplete"
		return result, nil
	}

	active, err := s.applications.FindActiveByProfile(ctx, profile.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active applications")
	}
	if active != nil {
		result.HasActiveApplication = true
		result.ActiveApplicationID = &active.ID
		status := active.Status
		result.ActiveApplicationStatus = &status
		result.Reason = fmt.Sprintf("an application (%s) is already in progress with status %s", active.ApplicationNumber, active.Status)
		return result, nil
	}

	period, err := s.periods.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result.Reason = "no application period is currently open"
			return result, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application period")
	}
	if !period.Open(s.now()) {
		result.Reason = fmt.Sprintf("application period %s is not open", period.Name)
		return result, nil
	}

	result.CanApply = true
	return result, nil
}
