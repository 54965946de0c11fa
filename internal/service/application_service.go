package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/elimu-fund/bursary-api/internal/models"
	"github.com/elimu-fund/bursary-api/internal/repository"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
)

type applicationRepo interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	ListByProfile(ctx context.Context, profileID string) ([]models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
	Create(ctx context.Context, app *models.Application, actorID string) error
	UpdateDraft(ctx context.Context, app *models.Application) (bool, error)
	CountByStatus(ctx context.Context, periodID string) ([]models.StatusCount, error)
}

type applicationProfileRepo interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
}

type applicationPeriodRepo interface {
	FindActive(ctx context.Context) (*models.ApplicationPeriod, error)
}

// CreateApplicationRequest carries the working fields of a new draft.
type CreateApplicationRequest struct {
	AmountRequested   float64 `json:"amount_requested" validate:"required,gt=0"`
	TotalAnnualFees   float64 `json:"total_annual_fees" validate:"required,gt=0"`
	OutstandingFees   float64 `json:"outstanding_fees" validate:"gte=0"`
	OtherBursaries    *string `json:"other_bursaries,omitempty"`
	PersonalStatement string  `json:"personal_statement" validate:"required,min=50,max=3000"`
}

// UpdateDraftRequest mirrors CreateApplicationRequest for draft edits.
type UpdateDraftRequest struct {
	AmountRequested   float64 `json:"amount_requested" validate:"required,gt=0"`
	TotalAnnualFees   float64 `json:"total_annual_fees" validate:"required,gt=0"`
	OutstandingFees   float64 `json:"outstanding_fees" validate:"gte=0"`
	OtherBursaries    *string `json:"other_bursaries,omitempty"`
	PersonalStatement string  `json:"personal_statement" validate:"required,min=50,max=3000"`
}

// ApplicationService covers the student-facing application operations and
// the admin register queries. Status changes are delegated to the
// lifecycle service.
type ApplicationService struct {
	applications applicationRepo
	profiles     applicationProfileRepo
	periods      applicationPeriodRepo
	eligibility  *EligibilityService
	lifecycle    *LifecycleService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewApplicationService constructs ApplicationService.
func NewApplicationService(applications applicationRepo, profiles applicationProfileRepo, periods applicationPeriodRepo, eligibility *EligibilityService, lifecycle *LifecycleService, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{
		applications: applications,
		profiles:     profiles,
		periods:      periods,
		eligibility:  eligibility,
		lifecycle:    lifecycle,
		validator:    validate,
		logger:       logger,
	}
}

// ownedApplication loads an application and verifies the requesting user's
// profile owns it. A foreign application is reported as not found, never as
// forbidden, so ownership cannot be probed.
func (s *ApplicationService) ownedApplication(ctx context.Context, userID, applicationID string) (*models.Application, *models.StudentProfile, error) {
	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.ProfileID != profile.ID {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	return app, profile, nil
}

// CreateDraft opens a new DRAFT application after the full eligibility
// policy passes. Each failure keeps its own kind: a missing profile is not
// found, an occupied active slot is a conflict, anything else is a
// validation failure.
func (s *ApplicationService) CreateDraft(ctx context.Context, userID string, req CreateApplicationRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	eligibility, err := s.eligibility.Check(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !eligibility.CanApply {
		if eligibility.HasActiveApplication {
			return nil, appErrors.Clone(appErrors.ErrConflict, eligibility.Reason)
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, eligibility.Reason)
	}

	period, err := s.periods.FindActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application period")
	}

	app := &models.Application{
		ProfileID:         profile.ID,
		PeriodID:          period.ID,
		AmountRequested:   req.AmountRequested,
		TotalAnnualFees:   req.TotalAnnualFees,
		OutstandingFees:   req.OutstandingFees,
		OtherBursaries:    req.OtherBursaries,
		PersonalStatement: req.PersonalStatement,
	}
	if err := s.applications.Create(ctx, app, userID); err != nil {
		if errors.Is(err, repository.ErrDuplicateActive) {
			// Lost a create race or the period already holds a live
			// application the eligibility read missed.
			return nil, appErrors.Clone(appErrors.ErrConflict, "an application already exists for this period")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}

	s.logger.Info("application draft created",
		zap.String("application_id", app.ID),
		zap.String("application_number", app.ApplicationNumber),
		zap.String("profile_id", profile.ID))
	return app, nil
}

// UpdateDraft edits the working fields of the caller's own DRAFT. Editing
// any other state is a conflict.
func (s *ApplicationService) UpdateDraft(ctx context.Context, userID, applicationID string, req UpdateDraftRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	app, _, err := s.ownedApplication(ctx, userID, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusDraft {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only draft applications can be edited")
	}

	app.AmountRequested = req.AmountRequested
	app.TotalAnnualFees = req.TotalAnnualFees
	app.OutstandingFees = req.OutstandingFees
	app.OtherBursaries = req.OtherBursaries
	app.PersonalStatement = req.PersonalStatement

	updated, err := s.applications.UpdateDraft(ctx, app)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update draft")
	}
	if !updated {
		// A concurrent submission won the race.
		return nil, appErrors.Clone(appErrors.ErrConflict, "only draft applications can be edited")
	}
	return app, nil
}

// Submit moves the caller's own DRAFT to PENDING through the lifecycle
// service, which freezes the snapshot.
func (s *ApplicationService) Submit(ctx context.Context, claims *models.JWTClaims, applicationID string) (*models.Application, error) {
	if _, _, err := s.ownedApplication(ctx, claims.UserID, applicationID); err != nil {
		return nil, err
	}
	return s.lifecycle.Transition(ctx, applicationID, TransitionRequest{Status: models.StatusPending}, claims)
}

// Get returns the caller's own application.
func (s *ApplicationService) Get(ctx context.Context, userID, applicationID string) (*models.Application, error) {
	app, _, err := s.ownedApplication(ctx, userID, applicationID)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// ListOwn returns every application of the caller's profile, newest first.
func (s *ApplicationService) ListOwn(ctx context.Context, userID string) ([]models.Application, error) {
	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Application{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	apps, err := s.applications.ListByProfile(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return apps, nil
}

// AdminGet returns any application by identifier.
func (s *ApplicationService) AdminGet(ctx context.Context, applicationID string) (*models.Application, error) {
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return app, nil
}

// AdminList returns the filtered, paginated register with applicant context.
func (s *ApplicationService) AdminList(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	apps, total, err := s.applications.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	if apps == nil {
		apps = []models.ApplicationDetail{}
	}
	return apps, total, nil
}

// Summary aggregates the register per status, optionally scoped to a period.
func (s *ApplicationService) Summary(ctx context.Context, periodID string) ([]models.StatusCount, error) {
	counts, err := s.applications.CountByStatus(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise applications")
	}
	if counts == nil {
		counts = []models.StatusCount{}
	}
	return counts, nil
}
