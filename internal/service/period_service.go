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

type periodRepo interface {
	List(ctx context.Context, filter models.PeriodFilter) ([]models.ApplicationPeriod, int, error)
	FindByID(ctx context.Context, id string) (*models.ApplicationPeriod, error)
	FindActive(ctx context.Context) (*models.ApplicationPeriod, error)
	Create(ctx context.Context, period *models.ApplicationPeriod) error
	Update(ctx context.Context, period *models.ApplicationPeriod) error
	SetActive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	CountApplications(ctx context.Context, id string) (int, error)
}

// PeriodRequest carries the editable fields of an application period.
type PeriodRequest struct {
	Name         string    `json:"name" validate:"required,min=3,max=120"`
	AcademicYear string    `json:"academic_year" validate:"required"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	EndDate      time.Time `json:"end_date" validate:"required"`
}

// PeriodService manages application period windows.
type PeriodService struct {
	periods   periodRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPeriodService constructs PeriodService.
func NewPeriodService(periods periodRepo, validate *validator.Validate, logger *zap.Logger) *PeriodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{periods: periods, validator: validate, logger: logger}
}

func (s *PeriodService) validateRequest(req PeriodRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	return nil
}

// List returns periods matching the filter plus the total count.
func (s *PeriodService) List(ctx context.Context, filter models.PeriodFilter) ([]models.ApplicationPeriod, int, error) {
	periods, total, err := s.periods.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list periods")
	}
	if periods == nil {
		periods = []models.ApplicationPeriod{}
	}
	return periods, total, nil
}

// Get loads one period.
func (s *PeriodService) Get(ctx context.Context, id string) (*models.ApplicationPeriod, error) {
	period, err := s.periods.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}
	return period, nil
}

// GetActive returns the current active period, or nil when none exists.
func (s *PeriodService) GetActive(ctx context.Context) (*models.ApplicationPeriod, error) {
	period, err := s.periods.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active period")
	}
	return period, nil
}

// Create inserts a new, initially inactive period.
func (s *PeriodService) Create(ctx context.Context, req PeriodRequest) (*models.ApplicationPeriod, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	period := &models.ApplicationPeriod{
		Name:         req.Name,
		AcademicYear: req.AcademicYear,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
	}
	if err := s.periods.Create(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create period")
	}
	s.logger.Info("application period created", zap.String("period_id", period.ID), zap.String("name", period.Name))
	return period, nil
}

// Update modifies an existing period's window and labels.
func (s *PeriodService) Update(ctx context.Context, id string, req PeriodRequest) (*models.ApplicationPeriod, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	period, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	period.Name = req.Name
	period.AcademicYear = req.AcademicYear
	period.StartDate = req.StartDate
	period.EndDate = req.EndDate
	if err := s.periods.Update(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update period")
	}
	return period, nil
}

// Activate makes the period the single active one.
func (s *PeriodService) Activate(ctx context.Context, id string) (*models.ApplicationPeriod, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.periods.SetActive(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate period")
	}
	s.logger.Info("application period activated", zap.String("period_id", id))
	return s.Get(ctx, id)
}

// Delete removes a period unless applications reference it.
func (s *PeriodService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.periods.CountApplications(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check period references")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "period has applications and cannot be deleted")
	}
	if err := s.periods.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete period")
	}
	return nil
}
