package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/elimu-fund/bursary-api/internal/models"
	"github.com/elimu-fund/bursary-api/internal/repository"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
)

// allowedTransitions is the authoritative transition table. DRAFT is the
// sole initial state; REJECTED and DISBURSED are terminal.
var allowedTransitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.StatusDraft:       {models.StatusPending},
	models.StatusPending:     {models.StatusUnderReview},
	models.StatusUnderReview: {models.StatusApproved, models.StatusRejected},
	models.StatusApproved:    {models.StatusDisbursed},
	models.StatusRejected:    {},
	models.StatusDisbursed:   {},
}

func canTransition(from, to models.ApplicationStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type lifecycleApplicationRepo interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	Transition(ctx context.Context, p repository.TransitionParams) error
	ListHistory(ctx context.Context, applicationID string) ([]models.StatusHistory, error)
}

type lifecycleDocumentRepo interface {
	HasApplicationDocumentOfType(ctx context.Context, applicationID string, docType models.DocumentType) (bool, error)
}

type lifecycleProfileRepo interface {
	FindByID(ctx context.Context, id string) (*models.StudentProfile, error)
}

type lifecycleUserRepo interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// statusChangeDispatcher hands committed transitions to the side-effect
// queue. Dispatch happens after commit and is best-effort.
type statusChangeDispatcher interface {
	StatusChanged(app *models.Application, previous models.ApplicationStatus, actorID string)
}

// TransitionRequest is the admin payload for a single status change.
type TransitionRequest struct {
	Status          models.ApplicationStatus `json:"status" validate:"required"`
	Notes           *string                  `json:"notes,omitempty"`
	DisbursedAmount *float64                 `json:"disbursed_amount,omitempty"`
}

// BulkUpdateRequest applies one target status to a batch of applications.
type BulkUpdateRequest struct {
	ApplicationIDs []string                 `json:"application_ids" validate:"required,min=1"`
	Status         models.ApplicationStatus `json:"status" validate:"required"`
	Notes          *string                  `json:"notes,omitempty"`
}

// LifecycleService owns the application status state machine. Every status
// change in the system, single or bulk, student submission or admin review,
// funnels through Transition.
type LifecycleService struct {
	applications lifecycleApplicationRepo
	documents    lifecycleDocumentRepo
	profiles     lifecycleProfileRepo
	users        lifecycleUserRepo
	dispatcher   statusChangeDispatcher
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewLifecycleService constructs LifecycleService.
func NewLifecycleService(applications lifecycleApplicationRepo, documents lifecycleDocumentRepo, profiles lifecycleProfileRepo, users lifecycleUserRepo, dispatcher statusChangeDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *LifecycleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		applications: applications,
		documents:    documents,
		profiles:     profiles,
		users:        users,
		dispatcher:   dispatcher,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
	}
}

// Transition validates and executes one status change. The status update,
// the ledger row and any snapshot or disbursement writes commit in a single
// transaction; side effects are dispatched only after that commit.
func (s *LifecycleService) Transition(ctx context.Context, applicationID string, req TransitionRequest, actor *models.JWTClaims) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}

	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	if !canTransition(app.Status, req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot transition from %s to %s", app.Status, req.Status))
	}

	params := repository.TransitionParams{
		ApplicationID: applicationID,
		Expected:      app.Status,
		Target:        req.Status,
		ActorID:       actor.UserID,
		Reason:        req.Notes,
	}

	if req.Status == models.StatusDisbursed {
		if req.DisbursedAmount == nil || *req.DisbursedAmount <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a positive disbursed amount is required")
		}
		params.DisbursedAmount = req.DisbursedAmount
	}

	if app.Status == models.StatusDraft {
		snapshot, submittedAt, err := s.buildSnapshot(ctx, app)
		if err != nil {
			return nil, err
		}
		params.Snapshot = snapshot
		params.SubmittedAt = &submittedAt
	} else {
		params.ReviewedBy = &actor.UserID
	}

	if err := s.applications.Transition(ctx, params); err != nil {
		s.metrics.ObserveTransition(req.Status, false)
		var conflict *repository.StatusConflictError
		if errors.As(err, &conflict) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("application status changed concurrently; cannot transition from %s to %s", conflict.Current, req.Status))
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to execute transition")
	}

	s.metrics.ObserveTransition(req.Status, true)

	updated, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload application")
	}

	if s.dispatcher != nil {
		s.dispatcher.StatusChanged(updated, app.Status, actor.UserID)
	}

	return updated, nil
}

// buildSnapshot freezes the profile and account contact fields at
// submission time. It also enforces the one business rule that gates
// submission beyond the state machine: the current fee statement must be
// attached.
func (s *LifecycleService) buildSnapshot(ctx context.Context, app *models.Application) (*models.ApplicationSnapshot, time.Time, error) {
	hasFeeStatement, err := s.documents.HasApplicationDocumentOfType(ctx, app.ID, models.DocumentTypeFeeStatement)
	if err != nil {
		return nil, time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check application documents")
	}
	if !hasFeeStatement {
		return nil, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "required document missing: current fee statement")
	}

	profile, err := s.profiles.FindByID(ctx, app.ProfileID)
	if err != nil {
		return nil, time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile for snapshot")
	}
	account, err := s.users.FindByID(ctx, profile.UserID)
	if err != nil {
		return nil, time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account for snapshot")
	}

	snapshot := &models.ApplicationSnapshot{
		FullName:        strings.TrimSpace(profile.FirstName + " " + profile.LastName),
		NationalID:      profile.NationalID,
		PassportNumber:  profile.PassportNumber,
		InstitutionID:   profile.InstitutionID,
		AdmissionNumber: profile.AdmissionNumber,
		CountyID:        profile.CountyID,
		SubCountyID:     profile.SubCountyID,
		WardID:          profile.WardID,
		Email:           account.Email,
		Phone:           account.Phone,
	}
	return snapshot, time.Now().UTC(), nil
}

// BulkUpdate applies one target status to each application independently
// and sequentially. A failed item is recorded and processing continues; the
// batch never aborts early.
func (s *LifecycleService) BulkUpdate(ctx context.Context, req BulkUpdateRequest, actor *models.JWTClaims) (*models.BulkUpdateResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk update payload")
	}

	result := &models.BulkUpdateResult{Errors: []models.BulkUpdateError{}}
	for _, id := range req.ApplicationIDs {
		_, err := s.Transition(ctx, id, TransitionRequest{Status: req.Status, Notes: req.Notes}, actor)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, models.BulkUpdateError{
				ApplicationID: id,
				Error:         appErrors.FromError(err).Message,
			})
			s.logger.Warn("bulk transition item failed",
				zap.String("application_id", id),
				zap.String("target", string(req.Status)),
				zap.Error(err))
			continue
		}
		result.Updated++
	}
	result.Success = result.Failed == 0
	s.metrics.ObserveBulkFailures(result.Failed)
	return result, nil
}

// History returns the append-only status ledger, oldest first.
func (s *LifecycleService) History(ctx context.Context, applicationID string) ([]models.StatusHistory, error) {
	if _, err := s.applications.FindByID(ctx, applicationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	history, err := s.applications.ListHistory(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	return history, nil
}
