package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/elimu-fund/bursary-api/internal/models"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
)

type reviewRepo interface {
	Upsert(ctx context.Context, score *models.ReviewScore) error
	ListByApplication(ctx context.Context, applicationID string) ([]models.ReviewScore, error)
}

type reviewApplicationRepo interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
}

// ScoreRequest carries one reviewer's assessment. Each criterion is rated
// on the 1 to 5 scale; the overall score is computed server-side.
type ScoreRequest struct {
	FinancialNeed   int     `json:"financial_need" validate:"required,min=1,max=5"`
	AcademicMerit   int     `json:"academic_merit" validate:"required,min=1,max=5"`
	CommunityImpact int     `json:"community_impact" validate:"required,min=1,max=5"`
	Vulnerability   int     `json:"vulnerability" validate:"required,min=1,max=5"`
	Comments        *string `json:"comments,omitempty" validate:"omitempty,max=2000"`
}

// ReviewService records and aggregates reviewer scores.
type ReviewService struct {
	reviews      reviewRepo
	applications reviewApplicationRepo
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewReviewService constructs ReviewService.
func NewReviewService(reviews reviewRepo, applications reviewApplicationRepo, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{reviews: reviews, applications: applications, validator: validate, logger: logger}
}

func (s *ReviewService) loadScorable(ctx context.Context, applicationID string) (*models.Application, error) {
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.Status == models.StatusDraft {
		return nil, appErrors.Clone(appErrors.ErrConflict, "draft applications cannot be scored")
	}
	return app, nil
}

// Score records or revises the reviewer's assessment of an application.
func (s *ReviewService) Score(ctx context.Context, applicationID, reviewerID string, req ScoreRequest) (*models.ReviewScore, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	if _, err := s.loadScorable(ctx, applicationID); err != nil {
		return nil, err
	}

	overall := float64(req.FinancialNeed+req.AcademicMerit+req.CommunityImpact+req.Vulnerability) / 4
	score := &models.ReviewScore{
		ApplicationID:   applicationID,
		ReviewerID:      reviewerID,
		FinancialNeed:   req.FinancialNeed,
		AcademicMerit:   req.AcademicMerit,
		CommunityImpact: req.CommunityImpact,
		Vulnerability:   req.Vulnerability,
		OverallScore:    math.Round(overall*100) / 100,
		Comments:        req.Comments,
	}
	if err := s.reviews.Upsert(ctx, score); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save score")
	}

	s.logger.Info("application scored",
		zap.String("application_id", applicationID),
		zap.String("reviewer_id", reviewerID),
		zap.Float64("overall_score", score.OverallScore))
	return score, nil
}

// GetScores aggregates all reviewer scores for an application. The average
// stays nil when no scores exist.
func (s *ReviewService) GetScores(ctx context.Context, applicationID string) (*models.ScoreAggregate, error) {
	if _, err := s.applications.FindByID(ctx, applicationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	scores, err := s.reviews.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scores")
	}
	if scores == nil {
		scores = []models.ReviewScore{}
	}

	aggregate := &models.ScoreAggregate{Scores: scores, TotalReviewers: len(scores)}
	if len(scores) > 0 {
		var sum float64
		for _, sc := range scores {
			sum += sc.OverallScore
		}
		avg := math.Round(sum/float64(len(scores))*100) / 100
		aggregate.AverageScore = &avg
	}
	return aggregate, nil
}
