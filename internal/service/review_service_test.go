package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elimu-fund/bursary-api/internal/models"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
)

type reviewRepoStub struct {
	scores map[string][]models.ReviewScore
}

func newReviewRepoStub() *reviewRepoStub {
	return &reviewRepoStub{scores: make(map[string][]models.ReviewScore)}
}

func (r *reviewRepoStub) Upsert(_ context.Context, score *models.ReviewScore) error {
	existing := r.scores[score.ApplicationID]
	for i, sc := range existing {
		if sc.ReviewerID == score.ReviewerID {
			existing[i] = *score
			return nil
		}
	}
	r.scores[score.ApplicationID] = append(existing, *score)
	return nil
}

func (r *reviewRepoStub) ListByApplication(_ context.Context, applicationID string) ([]models.ReviewScore, error) {
	return r.scores[applicationID], nil
}

type reviewAppRepoStub struct {
	apps map[string]*models.Application
}

func (r *reviewAppRepoStub) FindByID(_ context.Context, id string) (*models.Application, error) {
	app, ok := r.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return app, nil
}

func reviewFixture(status models.ApplicationStatus) (*ReviewService, *reviewRepoStub) {
	reviews := newReviewRepoStub()
	apps := &reviewAppRepoStub{apps: map[string]*models.Application{
		"app-1": {ID: "app-1", Status: status},
	}}
	return NewReviewService(reviews, apps, nil, zap.NewNop()), reviews
}

func TestReviewScoreComputesOverall(t *testing.T) {
	svc, _ := reviewFixture(models.StatusUnderReview)

	score, err := svc.Score(context.Background(), "app-1", "reviewer-1", ScoreRequest{
		FinancialNeed:   5,
		AcademicMerit:   4,
		CommunityImpact: 3,
		Vulnerability:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3.5, score.OverallScore)
}

func TestReviewScoreUpsertsPerReviewer(t *testing.T) {
	svc, reviews := reviewFixture(models.StatusUnderReview)
	ctx := context.Background()

	_, err := svc.Score(ctx, "app-1", "reviewer-1", ScoreRequest{FinancialNeed: 1, AcademicMerit: 1, CommunityImpact: 1, Vulnerability: 1})
	require.NoError(t, err)
	revised, err := svc.Score(ctx, "app-1", "reviewer-1", ScoreRequest{FinancialNeed: 5, AcademicMerit: 5, CommunityImpact: 5, Vulnerability: 5})
	require.NoError(t, err)

	assert.Equal(t, 5.0, revised.OverallScore)
	require.Len(t, reviews.scores["app-1"], 1)
	assert.Equal(t, 5.0, reviews.scores["app-1"][0].OverallScore)
}

func TestReviewScoreRejectsDraft(t *testing.T) {
	svc, _ := reviewFixture(models.StatusDraft)

	_, err := svc.Score(context.Background(), "app-1", "reviewer-1", ScoreRequest{FinancialNeed: 3, AcademicMerit: 3, CommunityImpact: 3, Vulnerability: 3})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestReviewScoreValidatesRange(t *testing.T) {
	svc, _ := reviewFixture(models.StatusUnderReview)

	_, err := svc.Score(context.Background(), "app-1", "reviewer-1", ScoreRequest{FinancialNeed: 6, AcademicMerit: 3, CommunityImpact: 3, Vulnerability: 3})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReviewGetScoresAggregates(t *testing.T) {
	svc, _ := reviewFixture(models.StatusUnderReview)
	ctx := context.Background()

	_, err := svc.Score(ctx, "app-1", "reviewer-1", ScoreRequest{FinancialNeed: 4, AcademicMerit: 4, CommunityImpact: 4, Vulnerability: 4})
	require.NoError(t, err)
	_, err = svc.Score(ctx, "app-1", "reviewer-2", ScoreRequest{FinancialNeed: 2, AcademicMerit: 2, CommunityImpact: 3, Vulnerability: 2})
	require.NoError(t, err)

	aggregate, err := svc.GetScores(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, 2, aggregate.TotalReviewers)
	require.NotNil(t, aggregate.AverageScore)
	// (4.0 + 2.25) / 2
	assert.Equal(t, 3.13, *aggregate.AverageScore)
}

func TestReviewGetScoresEmpty(t *testing.T) {
	svc, _ := reviewFixture(models.StatusUnderReview)

	aggregate, err := svc.GetScores(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, 0, aggregate.TotalReviewers)
	assert.Nil(t, aggregate.AverageScore)
	assert.NotNil(t, aggregate.Scores)
}

func TestReviewGetScoresUnknownApplication(t *testing.T) {
	svc, _ := reviewFixture(models.StatusUnderReview)

	_, err := svc.GetScores(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
