package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/elimu-fund/bursary-api/internal/models"
)

// ReviewRepository persists reviewer scores.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Upsert inserts the reviewer's score or replaces their previous one. The
// (application_id, reviewer_id) unique constraint guarantees one row per
// reviewer regardless of how often they revise.
func (r *ReviewRepository) Upsert(ctx context.Context, score *models.ReviewScore) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	score.CreatedAt = now
	score.UpdatedAt = now

	const query = `INSERT INTO review_scores (id, application_id, reviewer_id, financial_need, academic_merit,
        community_impact, vulnerability, overall_score, comments, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (application_id, reviewer_id) DO UPDATE SET
            financial_need = EXCLUDED.financial_need,
            academic_merit = EXCLUDED.academic_merit,
            community_impact = EXCLUDED.community_impact,
            vulnerability = EXCLUDED.vulnerability,
            overall_score = EXCLUDED.overall_score,
            comments = EXCLUDED.comments,
            updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, score.ID, score.ApplicationID, score.ReviewerID,
		score.FinancialNeed, score.AcademicMerit, score.CommunityImpact, score.Vulnerability,
		score.OverallScore, score.Comments, score.CreatedAt, score.UpdatedAt)
	if err := row.Scan(&score.ID, &score.CreatedAt); err != nil {
		return fmt.Errorf("upsert review score: %w", err)
	}
	return nil
}

// ListByApplication returns all scores for an application.
func (r *ReviewRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.ReviewScore, error) {
	const query = `SELECT id, application_id, reviewer_id, financial_need, academic_merit, community_impact,
        vulnerability, overall_score, comments, created_at, updated_at
        FROM review_scores WHERE application_id = $1 ORDER BY created_at`
	var scores []models.ReviewScore
	if err := r.db.SelectContext(ctx, &scores, query, applicationID); err != nil {
		return nil, fmt.Errorf("list review scores: %w", err)
	}
	return scores, nil
}
