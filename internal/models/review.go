package models

import "time"

// ReviewScore is one reviewer's assessment of a submitted application.
// Unique per (application, reviewer); a reviewer revises rather than
// duplicates their score. OverallScore is derived server-side.
type ReviewScore struct {
	ID              string    `db:"id" json:"id"`
	ApplicationID   string    `db:"application_id" json:"application_id"`
	ReviewerID      string    `db:"reviewer_id" json:"reviewer_id"`
	FinancialNeed   int       `db:"financial_need" json:"financial_need"`
	AcademicMerit   int       `db:"academic_merit" json:"academic_merit"`
	CommunityImpact int       `db:"community_impact" json:"community_impact"`
	Vulnerability   int       `db:"vulnerability" json:"vulnerability"`
	OverallScore    float64   `db:"overall_score" json:"overall_score"`
	Comments        *string   `db:"comments" json:"comments,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ScoreAggregate summarises all reviews for an application. AverageScore is
// nil when no scores exist so "no data" is distinguishable from zero.
type ScoreAggregate struct {
	Scores         []ReviewScore `json:"scores"`
	AverageScore   *float64      `json:"average_score"`
	TotalReviewers int           `json:"total_reviewers"`
}
