package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elimu-fund/bursary-api/internal/models"
)

type eligibilityProfileStub struct {
	profile *models.StudentProfile
}

func (r *eligibilityProfileStub) FindByUserID(_ context.Context, _ string) (*models.StudentProfile, error) {
	if r.profile == nil {
		return nil, sql.ErrNoRows
	}
	return r.profile, nil
}

type eligibilityDocumentStub struct {
	documents []models.ProfileDocument
}

func (r *eligibilityDocumentStub) ListProfileDocuments(_ context.Context, _ string) ([]models.ProfileDocument, error) {
	return r.documents, nil
}

type eligibilityApplicationStub struct {
	active *models.Application
}

func (r *eligibilityApplicationStub) FindActiveByProfile(_ context.Context, _ string) (*models.Application, error) {
	if r.active == nil {
		return nil, sql.ErrNoRows
	}
	return r.active, nil
}

type eligibilityPeriodStub struct {
	period *models.ApplicationPeriod
}

func (r *eligibilityPeriodStub) FindActive(_ context.Context) (*models.ApplicationPeriod, error) {
	if r.period == nil {
		return nil, sql.ErrNoRows
	}
	return r.period, nil
}

func eligibilityService(profile *models.StudentProfile, docs []models.ProfileDocument, active *models.Application, period *models.ApplicationPeriod) *EligibilityService {
	return NewEligibilityService(
		&eligibilityProfileStub{profile: profile},
		&eligibilityDocumentStub{documents: docs},
		&eligibilityApplicationStub{active: active},
		&eligibilityPeriodStub{period: period},
		zap.NewNop(),
	)
}

func openPeriod() *models.ApplicationPeriod {
	now := time.Now().UTC()
	return &models.ApplicationPeriod{
		ID:           "period-1",
		Name:         "FY2026 Window",
		AcademicYear: "2026",
		StartDate:    now.Add(-24 * time.Hour),
		EndDate:      now.Add(24 * time.Hour),
		IsActive:     true,
	}
}

func TestEligibilityNoProfile(t *testing.T) {
	svc := eligibilityService(nil, nil, nil, openPeriod())

	result, err := svc.Check(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, result.CanApply)
	assert.Contains(t, result.Reason, "profile not found")
}

func TestEligibilityIncompleteProfileWinsOverActiveApplication(t *testing.T) {
	profile := completeProfile()
	profile.ID = "profile-1"
	profile.CourseName = ""
	active := &models.Application{ID: "app-1", Status: models.StatusPending}

	svc := eligibilityService(profile, allRequiredDocuments(), active, openPeriod())

	result, err := svc.Check(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, result.CanApply)
	assert.Equal(t, "profile is incomplete", result.Reason)
	// The policy is ordered; the active application is not even consulted.
	assert.False(t, result.HasActiveApplication)
	assert.Contains(t, result.MissingFields, "course_name")
}

func TestEligibilityActiveApplicationBlocks(t *testing.T) {
	profile := completeProfile()
	profile.ID = "profile-1"
	active := &models.Application{ID: "app-1", ApplicationNumber: "BSF-2026-000001", Status: models.StatusUnderReview}

	svc := eligibilityService(profile, allRequiredDocuments(), active, openPeriod())

	result, err := svc.Check(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, result.CanApply)
	assert.True(t, result.HasActiveApplication)
	require.NotNil(t, result.ActiveApplicationStatus)
	assert.Equal(t, models.StatusUnderReview, *result.ActiveApplicationStatus)
	assert.Contains(t, result.Reason, "BSF-2026-000001")
}

func TestEligibilityNoOpenPeriod(t *testing.T) {
	profile := completeProfile()
	profile.ID = "profile-1"

	svc := eligibilityService(profile, allRequiredDocuments(), nil, nil)

	result, err := svc.Check(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, result.CanApply)
	assert.Contains(t, result.Reason, "no application period")
}

func TestEligibilityExpiredPeriodBlocks(t *testing.T) {
	profile := completeProfile()
	profile.ID = "profile-1"
	period := openPeriod()
	period.EndDate = time.Now().UTC().Add(-time.Hour)

	svc := eligibilityService(profile, allRequiredDocuments(), nil, period)

	result, err := svc.Check(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, result.CanApply)
	assert.Contains(t, result.Reason, "not open")
}

func TestEligibilityAllChecksPass(t *testing.T) {
	profile := completeProfile()
	profile.ID = "profile-1"

	svc := eligibilityService(profile, allRequiredDocuments(), nil, openPeriod())

	result, err := svc.Check(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, result.CanApply)
	assert.Empty(t, result.Reason)
	assert.Equal(t, 100, result.ProfileCompleteness)
}
