package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elimu-fund/bursary-api/internal/models"
	"github.com/elimu-fund/bursary-api/internal/repository"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
)

type lifecycleAppRepoStub struct {
	apps          map[string]*models.Application
	history       map[string][]models.StatusHistory
	transitionErr error
	lastParams    repository.TransitionParams
}

func newLifecycleAppRepoStub() *lifecycleAppRepoStub {
	return &lifecycleAppRepoStub{
		apps:    make(map[string]*models.Application),
		history: make(map[string][]models.StatusHistory),
	}
}

func (r *lifecycleAppRepoStub) FindByID(_ context.Context, id string) (*models.Application, error) {
	app, ok := r.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (r *lifecycleAppRepoStub) Transition(_ context.Context, p repository.TransitionParams) error {
	r.lastParams = p
	if r.transitionErr != nil {
		return r.transitionErr
	}
	app := r.apps[p.ApplicationID]
	app.Status = p.Target
	if p.Snapshot != nil {
		app.SnapshotFullName = &p.Snapshot.FullName
		app.SubmittedAt = p.SubmittedAt
	}
	if p.DisbursedAmount != nil {
		app.DisbursedAmount = p.DisbursedAmount
	}
	r.history[p.ApplicationID] = append(r.history[p.ApplicationID], models.StatusHistory{
		ApplicationID:  p.ApplicationID,
		PreviousStatus: &p.Expected,
		NewStatus:      p.Target,
		ChangedBy:      p.ActorID,
	})
	return nil
}

func (r *lifecycleAppRepoStub) ListHistory(_ context.Context, applicationID string) ([]models.StatusHistory, error) {
	return r.history[applicationID], nil
}

type lifecycleDocRepoStub struct {
	hasFeeStatement bool
}

func (r *lifecycleDocRepoStub) HasApplicationDocumentOfType(_ context.Context, _ string, docType models.DocumentType) (bool, error) {
	if docType == models.DocumentTypeFeeStatement {
		return r.hasFeeStatement, nil
	}
	return false, nil
}

type lifecycleProfileRepoStub struct {
	profile *models.StudentProfile
}

func (r *lifecycleProfileRepoStub) FindByID(_ context.Context, id string) (*models.StudentProfile, error) {
	if r.profile == nil || r.profile.ID != id {
		return nil, sql.ErrNoRows
	}
	return r.profile, nil
}

type lifecycleUserRepoStub struct {
	user *models.User
}

func (r *lifecycleUserRepoStub) FindByID(_ context.Context, id string) (*models.User, error) {
	if r.user == nil || r.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return r.user, nil
}

type dispatcherStub struct {
	calls []models.ApplicationStatus
}

func (d *dispatcherStub) StatusChanged(app *models.Application, _ models.ApplicationStatus, _ string) {
	d.calls = append(d.calls, app.Status)
}

func lifecycleFixture(status models.ApplicationStatus) (*lifecycleAppRepoStub, *lifecycleDocRepoStub, *lifecycleProfileRepoStub, *lifecycleUserRepoStub) {
	nationalID := "12345678"
	apps := newLifecycleAppRepoStub()
	apps.apps["app-1"] = &models.Application{
		ID:        "app-1",
		ProfileID: "profile-1",
		Status:    status,
	}
	docs := &lifecycleDocRepoStub{hasFeeStatement: true}
	profiles := &lifecycleProfileRepoStub{profile: &models.StudentProfile{
		ID:              "profile-1",
		UserID:          "user-1",
		FirstName:       "Achieng",
		LastName:        "Odhiambo",
		NationalID:      &nationalID,
		InstitutionID:   "inst-1",
		AdmissionNumber: "ADM/001",
		CountyID:        "county-1",
		SubCountyID:     "sub-1",
		WardID:          "ward-1",
	}}
	users := &lifecycleUserRepoStub{user: &models.User{
		ID:    "user-1",
		Email: "achieng@example.com",
		Phone: "+254700000001",
	}}
	return apps, docs, profiles, users
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func TestLifecycleTransitionSubmissionFreezesSnapshot(t *testing.T) {
	apps, docs, profiles, users := lifecycleFixture(models.StatusDraft)
	dispatcher := &dispatcherStub{}
	svc := NewLifecycleService(apps, docs, profiles, users, dispatcher, nil, nil, zap.NewNop())

	updated, err := svc.Transition(context.Background(), "app-1", TransitionRequest{Status: models.StatusPending}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, updated.Status)

	require.NotNil(t, apps.lastParams.Snapshot)
	assert.Equal(t, "Achieng Odhiambo", apps.lastParams.Snapshot.FullName)
	assert.Equal(t, "achieng@example.com", apps.lastParams.Snapshot.Email)
	require.NotNil(t, apps.lastParams.SubmittedAt)
	assert.Nil(t, apps.lastParams.ReviewedBy)
	assert.Equal(t, []models.ApplicationStatus{models.StatusPending}, dispatcher.calls)
}

func TestLifecycleTransitionSubmissionRequiresFeeStatement(t *testing.T) {
	apps, docs, profiles, users := lifecycleFixture(models.StatusDraft)
	docs.hasFeeStatement = false
	svc := NewLifecycleService(apps, docs, profiles, users, nil, nil, nil, zap.NewNop())

	_, err := svc.Transition(context.Background(), "app-1", TransitionRequest{Status: models.StatusPending}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Contains(t, appErrors.FromError(err).Message, "fee statement")
}

func TestLifecycleTransitionRejectsIllegalEdges(t *testing.T) {
	cases := []struct {
		from models.ApplicationStatus
		to   models.ApplicationStatus
	}{
		{models.StatusDraft, models.StatusApproved},
		{models.StatusPending, models.StatusApproved},
		{models.StatusPending, models.StatusDraft},
		{models.StatusUnderReview, models.StatusDisbursed},
		{models.StatusRejected, models.StatusPending},
		{models.StatusDisbursed, models.StatusApproved},
	}
	for _, tc := range cases {
		apps, docs, profiles, users := lifecycleFixture(tc.from)
		svc := NewLifecycleService(apps, docs, profiles, users, nil, nil, nil, zap.NewNop())

		_, err := svc.Transition(context.Background(), "app-1", TransitionRequest{Status: tc.to}, adminClaims())
		require.Error(t, err, "%s -> %s should be rejected", tc.from, tc.to)
		assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	}
}

func TestLifecycleTransitionDisbursementRequiresAmount(t *testing.T) {
	apps, docs, profiles, users := lifecycleFixture(models.StatusApproved)
	svc := NewLifecycleService(apps, docs, profiles, users, nil, nil, nil, zap.NewNop())

	_, err := svc.Transition(context.Background(), "app-1", TransitionRequest{Status: models.StatusDisbursed}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	amount := 15000.0
	updated, err := svc.Transition(context.Background(), "app-1", TransitionRequest{Status: models.StatusDisbursed, DisbursedAmount: &amount}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.StatusDisbursed, updated.Status)
	require.NotNil(t, updated.DisbursedAmount)
	assert.Equal(t, amount, *updated.DisbursedAmount)
}

func TestLifecycleTransitionMapsConcurrentConflict(t *testing.T) {
	apps, docs, profiles, users := lifecycleFixture(models.StatusPending)
	apps.transitionErr = &repository.StatusConflictError{Current: models.StatusUnderReview}
	svc := NewLifecycleService(apps, docs, profiles, users, nil, nil, nil, zap.NewNop())

	_, err := svc.Transition(context.Background(), "app-1", TransitionRequest{Status: models.StatusUnderReview}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Contains(t, appErrors.FromError(err).Message, "concurrently")
}

func TestLifecycleTransitionUnknownApplication(t *testing.T) {
	apps, docs, profiles, users := lifecycleFixture(models.StatusDraft)
	svc := NewLifecycleService(apps, docs, profiles, users, nil, nil, nil, zap.NewNop())

	_, err := svc.Transition(context.Background(), "missing", TransitionRequest{Status: models.StatusPending}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLifecycleBulkUpdateContinuesPastFailures(t *testing.T) {
	apps, docs, profiles, users := lifecycleFixture(models.StatusPending)
	apps.apps["app-2"] = &models.Application{ID: "app-2", ProfileID: "profile-1", Status: models.StatusRejected}
	apps.apps["app-3"] = &models.Application{ID: "app-3", ProfileID: "profile-1", Status: models.StatusPending}
	svc := NewLifecycleService(apps, docs, profiles, users, nil, nil, nil, zap.NewNop())

	result, err := svc.BulkUpdate(context.Background(), BulkUpdateRequest{
		ApplicationIDs: []string{"app-1", "app-2", "app-3"},
		Status:         models.StatusUnderReview,
	}, adminClaims())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "app-2", result.Errors[0].ApplicationID)
	assert.Equal(t, models.StatusUnderReview, apps.apps["app-1"].Status)
	assert.Equal(t, models.StatusRejected, apps.apps["app-2"].Status)
	assert.Equal(t, models.StatusUnderReview, apps.apps["app-3"].Status)
}

func TestLifecycleBulkUpdateRejectsEmptyBatch(t *testing.T) {
	apps, docs, profiles, users := lifecycleFixture(models.StatusPending)
	svc := NewLifecycleService(apps, docs, profiles, users, nil, nil, nil, zap.NewNop())

	_, err := svc.BulkUpdate(context.Background(), BulkUpdateRequest{Status: models.StatusUnderReview}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLifecycleHistoryOrderedLedger(t *testing.T) {
	apps, docs, profiles, users := lifecycleFixture(models.StatusDraft)
	svc := NewLifecycleService(apps, docs, profiles, users, nil, nil, nil, zap.NewNop())
	ctx := context.Background()
	claims := adminClaims()

	_, err := svc.Transition(ctx, "app-1", TransitionRequest{Status: models.StatusPending}, claims)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, "app-1", TransitionRequest{Status: models.StatusUnderReview}, claims)
	require.NoError(t, err)

	history, err := svc.History(ctx, "app-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusPending, history[0].NewStatus)
	assert.Equal(t, models.StatusUnderReview, history[1].NewStatus)

	_, err = svc.History(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
