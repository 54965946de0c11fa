package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elimu-fund/bursary-api/internal/models"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
	"github.com/elimu-fund/bursary-api/pkg/jobs"
)

type notificationRepoStub struct {
	created    []*models.Notification
	byUser     []models.Notification
	markResult bool
}

func (r *notificationRepoStub) Create(_ context.Context, n *models.Notification) error {
	n.ID = "notif-1"
	r.created = append(r.created, n)
	return nil
}

func (r *notificationRepoStub) ListByUser(_ context.Context, _ string, _ int) ([]models.Notification, error) {
	return r.byUser, nil
}

func (r *notificationRepoStub) MarkRead(_ context.Context, _, _ string) (bool, error) {
	return r.markResult, nil
}

type notifyProfileRepoStub struct {
	profile *models.StudentProfile
}

func (r *notifyProfileRepoStub) FindByID(_ context.Context, _ string) (*models.StudentProfile, error) {
	return r.profile, nil
}

type notifyUserRepoStub struct {
	user *models.User
}

func (r *notifyUserRepoStub) FindByID(_ context.Context, _ string) (*models.User, error) {
	return r.user, nil
}

type mailerStub struct {
	to      string
	subject string
	body    string
	sent    int
}

func (m *mailerStub) Send(to, subject, htmlBody string) error {
	m.to = to
	m.subject = subject
	m.body = htmlBody
	m.sent++
	return nil
}

func notifyFixture(emailsOn bool) (*NotifyService, *notificationRepoStub, *mailerStub) {
	notifications := &notificationRepoStub{}
	profiles := &notifyProfileRepoStub{profile: &models.StudentProfile{
		ID:        "profile-1",
		UserID:    "user-1",
		FirstName: "Achieng",
		LastName:  "Odhiambo",
	}}
	users := &notifyUserRepoStub{user: &models.User{
		ID:    "user-1",
		Email: "achieng@example.com",
	}}
	mail := &mailerStub{}
	svc := NewNotifyService(notifications, profiles, users, mail, emailsOn, "County Bursary Fund", jobs.QueueConfig{}, zap.NewNop())
	return svc, notifications, mail
}

func statusChangeJob() jobs.Job {
	return jobs.Job{
		ID:   "job-1",
		Type: jobTypeStatusChange,
		Payload: statusChangePayload{
			ApplicationID:     "app-1",
			ApplicationNumber: "BSF-2026-000001",
			ProfileID:         "profile-1",
			Previous:          models.StatusDraft,
			Status:            models.StatusPending,
			ActorID:           "user-1",
		},
	}
}

func TestNotifyHandleWritesNotificationAndEmail(t *testing.T) {
	svc, notifications, mail := notifyFixture(true)

	require.NoError(t, svc.handle(context.Background(), statusChangeJob()))

	require.Len(t, notifications.created, 1)
	created := notifications.created[0]
	assert.Equal(t, "user-1", created.UserID)
	assert.Equal(t, models.NotificationStatusChange, created.Type)
	assert.Contains(t, created.Message, "BSF-2026-000001")
	assert.Equal(t, "PENDING", created.Metadata["new_status"])

	assert.Equal(t, 1, mail.sent)
	assert.Equal(t, "achieng@example.com", mail.to)
	assert.Equal(t, "Your bursary application has been submitted", mail.subject)
	assert.Contains(t, mail.body, "Achieng")
	assert.Contains(t, mail.body, "BSF-2026-000001")
}

func TestNotifyHandleSkipsEmailWhenDisabled(t *testing.T) {
	svc, notifications, mail := notifyFixture(false)

	require.NoError(t, svc.handle(context.Background(), statusChangeJob()))

	assert.Len(t, notifications.created, 1)
	assert.Zero(t, mail.sent)
}

func TestNotifyHandleIgnoresUnknownPayload(t *testing.T) {
	svc, notifications, mail := notifyFixture(true)

	job := jobs.Job{ID: "job-2", Type: jobTypeStatusChange, Payload: "garbage"}
	require.NoError(t, svc.handle(context.Background(), job))

	assert.Empty(t, notifications.created)
	assert.Zero(t, mail.sent)
}

func TestNotifyHandleIncludesReviewerNotes(t *testing.T) {
	svc, _, mail := notifyFixture(true)

	notes := "Missing fee structure for term 2"
	job := statusChangeJob()
	payload := job.Payload.(statusChangePayload)
	payload.Status = models.StatusRejected
	payload.Notes = &notes
	job.Payload = payload

	require.NoError(t, svc.handle(context.Background(), job))
	assert.True(t, strings.Contains(mail.body, notes))
	assert.Equal(t, "Your bursary application was not successful", mail.subject)
}

func TestNotifyListNormalisesEmpty(t *testing.T) {
	svc, _, _ := notifyFixture(false)

	notifications, err := svc.List(context.Background(), "user-1", 20)
	require.NoError(t, err)
	assert.NotNil(t, notifications)
	assert.Empty(t, notifications)
}

func TestNotifyMarkReadUnknownNotification(t *testing.T) {
	svc, _, _ := notifyFixture(false)

	err := svc.MarkRead(context.Background(), "user-1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
