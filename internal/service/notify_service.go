package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elimu-fund/bursary-api/internal/models"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
	"github.com/elimu-fund/bursary-api/pkg/jobs"
)

const jobTypeStatusChange = "status_change"

var statusChangeSubjects = map[models.ApplicationStatus]string{
	models.StatusPending:     "Your bursary application has been submitted",
	models.StatusUnderReview: "Your bursary application is under review",
	models.StatusApproved:    "Your bursary application has been approved",
	models.StatusRejected:    "Your bursary application was not successful",
	models.StatusDisbursed:   "Your bursary has been disbursed",
}

var statusChangeEmailTmpl = template.Must(template.New("status_change").Parse(`<html><body>
<p>Dear {{.Name}},</p>
<p>The status of your bursary application <strong>{{.ApplicationNumber}}</strong>
has changed from <strong>{{.Previous}}</strong> to <strong>{{.Status}}</strong>.</p>
{{if .Notes}}<p>Reviewer notes: {{.Notes}}</p>{{end}}
<p>Log in to the portal for details.</p>
<p>{{.FromName}}</p>
</body></html>`))

type statusChangePayload struct {
	ApplicationID     string
	ApplicationNumber string
	ProfileID         string
	Previous          models.ApplicationStatus
	Status            models.ApplicationStatus
	Notes             *string
	ActorID           string
}

type notificationRepo interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
}

type notifyProfileRepo interface {
	FindByID(ctx context.Context, id string) (*models.StudentProfile, error)
}

type notifyUserRepo interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type mailSender interface {
	Send(to, subject, htmlBody string) error
}

// NotifyService owns the post-commit side-effect queue. A committed
// transition enqueues one job; the worker writes the in-app notification
// row and, when enabled, sends the status email. Failures here never reach
// the request that caused the transition.
type NotifyService struct {
	notifications notificationRepo
	profiles      notifyProfileRepo
	users         notifyUserRepo
	mailer        mailSender
	emailsOn      bool
	fromName      string
	queue         *jobs.Queue
	logger        *zap.Logger
}

// NewNotifyService constructs the service and its queue. Call Start before
// serving traffic and Stop on shutdown.
func NewNotifyService(notifications notificationRepo, profiles notifyProfileRepo, users notifyUserRepo, mailer mailSender, emailsOn bool, fromName string, queueCfg jobs.QueueConfig, logger *zap.Logger) *NotifyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotifyService{
		notifications: notifications,
		profiles:      profiles,
		users:         users,
		mailer:        mailer,
		emailsOn:      emailsOn,
		fromName:      fromName,
		logger:        logger,
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handle, queueCfg)
	return s
}

// Start launches the queue workers.
func (s *NotifyService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains and stops the queue workers.
func (s *NotifyService) Stop() {
	s.queue.Stop()
}

// StatusChanged implements the dispatcher consumed by the lifecycle
// service. Enqueue failures are logged and swallowed.
func (s *NotifyService) StatusChanged(app *models.Application, previous models.ApplicationStatus, actorID string) {
	payload := statusChangePayload{
		ApplicationID:     app.ID,
		ApplicationNumber: app.ApplicationNumber,
		ProfileID:         app.ProfileID,
		Previous:          previous,
		Status:            app.Status,
		Notes:             app.ReviewNotes,
		ActorID:           actorID,
	}
	job := jobs.Job{ID: uuid.NewString(), Type: jobTypeStatusChange, Payload: payload}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("status change notification dropped",
			zap.String("application_id", app.ID),
			zap.Error(err))
	}
}

func (s *NotifyService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(statusChangePayload)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}

	profile, err := s.profiles.FindByID(ctx, payload.ProfileID)
	if err != nil {
		return fmt.Errorf("load profile for notification: %w", err)
	}
	account, err := s.users.FindByID(ctx, profile.UserID)
	if err != nil {
		return fmt.Errorf("load account for notification: %w", err)
	}

	notification := &models.Notification{
		UserID:  account.ID,
		Type:    models.NotificationStatusChange,
		Title:   fmt.Sprintf("Application %s is now %s", payload.ApplicationNumber, payload.Status),
		Message: fmt.Sprintf("Your application %s moved from %s to %s.", payload.ApplicationNumber, payload.Previous, payload.Status),
		Metadata: models.NotificationMetadata{
			"application_id":     payload.ApplicationID,
			"application_number": payload.ApplicationNumber,
			"previous_status":    string(payload.Previous),
			"new_status":         string(payload.Status),
		},
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}

	if !s.emailsOn || s.mailer == nil || account.Email == "" {
		return nil
	}
	subject, ok := statusChangeSubjects[payload.Status]
	if !ok {
		subject = fmt.Sprintf("Bursary application update: %s", payload.Status)
	}
	var body bytes.Buffer
	err = statusChangeEmailTmpl.Execute(&body, map[string]interface{}{
		"Name":              profile.FirstName,
		"ApplicationNumber": payload.ApplicationNumber,
		"Previous":          payload.Previous,
		"Status":            payload.Status,
		"Notes":             payload.Notes,
		"FromName":          s.fromName,
	})
	if err != nil {
		return fmt.Errorf("render status email: %w", err)
	}
	if err := s.mailer.Send(account.Email, subject, body.String()); err != nil {
		return err
	}
	return nil
}

// List returns the caller's notifications, newest first.
func (s *NotifyService) List(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	notifications, err := s.notifications.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotifyService) MarkRead(ctx context.Context, userID, notificationID string) error {
	updated, err := s.notifications.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification")
	}
	if !updated {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}
