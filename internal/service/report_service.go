package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elimu-fund/bursary-api/internal/models"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
	"github.com/elimu-fund/bursary-api/pkg/export"
	"github.com/elimu-fund/bursary-api/pkg/jobs"
	"github.com/elimu-fund/bursary-api/pkg/storage"
)

const jobTypeReportExport = "report_export"

const reportPageSize = 100

var reportHeaders = []string{
	"Application No", "Applicant", "Status", "Amount Requested",
	"Outstanding Fees", "Disbursed Amount", "Submitted At",
}

type reportRepo interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, resultPath, resultURL string) error
	MarkFailed(ctx context.Context, id, message string) error
}

type reportApplicationRepo interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
}

type reportStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

// ReportRequest selects the register slice and output format to export.
type ReportRequest struct {
	PeriodID string                   `json:"period_id,omitempty" validate:"omitempty,uuid"`
	Status   models.ApplicationStatus `json:"status,omitempty"`
	Format   models.ReportFormat      `json:"format" validate:"required,oneof=csv pdf"`
}

// ReportService generates register exports asynchronously: a request
// persists a QUEUED job and returns immediately; a worker renders the file,
// stores it and records a signed download URL.
type ReportService struct {
	reports      reportRepo
	applications reportApplicationRepo
	store        reportStore
	signer       *storage.SignedURLSigner
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	queue        *jobs.Queue
	downloadBase string
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewReportService constructs the service and its worker queue. Call Start
// before serving traffic and Stop on shutdown.
func NewReportService(reports reportRepo, applications reportApplicationRepo, store reportStore, signer *storage.SignedURLSigner, downloadBase string, queueCfg jobs.QueueConfig, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReportService{
		reports:      reports,
		applications: applications,
		store:        store,
		signer:       signer,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		downloadBase: downloadBase,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("reports", s.handle, queueCfg)
	return s
}

// Start launches the queue workers.
func (s *ReportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains and stops the queue workers.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// Request persists a queued export job and hands it to the worker pool.
func (s *ReportService) Request(ctx context.Context, createdBy string, req ReportRequest) (*models.ReportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report request")
	}

	job := &models.ReportJob{
		Params: models.ReportJobParams{
			PeriodID: req.PeriodID,
			Status:   req.Status,
			Format:   req.Format,
		},
		CreatedBy: createdBy,
	}
	if err := s.reports.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue report")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobTypeReportExport, Payload: job.ID}); err != nil {
		_ = s.reports.MarkFailed(ctx, job.ID, "worker queue unavailable")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue report")
	}
	return job, nil
}

// Get returns a report job's current state.
func (s *ReportService) Get(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.reports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return job, nil
}

// Download validates the signed token and opens the rendered file.
func (s *ReportService) Download(ctx context.Context, token string) (*os.File, string, error) {
	reportID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "download link is invalid or expired")
	}
	job, err := s.Get(ctx, reportID)
	if err != nil {
		return nil, "", err
	}
	if job.Status != models.ReportStatusFinished || job.ResultPath == nil || *job.ResultPath != relPath {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report file not available")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	name := fmt.Sprintf("applications-%s.%s", job.ID, job.Params.Format)
	return file, name, nil
}

func (s *ReportService) handle(ctx context.Context, job jobs.Job) error {
	reportID, ok := job.Payload.(string)
	if !ok {
		s.logger.Error("unexpected report payload", zap.String("job_id", job.ID))
		return nil
	}

	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return fmt.Errorf("load report job: %w", err)
	}
	if err := s.reports.MarkProcessing(ctx, report.ID); err != nil {
		return err
	}

	if err := s.render(ctx, report); err != nil {
		s.logger.Error("report rendering failed", zap.String("report_id", report.ID), zap.Error(err))
		if markErr := s.reports.MarkFailed(ctx, report.ID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark report failed", zap.String("report_id", report.ID), zap.Error(markErr))
		}
		return nil
	}
	return nil
}

func (s *ReportService) render(ctx context.Context, report *models.ReportJob) error {
	dataset, err := s.collect(ctx, report.Params)
	if err != nil {
		return err
	}

	var payload []byte
	switch report.Params.Format {
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Bursary Applications")
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return err
	}

	relPath := fmt.Sprintf("reports/%s.%s", report.ID, report.Params.Format)
	if _, err := s.store.Save(relPath, payload); err != nil {
		return err
	}

	token, _, err := s.signer.Generate(report.ID, relPath)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s/download?token=%s", s.downloadBase, report.ID, token)
	if err := s.reports.MarkFinished(ctx, report.ID, relPath, url); err != nil {
		return err
	}

	s.metrics.ObserveReportRendered(report.Params.Format)
	s.logger.Info("report rendered",
		zap.String("report_id", report.ID),
		zap.String("format", string(report.Params.Format)),
		zap.Int("rows", len(dataset.Rows)))
	return nil
}

// collect pages through the register and flattens it into export rows.
func (s *ReportService) collect(ctx context.Context, params models.ReportJobParams) (export.Dataset, error) {
	dataset := export.Dataset{Headers: reportHeaders}
	for page := 1; ; page++ {
		apps, total, err := s.applications.List(ctx, models.ApplicationFilter{
			Status:   params.Status,
			PeriodID: params.PeriodID,
			Page:     page,
			PageSize: reportPageSize,
		})
		if err != nil {
			return export.Dataset{}, err
		}
		for _, app := range apps {
			dataset.Rows = append(dataset.Rows, reportRow(app))
		}
		if len(apps) < reportPageSize || len(dataset.Rows) >= total {
			break
		}
	}
	return dataset, nil
}

func reportRow(app models.ApplicationDetail) map[string]string {
	applicant := ""
	if app.SnapshotFullName != nil {
		applicant = *app.SnapshotFullName
	} else if app.ApplicantName != nil {
		applicant = *app.ApplicantName
	}
	disbursed := ""
	if app.DisbursedAmount != nil {
		disbursed = strconv.FormatFloat(*app.DisbursedAmount, 'f', 2, 64)
	}
	submitted := ""
	if app.SubmittedAt != nil {
		submitted = app.SubmittedAt.Format(time.RFC3339)
	}
	return map[string]string{
		"Application No":   app.ApplicationNumber,
		"Applicant":        applicant,
		"Status":           string(app.Status),
		"Amount Requested": strconv.FormatFloat(app.AmountRequested, 'f', 2, 64),
		"Outstanding Fees": strconv.FormatFloat(app.OutstandingFees, 'f', 2, 64),
		"Disbursed Amount": disbursed,
		"Submitted At":     submitted,
	}
}
