package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elimu-fund/bursary-api/internal/models"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
)

var validDocumentTypes = map[models.DocumentType]bool{
	models.DocumentTypeNationalID:      true,
	models.DocumentTypeBirthCert:       true,
	models.DocumentTypeAdmissionLetter: true,
	models.DocumentTypeFeeStructure:    true,
	models.DocumentTypeFeeStatement:    true,
	models.DocumentTypeTranscript:      true,
	models.DocumentTypeRecommendation:  true,
	models.DocumentTypeDisabilityCert:  true,
}

var allowedUploadMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

type documentRepo interface {
	UpsertProfileDocument(ctx context.Context, doc *models.ProfileDocument) error
	FindProfileDocument(ctx context.Context, id string) (*models.ProfileDocument, error)
	ListProfileDocuments(ctx context.Context, profileID string) ([]models.ProfileDocument, error)
	DeleteProfileDocument(ctx context.Context, id string) error
	CountBlockingLinks(ctx context.Context, profileDocumentID string) (int, error)
	CreateApplicationDocument(ctx context.Context, doc *models.ApplicationDocument) error
	ListApplicationDocuments(ctx context.Context, applicationID string) ([]models.ApplicationDocument, error)
	LinkExists(ctx context.Context, applicationID, profileDocumentID string) (bool, error)
	CreateLink(ctx context.Context, link *models.ProfileDocumentLink) error
	ListLinks(ctx context.Context, applicationID string) ([]models.ProfileDocumentLink, error)
}

type documentProfileRepo interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
	SetComplete(ctx context.Context, profileID string, complete bool) error
}

type documentApplicationRepo interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
}

type documentStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// UploadInput carries one uploaded file and its declared document type.
type UploadInput struct {
	Type     models.DocumentType
	FileName string
	MimeType string
	Size     int64
	Content  io.Reader
}

// DocumentService manages both document pools: the reusable per-profile set
// and the submission-specific application set. Every successful change to a
// profile's document set refreshes the cached completeness flag.
type DocumentService struct {
	documents    documentRepo
	profiles     documentProfileRepo
	applications documentApplicationRepo
	store        documentStore
	maxSizeBytes int64
	logger       *zap.Logger
}

// NewDocumentService constructs DocumentService.
func NewDocumentService(documents documentRepo, profiles documentProfileRepo, applications documentApplicationRepo, store documentStore, maxSizeBytes int64, logger *zap.Logger) *DocumentService {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 10 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		documents:    documents,
		profiles:     profiles,
		applications: applications,
		store:        store,
		maxSizeBytes: maxSizeBytes,
		logger:       logger,
	}
}

func (s *DocumentService) validateUpload(in UploadInput) error {
	if !validDocumentTypes[in.Type] {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document type %q", in.Type))
	}
	if !allowedUploadMimeTypes[strings.ToLower(in.MimeType)] {
		return appErrors.Clone(appErrors.ErrValidation, "only PDF, JPEG and PNG uploads are accepted")
	}
	if in.Size <= 0 || in.Size > s.maxSizeBytes {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file size must be between 1 byte and %d bytes", s.maxSizeBytes))
	}
	return nil
}

func (s *DocumentService) profileOf(ctx context.Context, userID string) (*models.StudentProfile, error) {
	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return profile, nil
}

// refreshCompleteness recomputes and persists the profile's cached
// is_complete flag after a document set change.
func (s *DocumentService) refreshCompleteness(ctx context.Context, profile *models.StudentProfile) {
	docs, err := s.documents.ListProfileDocuments(ctx, profile.ID)
	if err != nil {
		s.logger.Warn("completeness refresh failed", zap.String("profile_id", profile.ID), zap.Error(err))
		return
	}
	result := EvaluateCompleteness(profile, docs)
	if err := s.profiles.SetComplete(ctx, profile.ID, result.IsComplete); err != nil {
		s.logger.Warn("completeness flag update failed", zap.String("profile_id", profile.ID), zap.Error(err))
	}
}

// UploadProfileDocument stores the file and upserts the (profile, type)
// registry slot; a re-upload of the same type replaces the previous file.
func (s *DocumentService) UploadProfileDocument(ctx context.Context, userID string, in UploadInput) (*models.ProfileDocument, error) {
	if err := s.validateUpload(in); err != nil {
		return nil, err
	}
	profile, err := s.profileOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("profiles/%s/%s-%s%s", profile.ID, strings.ToLower(string(in.Type)), uuid.NewString(), filepath.Ext(in.FileName))
	stored, err := s.store.SaveStream(path, in.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	doc := &models.ProfileDocument{
		ProfileID: profile.ID,
		Type:      in.Type,
		FileName:  in.FileName,
		FilePath:  stored,
		MimeType:  in.MimeType,
		SizeBytes: in.Size,
	}
	if err := s.documents.UpsertProfileDocument(ctx, doc); err != nil {
		_ = s.store.Delete(stored)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register document")
	}

	s.refreshCompleteness(ctx, profile)
	return doc, nil
}

// ListProfileDocuments returns the caller's reusable document set.
func (s *DocumentService) ListProfileDocuments(ctx context.Context, userID string) ([]models.ProfileDocument, error) {
	profile, err := s.profileOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.ListProfileDocuments(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	if docs == nil {
		docs = []models.ProfileDocument{}
	}
	return docs, nil
}

// DeleteProfileDocument removes a reusable document unless an application in
// PENDING or UNDER_REVIEW still references it.
func (s *DocumentService) DeleteProfileDocument(ctx context.Context, userID, documentID string) error {
	profile, err := s.profileOf(ctx, userID)
	if err != nil {
		return err
	}
	doc, err := s.documents.FindProfileDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.ProfileID != profile.ID {
		return appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}

	blocking, err := s.documents.CountBlockingLinks(ctx, doc.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check document references")
	}
	if blocking > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "document is attached to an application under review and cannot be deleted")
	}

	if err := s.documents.DeleteProfileDocument(ctx, doc.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if err := s.store.Delete(doc.FilePath); err != nil {
		s.logger.Warn("stored file removal failed", zap.String("path", doc.FilePath), zap.Error(err))
	}

	s.refreshCompleteness(ctx, profile)
	return nil
}

// ownedDraft loads an application, verifies ownership through the caller's
// profile and requires DRAFT status.
func (s *DocumentService) ownedDraft(ctx context.Context, userID, applicationID string) (*models.Application, *models.StudentProfile, error) {
	profile, err := s.profileOf(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.ProfileID != profile.ID {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	if app.Status != models.StatusDraft {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "documents can only be attached while the application is a draft")
	}
	return app, profile, nil
}

// UploadApplicationDocument stores a submission-specific document on the
// caller's own DRAFT application.
func (s *DocumentService) UploadApplicationDocument(ctx context.Context, userID, applicationID string, in UploadInput) (*models.ApplicationDocument, error) {
	if err := s.validateUpload(in); err != nil {
		return nil, err
	}
	app, _, err := s.ownedDraft(ctx, userID, applicationID)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("applications/%s/%s-%s%s", app.ID, strings.ToLower(string(in.Type)), uuid.NewString(), filepath.Ext(in.FileName))
	stored, err := s.store.SaveStream(path, in.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	doc := &models.ApplicationDocument{
		ApplicationID: app.ID,
		Type:          in.Type,
		FileName:      in.FileName,
		FilePath:      stored,
		MimeType:      in.MimeType,
		SizeBytes:     in.Size,
	}
	if err := s.documents.CreateApplicationDocument(ctx, doc); err != nil {
		_ = s.store.Delete(stored)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register document")
	}
	return doc, nil
}

// LinkProfileDocument attaches one of the caller's reusable documents to
// their DRAFT application. Duplicate links are rejected.
func (s *DocumentService) LinkProfileDocument(ctx context.Context, userID, applicationID, profileDocumentID string) (*models.ProfileDocumentLink, error) {
	app, profile, err := s.ownedDraft(ctx, userID, applicationID)
	if err != nil {
		return nil, err
	}

	doc, err := s.documents.FindProfileDocument(ctx, profileDocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.ProfileID != profile.ID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}

	exists, err := s.documents.LinkExists(ctx, app.ID, doc.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check document link")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "document is already attached to this application")
	}

	link := &models.ProfileDocumentLink{ApplicationID: app.ID, ProfileDocumentID: doc.ID}
	if err := s.documents.CreateLink(ctx, link); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach document")
	}
	return link, nil
}

// ListApplicationDocuments returns the documents and links visible on an
// application the caller owns.
func (s *DocumentService) ListApplicationDocuments(ctx context.Context, userID, applicationID string) ([]models.ApplicationDocument, []models.ProfileDocumentLink, error) {
	profile, err := s.profileOf(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.ProfileID != profile.ID {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	return s.documentsOf(ctx, app.ID)
}

// AdminListApplicationDocuments returns an application's document set
// without ownership checks.
func (s *DocumentService) AdminListApplicationDocuments(ctx context.Context, applicationID string) ([]models.ApplicationDocument, []models.ProfileDocumentLink, error) {
	if _, err := s.applications.FindByID(ctx, applicationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return s.documentsOf(ctx, applicationID)
}

func (s *DocumentService) documentsOf(ctx context.Context, applicationID string) ([]models.ApplicationDocument, []models.ProfileDocumentLink, error) {
	docs, err := s.documents.ListApplicationDocuments(ctx, applicationID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	links, err := s.documents.ListLinks(ctx, applicationID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list document links")
	}
	if docs == nil {
		docs = []models.ApplicationDocument{}
	}
	if links == nil {
		links = []models.ProfileDocumentLink{}
	}
	return docs, links, nil
}
