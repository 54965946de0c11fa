package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elimu-fund/bursary-api/internal/models"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
)

type documentRepoStub struct {
	profileDocs   map[string]*models.ProfileDocument
	appDocs       []models.ApplicationDocument
	links         []models.ProfileDocumentLink
	blockingLinks int
}

func newDocumentRepoStub() *documentRepoStub {
	return &documentRepoStub{profileDocs: make(map[string]*models.ProfileDocument)}
}

func (r *documentRepoStub) UpsertProfileDocument(_ context.Context, doc *models.ProfileDocument) error {
	for _, existing := range r.profileDocs {
		if existing.ProfileID == doc.ProfileID && existing.Type == doc.Type {
			doc.ID = existing.ID
			r.profileDocs[existing.ID] = doc
			return nil
		}
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	r.profileDocs[doc.ID] = doc
	return nil
}

func (r *documentRepoStub) FindProfileDocument(_ context.Context, id string) (*models.ProfileDocument, error) {
	doc, ok := r.profileDocs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return doc, nil
}

func (r *documentRepoStub) ListProfileDocuments(_ context.Context, profileID string) ([]models.ProfileDocument, error) {
	var docs []models.ProfileDocument
	for _, doc := range r.profileDocs {
		if doc.ProfileID == profileID {
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

func (r *documentRepoStub) DeleteProfileDocument(_ context.Context, id string) error {
	delete(r.profileDocs, id)
	return nil
}

func (r *documentRepoStub) CountBlockingLinks(_ context.Context, _ string) (int, error) {
	return r.blockingLinks, nil
}

func (r *documentRepoStub) CreateApplicationDocument(_ context.Context, doc *models.ApplicationDocument) error {
	doc.ID = uuid.NewString()
	r.appDocs = append(r.appDocs, *doc)
	return nil
}

func (r *documentRepoStub) ListApplicationDocuments(_ context.Context, applicationID string) ([]models.ApplicationDocument, error) {
	var docs []models.ApplicationDocument
	for _, doc := range r.appDocs {
		if doc.ApplicationID == applicationID {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (r *documentRepoStub) LinkExists(_ context.Context, applicationID, profileDocumentID string) (bool, error) {
	for _, link := range r.links {
		if link.ApplicationID == applicationID && link.ProfileDocumentID == profileDocumentID {
			return true, nil
		}
	}
	return false, nil
}

func (r *documentRepoStub) CreateLink(_ context.Context, link *models.ProfileDocumentLink) error {
	link.ID = uuid.NewString()
	r.links = append(r.links, *link)
	return nil
}

func (r *documentRepoStub) ListLinks(_ context.Context, applicationID string) ([]models.ProfileDocumentLink, error) {
	var links []models.ProfileDocumentLink
	for _, link := range r.links {
		if link.ApplicationID == applicationID {
			links = append(links, link)
		}
	}
	return links, nil
}

type documentProfileRepoStub struct {
	profile      *models.StudentProfile
	completeness []bool
}

func (r *documentProfileRepoStub) FindByUserID(_ context.Context, userID string) (*models.StudentProfile, error) {
	if r.profile == nil || r.profile.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return r.profile, nil
}

func (r *documentProfileRepoStub) SetComplete(_ context.Context, _ string, complete bool) error {
	r.completeness = append(r.completeness, complete)
	return nil
}

type documentAppRepoStub struct {
	apps map[string]*models.Application
}

func (r *documentAppRepoStub) FindByID(_ context.Context, id string) (*models.Application, error) {
	app, ok := r.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return app, nil
}

type documentStoreStub struct {
	saved   []string
	deleted []string
	saveErr error
}

func (s *documentStoreStub) SaveStream(filename string, r io.Reader) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	_, _ = io.Copy(io.Discard, r)
	s.saved = append(s.saved, filename)
	return filename, nil
}

func (s *documentStoreStub) Delete(filename string) error {
	s.deleted = append(s.deleted, filename)
	return nil
}

func documentFixture(appStatus models.ApplicationStatus) (*DocumentService, *documentRepoStub, *documentProfileRepoStub, *documentStoreStub) {
	repo := newDocumentRepoStub()
	profiles := &documentProfileRepoStub{profile: completeProfile()}
	profiles.profile.ID = "profile-1"
	profiles.profile.UserID = "user-1"
	apps := &documentAppRepoStub{apps: map[string]*models.Application{
		"app-1": {ID: "app-1", ProfileID: "profile-1", Status: appStatus},
	}}
	store := &documentStoreStub{}
	return NewDocumentService(repo, profiles, apps, store, 1<<20, zap.NewNop()), repo, profiles, store
}

func pdfUpload(docType models.DocumentType) UploadInput {
	return UploadInput{
		Type:     docType,
		FileName: "scan.pdf",
		MimeType: "application/pdf",
		Size:     2048,
		Content:  strings.NewReader("%PDF-1.4"),
	}
}

func TestUploadProfileDocumentReplacesSameType(t *testing.T) {
	svc, repo, profiles, _ := documentFixture(models.StatusDraft)
	ctx := context.Background()

	first, err := svc.UploadProfileDocument(ctx, "user-1", pdfUpload(models.DocumentTypeNationalID))
	require.NoError(t, err)
	second, err := svc.UploadProfileDocument(ctx, "user-1", pdfUpload(models.DocumentTypeNationalID))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.profileDocs, 1)
	// Every document change refreshes the cached completeness flag.
	assert.Len(t, profiles.completeness, 2)
}

func TestUploadProfileDocumentRejectsBadInput(t *testing.T) {
	svc, _, _, _ := documentFixture(models.StatusDraft)
	ctx := context.Background()

	in := pdfUpload(models.DocumentTypeNationalID)
	in.Type = "SELFIE"
	_, err := svc.UploadProfileDocument(ctx, "user-1", in)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	in = pdfUpload(models.DocumentTypeNationalID)
	in.MimeType = "application/zip"
	_, err = svc.UploadProfileDocument(ctx, "user-1", in)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	in = pdfUpload(models.DocumentTypeNationalID)
	in.Size = 2 << 20
	_, err = svc.UploadProfileDocument(ctx, "user-1", in)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteProfileDocumentBlockedWhileUnderReview(t *testing.T) {
	svc, repo, _, _ := documentFixture(models.StatusDraft)
	ctx := context.Background()

	doc, err := svc.UploadProfileDocument(ctx, "user-1", pdfUpload(models.DocumentTypeTranscript))
	require.NoError(t, err)

	repo.blockingLinks = 1
	err = svc.DeleteProfileDocument(ctx, "user-1", doc.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.profileDocs, 1)

	repo.blockingLinks = 0
	require.NoError(t, svc.DeleteProfileDocument(ctx, "user-1", doc.ID))
	assert.Empty(t, repo.profileDocs)
}

func TestDeleteProfileDocumentForeignReportsNotFound(t *testing.T) {
	svc, repo, _, _ := documentFixture(models.StatusDraft)
	repo.profileDocs["doc-x"] = &models.ProfileDocument{ID: "doc-x", ProfileID: "other-profile", Type: models.DocumentTypeTranscript}

	err := svc.DeleteProfileDocument(context.Background(), "user-1", "doc-x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUploadApplicationDocumentDraftOnly(t *testing.T) {
	svc, _, _, _ := documentFixture(models.StatusPending)

	_, err := svc.UploadApplicationDocument(context.Background(), "user-1", "app-1", pdfUpload(models.DocumentTypeFeeStatement))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUploadApplicationDocumentStoresUnderApplication(t *testing.T) {
	svc, repo, _, store := documentFixture(models.StatusDraft)

	doc, err := svc.UploadApplicationDocument(context.Background(), "user-1", "app-1", pdfUpload(models.DocumentTypeFeeStatement))
	require.NoError(t, err)
	assert.Equal(t, "app-1", doc.ApplicationID)
	require.Len(t, store.saved, 1)
	assert.True(t, strings.HasPrefix(store.saved[0], "applications/app-1/"))
	assert.Len(t, repo.appDocs, 1)
}

func TestLinkProfileDocumentRejectsDuplicate(t *testing.T) {
	svc, _, _, _ := documentFixture(models.StatusDraft)
	ctx := context.Background()

	doc, err := svc.UploadProfileDocument(ctx, "user-1", pdfUpload(models.DocumentTypeNationalID))
	require.NoError(t, err)

	_, err = svc.LinkProfileDocument(ctx, "user-1", "app-1", doc.ID)
	require.NoError(t, err)

	_, err = svc.LinkProfileDocument(ctx, "user-1", "app-1", doc.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLinkProfileDocumentForeignDocumentNotFound(t *testing.T) {
	svc, repo, _, _ := documentFixture(models.StatusDraft)
	repo.profileDocs["doc-x"] = &models.ProfileDocument{ID: "doc-x", ProfileID: "other-profile", Type: models.DocumentTypeNationalID}

	_, err := svc.LinkProfileDocument(context.Background(), "user-1", "app-1", "doc-x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestListApplicationDocumentsNormalisesEmpty(t *testing.T) {
	svc, _, _, _ := documentFixture(models.StatusDraft)

	docs, links, err := svc.ListApplicationDocuments(context.Background(), "user-1", "app-1")
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.NotNil(t, links)
	assert.Empty(t, docs)
	assert.Empty(t, links)
}

func TestUploadProfileDocumentRollsBackStoredFile(t *testing.T) {
	repo := newDocumentRepoStub()
	profiles := &documentProfileRepoStub{profile: completeProfile()}
	profiles.profile.ID = "profile-1"
	profiles.profile.UserID = "user-1"
	store := &documentStoreStub{}
	svc := NewDocumentService(&failingUpsertRepo{documentRepoStub: repo}, profiles, &documentAppRepoStub{}, store, 1<<20, zap.NewNop())

	_, err := svc.UploadProfileDocument(context.Background(), "user-1", pdfUpload(models.DocumentTypeNationalID))
	require.Error(t, err)
	require.Len(t, store.deleted, 1)
}

type failingUpsertRepo struct {
	*documentRepoStub
}

func (r *failingUpsertRepo) UpsertProfileDocument(_ context.Context, _ *models.ProfileDocument) error {
	return assert.AnError
}
