package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/elimu-fund/bursary-api/internal/models"
)

// DocumentRepository handles both document pools: reusable profile
// documents and application-owned documents, plus the link bridge.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// UpsertProfileDocument replaces the document for (profile, type) in place.
// The previous row keeps its identity; only file metadata changes.
func (r *DocumentRepository) UpsertProfileDocument(ctx context.Context, doc *models.ProfileDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	const query = `INSERT INTO profile_documents (id, profile_id, type, file_name, file_path, mime_type, size_bytes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (profile_id, type) DO UPDATE SET
            file_name = EXCLUDED.file_name,
            file_path = EXCLUDED.file_path,
            mime_type = EXCLUDED.mime_type,
            size_bytes = EXCLUDED.size_bytes,
            updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, doc.ID, doc.ProfileID, doc.Type, doc.FileName, doc.FilePath, doc.MimeType, doc.SizeBytes, doc.CreatedAt, doc.UpdatedAt)
	if err := row.Scan(&doc.ID, &doc.CreatedAt); err != nil {
		return fmt.Errorf("upsert profile document: %w", err)
	}
	return nil
}

// FindProfileDocument loads one profile document.
func (r *DocumentRepository) FindProfileDocument(ctx context.Context, id string) (*models.ProfileDocument, error) {
	const query = `SELECT id, profile_id, type, file_name, file_path, mime_type, size_bytes, created_at, updated_at
        FROM profile_documents WHERE id = $1`
	var doc models.ProfileDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListProfileDocuments returns the profile's current document set.
func (r *DocumentRepository) ListProfileDocuments(ctx context.Context, profileID string) ([]models.ProfileDocument, error) {
	const query = `SELECT id, profile_id, type, file_name, file_path, mime_type, size_bytes, created_at, updated_at
        FROM profile_documents WHERE profile_id = $1 ORDER BY type`
	var docs []models.ProfileDocument
	if err := r.db.SelectContext(ctx, &docs, query, profileID); err != nil {
		return nil, fmt.Errorf("list profile documents: %w", err)
	}
	return docs, nil
}

// DeleteProfileDocument removes a profile document row.
func (r *DocumentRepository) DeleteProfileDocument(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM profile_documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete profile document: %w", err)
	}
	return nil
}

// CountBlockingLinks counts links from the document to applications whose
// status still forbids deletion (PENDING or UNDER_REVIEW).
func (r *DocumentRepository) CountBlockingLinks(ctx context.Context, profileDocumentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM application_profile_documents l
        JOIN applications a ON a.id = l.application_id
        WHERE l.profile_document_id = $1 AND a.status IN ($2, $3)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, profileDocumentID, models.StatusPending, models.StatusUnderReview); err != nil {
		return 0, fmt.Errorf("count blocking links: %w", err)
	}
	return count, nil
}

// CreateApplicationDocument persists a submission-specific document.
func (r *DocumentRepository) CreateApplicationDocument(ctx context.Context, doc *models.ApplicationDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO application_documents (id, application_id, type, file_name, file_path, mime_type, size_bytes, created_at)
        VALUES (:id, :application_id, :type, :file_name, :file_path, :mime_type, :size_bytes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create application document: %w", err)
	}
	return nil
}

// ListApplicationDocuments returns documents owned by an application.
func (r *DocumentRepository) ListApplicationDocuments(ctx context.Context, applicationID string) ([]models.ApplicationDocument, error) {
	const query = `SELECT id, application_id, type, file_name, file_path, mime_type, size_bytes, created_at
        FROM application_documents WHERE application_id = $1 ORDER BY created_at`
	var docs []models.ApplicationDocument
	if err := r.db.SelectContext(ctx, &docs, query, applicationID); err != nil {
		return nil, fmt.Errorf("list application documents: %w", err)
	}
	return docs, nil
}

// HasApplicationDocumentOfType reports presence of a document type on an
// application. Used to gate submission on the mandatory fee statement.
func (r *DocumentRepository) HasApplicationDocumentOfType(ctx context.Context, applicationID string, docType models.DocumentType) (bool, error) {
	const query = `SELECT 1 FROM application_documents WHERE application_id = $1 AND type = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, applicationID, docType); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check application document type: %w", err)
	}
	return true, nil
}

// LinkExists reports whether the (application, document) link already exists.
func (r *DocumentRepository) LinkExists(ctx context.Context, applicationID, profileDocumentID string) (bool, error) {
	const query = `SELECT 1 FROM application_profile_documents WHERE application_id = $1 AND profile_document_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, applicationID, profileDocumentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check document link: %w", err)
	}
	return true, nil
}

// CreateLink attaches a reusable profile document to an application.
func (r *DocumentRepository) CreateLink(ctx context.Context, link *models.ProfileDocumentLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO application_profile_documents (id, application_id, profile_document_id, created_at)
        VALUES (:id, :application_id, :profile_document_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("create document link: %w", err)
	}
	return nil
}

// ListLinks returns the profile documents linked to an application.
func (r *DocumentRepository) ListLinks(ctx context.Context, applicationID string) ([]models.ProfileDocumentLink, error) {
	const query = `SELECT id, application_id, profile_document_id, created_at
        FROM application_profile_documents WHERE application_id = $1 ORDER BY created_at`
	var links []models.ProfileDocumentLink
	if err := r.db.SelectContext(ctx, &links, query, applicationID); err != nil {
		return nil, fmt.Errorf("list document links: %w", err)
	}
	return links, nil
}
