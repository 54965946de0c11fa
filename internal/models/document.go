package models

import "time"

// DocumentType enumerates the evidence categories the fund accepts.
type DocumentType string

const (
	DocumentTypeNationalID      DocumentType = "NATIONAL_ID"
	DocumentTypeBirthCert       DocumentType = "BIRTH_CERTIFICATE"
	DocumentTypeAdmissionLetter DocumentType = "ADMISSION_LETTER"
	DocumentTypeFeeStructure    DocumentType = "FEE_STRUCTURE"
	DocumentTypeFeeStatement    DocumentType = "FEE_STATEMENT"
	DocumentTypeTranscript      DocumentType = "TRANSCRIPT"
	DocumentTypeRecommendation  DocumentType = "RECOMMENDATION_LETTER"
	DocumentTypeDisabilityCert  DocumentType = "DISABILITY_CERTIFICATE"
)

// FileMeta carries storage metadata for an uploaded file. The core never
// inspects file bytes; the storage layer hands back a retrievable path.
type FileMeta struct {
	FileName  string `json:"file_name"`
	FilePath  string `json:"file_path"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// ProfileDocument is a reusable document owned by a student profile.
// At most one active row exists per (profile, type); a re-upload of the
// same type replaces the previous row in place.
type ProfileDocument struct {
	ID        string       `db:"id" json:"id"`
	ProfileID string       `db:"profile_id" json:"profile_id"`
	Type      DocumentType `db:"type" json:"type"`
	FileName  string       `db:"file_name" json:"file_name"`
	FilePath  string       `db:"file_path" json:"file_path"`
	MimeType  string       `db:"mime_type" json:"mime_type"`
	SizeBytes int64        `db:"size_bytes" json:"size_bytes"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// ApplicationDocument is owned by exactly one application and is not
// reusable across applications.
type ApplicationDocument struct {
	ID            string       `db:"id" json:"id"`
	ApplicationID string       `db:"application_id" json:"application_id"`
	Type          DocumentType `db:"type" json:"type"`
	FileName      string       `db:"file_name" json:"file_name"`
	FilePath      string       `db:"file_path" json:"file_path"`
	MimeType      string       `db:"mime_type" json:"mime_type"`
	SizeBytes     int64        `db:"size_bytes" json:"size_bytes"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// ProfileDocumentLink attaches a reusable profile document to a specific
// application for review purposes; unique per (application, document).
type ProfileDocumentLink struct {
	ID                string    `db:"id" json:"id"`
	ApplicationID     string    `db:"application_id" json:"application_id"`
	ProfileDocumentID string    `db:"profile_document_id" json:"profile_document_id"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
