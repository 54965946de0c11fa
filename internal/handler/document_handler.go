package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elimu-fund/bursary-api/internal/models"
	"github.com/elimu-fund/bursary-api/internal/service"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
	"github.com/elimu-fund/bursary-api/pkg/response"
)

// DocumentHandler wires document uploads, links and deletions.
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler creates a new handler.
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// uploadInput parses the multipart form shared by both upload endpoints.
func uploadInput(c *gin.Context) (service.UploadInput, func() error, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return service.UploadInput{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required")
	}
	docType := c.PostForm("type")
	if docType == "" {
		return service.UploadInput{}, nil, appErrors.Clone(appErrors.ErrValidation, "document type is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return service.UploadInput{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	in := service.UploadInput{
		Type:     models.DocumentType(docType),
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Size:     fileHeader.Size,
		Content:  file,
	}
	return in, file.Close, nil
}

// UploadProfileDocument godoc
// @Summary Upload a profile document
// @Description Upload or replace one of the caller's reusable documents
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document file"
// @Param type formData string true "Document type"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /student/documents [post]
func (h *DocumentHandler) UploadProfileDocument(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	in, closeFn, err := uploadInput(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn() //nolint:errcheck

	doc, err := h.documents.UploadProfileDocument(c.Request.Context(), claims.UserID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// ListProfileDocuments godoc
// @Summary List own profile documents
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /student/documents [get]
func (h *DocumentHandler) ListProfileDocuments(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	docs, err := h.documents.ListProfileDocuments(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// DeleteProfileDocument godoc
// @Summary Delete a profile document
// @Description Delete a reusable document unless an application under review references it
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /student/documents/{id} [delete]
func (h *DocumentHandler) DeleteProfileDocument(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.documents.DeleteProfileDocument(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadApplicationDocument godoc
// @Summary Upload an application document
// @Description Attach a submission-specific document to a draft application
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Application ID"
// @Param file formData file true "Document file"
// @Param type formData string true "Document type"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /student/applications/{id}/documents [post]
func (h *DocumentHandler) UploadApplicationDocument(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	in, closeFn, err := uploadInput(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn() //nolint:errcheck

	doc, err := h.documents.UploadApplicationDocument(c.Request.Context(), claims.UserID, c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// LinkProfileDocument godoc
// @Summary Attach a profile document
// @Description Link one of the caller's reusable documents to a draft application
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body object true "Profile document reference"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /student/applications/{id}/documents/link [post]
func (h *DocumentHandler) LinkProfileDocument(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload struct {
		ProfileDocumentID string `json:"profile_document_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "profile_document_id is required"))
		return
	}
	link, err := h.documents.LinkProfileDocument(c.Request.Context(), claims.UserID, c.Param("id"), payload.ProfileDocumentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// ListApplicationDocuments godoc
// @Summary List application documents
// @Tags Documents
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /student/applications/{id}/documents [get]
func (h *DocumentHandler) ListApplicationDocuments(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	docs, links, err := h.documents.ListApplicationDocuments(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"documents": docs, "linked_profile_documents": links}, nil)
}
