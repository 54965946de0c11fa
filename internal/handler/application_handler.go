package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elimu-fund/bursary-api/internal/service"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
	"github.com/elimu-fund/bursary-api/pkg/response"
)

// ApplicationHandler wires the student-facing application endpoints.
type ApplicationHandler struct {
	applications *service.ApplicationService
	lifecycle    *service.LifecycleService
}

// NewApplicationHandler creates a new handler.
func NewApplicationHandler(applications *service.ApplicationService, lifecycle *service.LifecycleService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications, lifecycle: lifecycle}
}

// Create godoc
// @Summary Start a draft application
// @Description Create a DRAFT application after the eligibility policy passes
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body service.CreateApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /student/applications [post]
func (h *ApplicationHandler) Create(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}
	app, err := h.applications.CreateDraft(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// List godoc
// @Summary List own applications
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /student/applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	apps, err := h.applications.ListOwn(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, nil)
}

// Get godoc
// @Summary Get own application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /student/applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	app, err := h.applications.Get(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Update godoc
// @Summary Update own draft application
// @Description Edit working fields while the application is in DRAFT
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.UpdateDraftRequest true "Application payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /student/applications/{id} [put]
func (h *ApplicationHandler) Update(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}
	app, err := h.applications.UpdateDraft(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Submit godoc
// @Summary Submit own draft application
// @Description Move the draft to PENDING, freezing the profile snapshot
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /student/applications/{id}/submit [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	app, err := h.applications.Submit(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// History godoc
// @Summary Own application status history
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /student/applications/{id}/history [get]
func (h *ApplicationHandler) History(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	// Ownership first; the ledger itself is not owner-scoped.
	if _, err := h.applications.Get(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	history, err := h.lifecycle.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
