package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/elimu-fund/bursary-api/internal/models"
	"github.com/elimu-fund/bursary-api/internal/service"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
	"github.com/elimu-fund/bursary-api/pkg/response"
)

// AdminApplicationHandler wires the admin review and register endpoints.
type AdminApplicationHandler struct {
	applications *service.ApplicationService
	lifecycle    *service.LifecycleService
	reviews      *service.ReviewService
	documents    *service.DocumentService
}

// NewAdminApplicationHandler creates a new handler.
func NewAdminApplicationHandler(applications *service.ApplicationService, lifecycle *service.LifecycleService, reviews *service.ReviewService, documents *service.DocumentService) *AdminApplicationHandler {
	return &AdminApplicationHandler{
		applications: applications,
		lifecycle:    lifecycle,
		reviews:      reviews,
		documents:    documents,
	}
}

// List godoc
// @Summary List applications
// @Description Filtered, paginated application register with applicant context
// @Tags Admin
// @Produce json
// @Param status query string false "Status filter"
// @Param period_id query string false "Period filter"
// @Param county_id query string false "County filter"
// @Param search query string false "Application number or applicant name"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/applications [get]
func (h *AdminApplicationHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := models.ApplicationFilter{
		Status:    models.ApplicationStatus(c.Query("status")),
		PeriodID:  c.Query("period_id"),
		CountyID:  c.Query("county_id"),
		Search:    c.Query("search"),
		Page:      page,
		PageSize:  pageSize,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	apps, total, err := h.applications.AdminList(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get application
// @Tags Admin
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/applications/{id} [get]
func (h *AdminApplicationHandler) Get(c *gin.Context) {
	app, err := h.applications.AdminGet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// UpdateStatus godoc
// @Summary Transition application status
// @Description Execute one validated status change with an audit ledger row
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.TransitionRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/applications/{id}/status [patch]
func (h *AdminApplicationHandler) UpdateStatus(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transition payload"))
		return
	}
	app, err := h.lifecycle.Transition(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// BulkUpdate godoc
// @Summary Bulk transition applications
// @Description Apply one target status to a batch; failed items are reported per application
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body service.BulkUpdateRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/applications/bulk-status [post]
func (h *AdminApplicationHandler) BulkUpdate(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk payload"))
		return
	}
	result, err := h.lifecycle.BulkUpdate(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary Application status history
// @Tags Admin
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/applications/{id}/history [get]
func (h *AdminApplicationHandler) History(c *gin.Context) {
	history, err := h.lifecycle.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Score godoc
// @Summary Score an application
// @Description Record or revise the caller's review score
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.ScoreRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/applications/{id}/scores [post]
func (h *AdminApplicationHandler) Score(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid score payload"))
		return
	}
	score, err := h.reviews.Score(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

// Scores godoc
// @Summary Aggregated review scores
// @Tags Admin
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/applications/{id}/scores [get]
func (h *AdminApplicationHandler) Scores(c *gin.Context) {
	aggregate, err := h.reviews.GetScores(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, aggregate, nil)
}

// Documents godoc
// @Summary Application document set
// @Tags Admin
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/applications/{id}/documents [get]
func (h *AdminApplicationHandler) Documents(c *gin.Context) {
	docs, links, err := h.documents.AdminListApplicationDocuments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"documents": docs, "linked_profile_documents": links}, nil)
}

// Summary godoc
// @Summary Register summary by status
// @Tags Admin
// @Produce json
// @Param period_id query string false "Period filter"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/applications/summary [get]
func (h *AdminApplicationHandler) Summary(c *gin.Context) {
	counts, err := h.applications.Summary(c.Request.Context(), c.Query("period_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}
