package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/elimu-fund/bursary-api/internal/service"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
	"github.com/elimu-fund/bursary-api/pkg/response"
)

// NotificationHandler wires the in-app notification endpoints.
type NotificationHandler struct {
	notify *service.NotifyService
}

// NewNotificationHandler creates a new handler.
func NewNotificationHandler(notify *service.NotifyService) *NotificationHandler {
	return &NotificationHandler{notify: notify}
}

// List godoc
// @Summary List own notifications
// @Tags Notifications
// @Produce json
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	notifications, err := h.notify.List(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, nil)
}

// MarkRead godoc
// @Summary Mark a notification read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.notify.MarkRead(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
