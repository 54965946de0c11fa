package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elimu-fund/bursary-api/internal/service"
	"github.com/elimu-fund/bursary-api/pkg/response"
)

// ReferenceHandler wires the static lookup endpoints.
type ReferenceHandler struct {
	reference *service.ReferenceService
}

// NewReferenceHandler creates a new handler.
func NewReferenceHandler(reference *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{reference: reference}
}

// Counties godoc
// @Summary List counties
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reference/counties [get]
func (h *ReferenceHandler) Counties(c *gin.Context) {
	counties, err := h.reference.Counties(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counties, nil)
}

// SubCounties godoc
// @Summary List sub-counties of a county
// @Tags Reference
// @Produce json
// @Param id path string true "County ID"
// @Success 200 {object} response.Envelope
// @Router /reference/counties/{id}/sub-counties [get]
func (h *ReferenceHandler) SubCounties(c *gin.Context) {
	subCounties, err := h.reference.SubCounties(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subCounties, nil)
}

// Wards godoc
// @Summary List wards of a sub-county
// @Tags Reference
// @Produce json
// @Param id path string true "Sub-county ID"
// @Success 200 {object} response.Envelope
// @Router /reference/sub-counties/{id}/wards [get]
func (h *ReferenceHandler) Wards(c *gin.Context) {
	wards, err := h.reference.Wards(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wards, nil)
}

// Institutions godoc
// @Summary List institutions
// @Tags Reference
// @Produce json
// @Param county_id query string false "County filter"
// @Success 200 {object} response.Envelope
// @Router /reference/institutions [get]
func (h *ReferenceHandler) Institutions(c *gin.Context) {
	institutions, err := h.reference.Institutions(c.Request.Context(), c.Query("county_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institutions, nil)
}
