package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/elimu-fund/bursary-api/internal/middleware"
	"github.com/elimu-fund/bursary-api/internal/models"
)

// claimsFrom extracts the authenticated identity set by the JWT middleware.
func claimsFrom(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}
