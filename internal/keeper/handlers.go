package keeper

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinHandlers contains HTTP handlers for the settlement trigger endpoint
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// TriggerHandler runs one settlement pass. The run result is the response
// body itself; failures are reported inside it, never as a thrown error.
func (h *GinHandlers) TriggerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result := h.service.Run(c.Request.Context())
		c.JSON(http.StatusOK, result)
	}
}
