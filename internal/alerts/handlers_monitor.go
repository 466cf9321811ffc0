package alerts

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MonitorHandlers exposes the scheduled monitor trigger.
type MonitorHandlers struct {
	monitor *Monitor
}

func NewMonitorHandlers(monitor *Monitor) *MonitorHandlers {
	return &MonitorHandlers{monitor: monitor}
}

// TriggerHandler runs one monitoring pass and reports the summary.
func (h *MonitorHandlers) TriggerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result := h.monitor.Run(c.Request.Context())
		c.JSON(http.StatusOK, result)
	}
}
