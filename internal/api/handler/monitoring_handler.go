package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rowan/backstop/internal/core/service"
)

type MonitoringHandler struct {
	monitoringService *service.MonitoringService
}

func NewMonitoringHandler(monitoringService *service.MonitoringService) *MonitoringHandler {
	return &MonitoringHandler{monitoringService: monitoringService}
}

// GetMonitoring handles GET /monitoring. The snapshot is computed fresh on
// every request; its struct already carries wire-ready json tags.
func (h *MonitoringHandler) GetMonitoring(c *gin.Context) {
	snapshot, err := h.monitoringService.Snapshot(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
