package handler

import (
	"Promo/internal/hub"
	"net/http"

	"github.com/gin-gonic/gin"
)

// MonitorHandler handles monitoring and presence API endpoints
type MonitorHandler interface {
	GetHubStats(c *gin.Context)
	GetOnlineUsers(c *gin.Context)
}

type monitorHandler struct {
	hub            *hub.Hub
	monitorService *hub.MonitorService
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(h *hub.Hub) MonitorHandler {
	return &monitorHandler{
		hub:            h,
		monitorService: hub.NewMonitorService(h),
	}
}

// GetHubStats returns current hub statistics
// @Summary Get WebSocket hub statistics
// @Description Returns connected clients, registered users and typing sessions
// @Tags Monitor
// @Produce json
// @Success 200 {object} model.MonitorResponse
// @Router /api/monitor/stats [get]
func (h *monitorHandler) GetHubStats(c *gin.Context) {
	stats := h.monitorService.GetStats()

	c.JSON(http.StatusOK, gin.H{
		"HttpStatusCode": http.StatusOK,
		"ResponseBody":   stats,
		"IsSuccess":      true,
		"Message":        "Hub statistics retrieved successfully",
	})
}

// GetOnlineUsers returns the ids of every user with a live session
func (h *monitorHandler) GetOnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"userIds": h.hub.OnlineUsers(),
	})
}
