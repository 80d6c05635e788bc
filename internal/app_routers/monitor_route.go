package approuters

import (
	"Promo/internal/configuration"

	"github.com/gin-gonic/gin"
)

// MonitorRouters sets up monitoring and presence API routes
func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	monitorGroup := router.Group("/api/monitor")
	{
		// GET /api/monitor/stats - Get hub statistics
		monitorGroup.GET("/stats", container.MonitorHandler.GetHubStats)
	}

	router.GET("/api/presence/online", container.MonitorHandler.GetOnlineUsers)
}
