package approuters

import (
	"Promo/internal/configuration"

	"github.com/gin-gonic/gin"
)

func MessageRouters(router *gin.Engine, container *configuration.Container) {
	messageRoute := router.Group("/api")
	{
		messageRoute.GET("/messages/:userId/:otherUserId", container.MessageHandler.GetHistory)
		messageRoute.GET("/unseen/:userId", container.MessageHandler.GetUnseenCounts)
		messageRoute.PUT("/seen/:viewerId/:otherUserId", container.SeenHandler.MarkSeen)
	}
}
