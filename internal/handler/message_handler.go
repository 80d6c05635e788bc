package handler

import (
	"Promo/internal/hub"
	"Promo/internal/repo"
	"Promo/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type MessageHandler interface {
	GetHistory(c *gin.Context)
	GetUnseenCounts(c *gin.Context)
}

type messageHandler struct {
	service service.MessageService
}

func NewMessageHandler(service service.MessageService) MessageHandler {
	return &messageHandler{
		service: service,
	}
}

// GetHistory returns every message between :userId and :otherUserId,
// oldest first.
func (h *messageHandler) GetHistory(c *gin.Context) {
	userID := c.Param("userId")
	otherUserID := c.Param("otherUserId")
	if !hub.IsValidIdentity(userID) || !hub.IsValidIdentity(otherUserID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid user ID",
		})
		return
	}

	msgs, err := h.service.History(c.Request.Context(), userID, otherUserID)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get messages",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
	})
}

func (h *messageHandler) GetUnseenCounts(c *gin.Context) {
	userID := c.Param("userId")
	if !hub.IsValidIdentity(userID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid user ID",
		})
		return
	}

	counts, err := h.service.UnseenCounts(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count unseen messages",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"unseen": counts,
	})
}
