package handler

import (
	"Promo/internal/hub"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type SeenHandler interface {
	MarkSeen(c *gin.Context)
}

// Reconciler is the part of the hub that marks messages seen.
type Reconciler interface {
	Reconcile(ctx context.Context, viewerID, otherPartyID string) (int64, error)
}

type seenHandler struct {
	reconciler Reconciler
}

func NewSeenHandler(reconciler Reconciler) SeenHandler {
	return &seenHandler{reconciler: reconciler}
}

// MarkSeen records that :viewerId has seen every message from :otherUserId
// and notifies the sender if online. Same effect as a mark-seen event.
func (h *seenHandler) MarkSeen(c *gin.Context) {
	viewerID := c.Param("viewerId")
	otherUserID := c.Param("otherUserId")
	if !hub.IsValidIdentity(viewerID) || !hub.IsValidIdentity(otherUserID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid user ID",
		})
		return
	}

	count, err := h.reconciler.Reconcile(c.Request.Context(), viewerID, otherUserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to mark messages as seen",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": count,
	})
}
