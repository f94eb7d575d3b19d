package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/typedai/typedai/pkg/queue"
	"github.com/typedai/typedai/pkg/scope"
	"github.com/typedai/typedai/pkg/store"
)

// respondError maps runtime errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "not owned by current user"})
	case errors.Is(err, store.ErrParentMissing):
		c.JSON(http.StatusBadRequest, gin.H{"error": "parent agent not found"})
	case errors.Is(err, scope.ErrNotBound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no user bound to request"})
	case errors.Is(err, queue.ErrAgentBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "agent already has an active execution"})
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrPoolStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "execution queue unavailable"})
	case store.IsMessageTooLarge(err):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	default:
		slog.Error("Unexpected API error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
