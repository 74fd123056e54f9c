package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/playarcana/backend/internal/matchmaking"
	"github.com/playarcana/backend/internal/models"
	"github.com/playarcana/backend/internal/rating"
)

// JoinQueue enqueues the authenticated player for a mode
func JoinQueue(mm *matchmaking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, username, ok := playerFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req struct {
			Mode string `json:"mode"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode required"})
			return
		}

		mode := models.Mode(req.Mode)
		if !mode.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be ranked or casual"})
			return
		}

		ticket, err := mm.Join(context.Background(), pid, username, mode)
		if err != nil {
			switch {
			case errors.Is(err, matchmaking.ErrAlreadyQueued):
				c.JSON(http.StatusConflict, gin.H{"error": "already in queue"})
			case errors.Is(err, matchmaking.ErrInLiveSession):
				c.JSON(http.StatusConflict, gin.H{"error": "already in a live match"})
			case errors.Is(err, rating.ErrNoActiveDeck):
				c.JSON(http.StatusBadRequest, gin.H{"error": "no active deck selected"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join queue"})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"queued":     true,
			"mode":       ticket.Mode,
			"rating":     ticket.Rating,
			"joined_at":  ticket.JoinedAt.Format(time.RFC3339),
			"expires_at": ticket.ExpiresAt.Format(time.RFC3339),
		})
	}
}

// LeaveQueue removes the authenticated player's ticket
func LeaveQueue(mm *matchmaking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, _, ok := playerFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if err := mm.Leave(context.Background(), pid); err != nil {
			switch {
			case errors.Is(err, matchmaking.ErrLeaveRateLimit):
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many queue operations"})
			case errors.Is(err, matchmaking.ErrNotInQueue):
				c.JSON(http.StatusNotFound, gin.H{"error": "not in queue"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave queue"})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"left": true})
	}
}

// GetQueueStatus reports wait time and the current rating window for the
// caller's ticket
func GetQueueStatus(mm *matchmaking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, _, ok := playerFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		status, err := mm.Status(context.Background(), pid, time.Now())
		if err != nil {
			if errors.Is(err, matchmaking.ErrNotInQueue) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not in queue"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read queue status"})
			return
		}

		c.JSON(http.StatusOK, status)
	}
}

// GetQueueStats summarizes queue depth per mode (public)
func GetQueueStats(mm *matchmaking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := mm.Stats(context.Background())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read queue stats"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
