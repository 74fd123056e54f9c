package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playarcana/backend/internal/session"
	"github.com/playarcana/backend/internal/tournament"
)

// GetSession returns the caller's view of a match session
func GetSession(sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, _, ok := playerFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		token := c.Param("token")
		sess, err := sessions.GetByToken(context.Background(), token)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		if pid != sess.Player1ID && pid != sess.Player2ID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
			return
		}

		c.JSON(http.StatusOK, sess)
	}
}

// ReportSessionOutcome records the winner of a finished session. If the
// session belongs to a tournament match the bracket advances as well.
func ReportSessionOutcome(sessions *session.Store, ts *tournament.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, _, ok := playerFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		token := c.Param("token")
		var req struct {
			WinnerID int `json:"winner_id"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "winner_id required"})
			return
		}

		ctx := context.Background()
		sess, err := sessions.GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		if pid != sess.Player1ID && pid != sess.Player2ID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
			return
		}

		settled, err := sessions.CompleteSession(ctx, token, req.WinnerID)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrAlreadySettled):
				c.JSON(http.StatusConflict, gin.H{"error": "session already settled"})
			case errors.Is(err, session.ErrNotParticipant):
				c.JSON(http.StatusBadRequest, gin.H{"error": "winner is not part of this session"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to settle session"})
			}
			return
		}

		// Feed tournament sessions into the bracket. A failure here leaves
		// the match to the no-show reaper, which retries settled sessions.
		if err := ts.HandleSessionOutcome(ctx, settled); err != nil {
			log.Printf("Failed to advance bracket for session %s: %v", token, err)
		}

		c.JSON(http.StatusOK, gin.H{"settled": true, "winner_id": req.WinnerID})
	}
}
