package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playarcana/backend/internal/admin"
	"github.com/playarcana/backend/internal/config"
	"github.com/playarcana/backend/internal/tournament"
	"github.com/redis/go-redis/v9"
)

const adminSessionTTL = 4 * time.Hour
const adminCookieName = "admin_session"

// AdminLogin validates credentials and creates a session cookie
func AdminLogin(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Token    string `json:"token" binding:"required"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		username := strings.TrimSpace(req.Username)
		token := strings.TrimSpace(req.Token)

		adminAcc, err := admin.ValidateAdminCredentials(db, username, token)
		if err != nil {
			log.Printf("[ADMIN] Login failed for username %s: %v", username, err)
			admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/login", "login", map[string]interface{}{"username": username}, false)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		// Generate session token
		tokenBytes := make([]byte, 32)
		if _, err := rand.Read(tokenBytes); err != nil {
			log.Printf("[ADMIN] Failed to generate session token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}
		sessionToken := hex.EncodeToString(tokenBytes)

		// Store session in Redis
		ctx := context.Background()
		sessionKey := "admin_session:" + sessionToken
		sessionData := map[string]interface{}{
			"username":   adminAcc.Username,
			"expires_at": time.Now().Add(adminSessionTTL).Unix(),
		}
		sessionJSON, _ := json.Marshal(sessionData)
		if err := rdb.Set(ctx, sessionKey, sessionJSON, adminSessionTTL).Err(); err != nil {
			log.Printf("[ADMIN] Failed to store session: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}

		// Set HTTP-only cookie
		secure := cfg.Environment == "production"
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(adminCookieName, sessionToken, int(adminSessionTTL.Seconds()), "/api/v1/admin", "", secure, true)

		admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/login", "login_success", map[string]interface{}{"username": username}, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// AdminLogout clears admin session
func AdminLogout(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookieName)
		if err == nil && token != "" {
			ctx := context.Background()
			rdb.Del(ctx, "admin_session:"+token)
		}

		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(adminCookieName, "", -1, "/api/v1/admin", "", false, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// AdminMe returns the current admin session info
func AdminMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("admin_username")
		c.JSON(http.StatusOK, gin.H{"username": username})
	}
}

// AdminSessionMiddleware validates admin session from cookie
func AdminSessionMiddleware(rdb *redis.Client, db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookieName)
		if err != nil || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			c.Abort()
			return
		}

		ctx := context.Background()
		sessionJSON, err := rdb.Get(ctx, "admin_session:"+token).Result()
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			c.Abort()
			return
		}

		var sessionData map[string]interface{}
		if err := json.Unmarshal([]byte(sessionJSON), &sessionData); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			c.Abort()
			return
		}

		if username, ok := sessionData["username"].(string); ok {
			c.Set("admin_username", username)
		}

		c.Next()
	}
}

// AdminCreateTournament creates a tournament and schedules its phase triggers
func AdminCreateTournament(db *sqlx.DB, ts *tournament.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminUsername := c.GetString("admin_username")

		var req tournament.CreateRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		t, err := ts.Create(context.Background(), req, adminUsername)
		if err != nil {
			admin.LogAdminAction(db, adminUsername, c.ClientIP(), "/api/v1/admin/tournaments", "create_tournament",
				map[string]interface{}{"name": req.Name, "error": err.Error()}, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		admin.LogAdminAction(db, adminUsername, c.ClientIP(), "/api/v1/admin/tournaments", "create_tournament",
			map[string]interface{}{"tournament_id": t.ID, "name": t.Name, "max_players": t.MaxPlayers}, true)
		c.JSON(http.StatusOK, gin.H{"tournament": t})
	}
}

// AdminCancelTournament cancels a tournament and refunds entry fees
func AdminCancelTournament(db *sqlx.DB, ts *tournament.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminUsername := c.GetString("admin_username")

		tid, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tournament id"})
			return
		}

		var req struct {
			Reason string `json:"reason"`
		}
		c.BindJSON(&req)
		if req.Reason == "" {
			req.Reason = "cancelled by admin"
		}

		if err := ts.Cancel(context.Background(), tid, req.Reason); err != nil {
			admin.LogAdminAction(db, adminUsername, c.ClientIP(), "/api/v1/admin/tournaments/cancel", "cancel_tournament",
				map[string]interface{}{"tournament_id": tid, "error": err.Error()}, false)
			if errors.Is(err, tournament.ErrTournamentNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "tournament not found"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel tournament"})
			}
			return
		}

		admin.LogAdminAction(db, adminUsername, c.ClientIP(), "/api/v1/admin/tournaments/cancel", "cancel_tournament",
			map[string]interface{}{"tournament_id": tid, "reason": req.Reason}, true)
		c.JSON(http.StatusOK, gin.H{"cancelled": true})
	}
}

// GetAdminAuditLogs returns paginated admin audit entries
func GetAdminAuditLogs(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if limit <= 0 || limit > 200 {
			limit = 50
		}
		if offset < 0 {
			offset = 0
		}

		logs, err := admin.GetAdminAuditLogs(db, limit, offset)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch audit logs: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit logs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"logs": logs, "limit": limit, "offset": offset})
	}
}
