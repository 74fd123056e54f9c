package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
	"github.com/playarcana/backend/internal/config"
)

// Login upserts the player by username, issues a JWT, and returns player info.
// Client-facing identity verification lives at the platform gateway; this
// endpoint trusts the username it is handed.
func Login(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
			return
		}

		username := strings.TrimSpace(req.Username)
		if username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
			return
		}
		if len(username) > 32 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username too long"})
			return
		}

		var player struct {
			ID       int    `db:"id"`
			Username string `db:"username"`
			Balance  int    `db:"balance"`
		}
		err := db.Get(&player, `SELECT id, username, balance FROM players WHERE username=$1`, username)
		if err != nil {
			if _, err2 := db.Exec(`INSERT INTO players (username, created_at, is_active) VALUES ($1, NOW(), true)`, username); err2 != nil {
				log.Printf("Failed to create player %s: %v", username, err2)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			if err = db.Get(&player, `SELECT id, username, balance FROM players WHERE username=$1`, username); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
		}

		exp := time.Now().Add(24 * time.Hour)
		claims := jwt.MapClaims{
			"player_id": player.ID,
			"username":  player.Username,
			"exp":       exp.Unix(),
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(cfg.JWTSecret))
		if err != nil {
			log.Printf("Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": signed,
			"player": gin.H{
				"id":       player.ID,
				"username": player.Username,
				"balance":  player.Balance,
			},
		})
	}
}

// AuthMiddleware validates bearer JWT and sets player_id and username in context
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		playerIDf, ok := claims["player_id"].(float64)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("player_id", int(playerIDf))
		if username, ok := claims["username"].(string); ok {
			c.Set("username", username)
		}
		c.Next()
	}
}

// GetMe returns the authenticated player's profile
func GetMe(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		pidI, ok := c.Get("player_id")
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		pid := pidI.(int)

		var player struct {
			ID               int    `db:"id"`
			Username         string `db:"username"`
			Balance          int    `db:"balance"`
			TotalGamesPlayed int    `db:"total_games_played"`
			TotalGamesWon    int    `db:"total_games_won"`
		}
		if err := db.Get(&player, `SELECT id, username, balance, total_games_played, total_games_won FROM players WHERE id=$1`, pid); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "player not found"})
			return
		}

		var ratings []struct {
			Mode   string `db:"mode" json:"mode"`
			Rating int    `db:"rating" json:"rating"`
		}
		if err := db.Select(&ratings, `SELECT mode, rating FROM player_ratings WHERE player_id=$1 ORDER BY mode`, pid); err != nil {
			log.Printf("Failed to read ratings for player %d: %v", pid, err)
		}

		c.JSON(http.StatusOK, gin.H{
			"id":                 player.ID,
			"username":           player.Username,
			"balance":            player.Balance,
			"total_games_played": player.TotalGamesPlayed,
			"total_games_won":    player.TotalGamesWon,
			"ratings":            ratings,
		})
	}
}

// playerFromContext pulls the authenticated player id and username set by AuthMiddleware
func playerFromContext(c *gin.Context) (int, string, bool) {
	pidI, ok := c.Get("player_id")
	if !ok {
		return 0, "", false
	}
	return pidI.(int), c.GetString("username"), true
}
