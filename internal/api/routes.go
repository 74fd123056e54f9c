package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playarcana/backend/internal/api/handlers"
	"github.com/playarcana/backend/internal/config"
	"github.com/playarcana/backend/internal/matchmaking"
	"github.com/playarcana/backend/internal/middleware"
	"github.com/playarcana/backend/internal/session"
	"github.com/playarcana/backend/internal/tournament"
	"github.com/redis/go-redis/v9"
)

// Deps carries the wired services the routes dispatch into
type Deps struct {
	DB          *sqlx.DB
	RDB         *redis.Client
	Cfg         *config.Config
	Matchmaking *matchmaking.Service
	Tournaments *tournament.Service
	Sessions    *session.Store
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, d Deps) {
	router.Use(middleware.CORSMiddleware(d.Cfg))
	router.Use(middleware.WebSocketCORSCheck(d.Cfg))

	// No-cache headers in development
	if d.Cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] No-cache headers enabled for all routes")
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		// Auth
		v1.POST("/auth/login", handlers.Login(d.DB, d.Cfg))

		// Public tournament reads
		v1.GET("/tournaments", handlers.GetActiveTournaments(d.Tournaments))
		v1.GET("/tournaments/:id", handlers.GetTournamentDetails(d.Tournaments))
		v1.GET("/tournaments/:id/bracket", handlers.GetTournamentBracket(d.Tournaments))

		// Public queue stats
		v1.GET("/queue/stats", handlers.GetQueueStats(d.Matchmaking))

		// Event stream (JWT via query parameter)
		v1.GET("/events/ws", handlers.HandleEventSocket(d.Sessions, d.Cfg))

		// Authenticated player endpoints
		auth := v1.Group("")
		auth.Use(handlers.AuthMiddleware(d.Cfg))
		{
			auth.GET("/me", handlers.GetMe(d.DB))
			auth.GET("/me/tournaments", handlers.GetMyTournamentHistory(d.Tournaments))

			auth.POST("/queue/join", handlers.JoinQueue(d.Matchmaking))
			auth.POST("/queue/leave", handlers.LeaveQueue(d.Matchmaking))
			auth.GET("/queue/status", handlers.GetQueueStatus(d.Matchmaking))

			auth.POST("/tournaments/:id/register", handlers.RegisterForTournament(d.Tournaments))
			auth.POST("/tournaments/:id/checkin", handlers.TournamentCheckIn(d.Tournaments))

			auth.GET("/sessions/:token", handlers.GetSession(d.Sessions))
			auth.POST("/sessions/:token/outcome", handlers.ReportSessionOutcome(d.Sessions, d.Tournaments))
		}

		// Admin endpoints
		adminGroup := v1.Group("/admin")
		{
			adminGroup.POST("/login", handlers.AdminLogin(d.DB, d.RDB, d.Cfg))
			adminGroup.POST("/logout", handlers.AdminLogout(d.RDB))

			protected := adminGroup.Group("")
			protected.Use(handlers.AdminSessionMiddleware(d.RDB, d.DB))
			{
				protected.GET("/me", handlers.AdminMe())
				protected.POST("/tournaments", handlers.AdminCreateTournament(d.DB, d.Tournaments))
				protected.POST("/tournaments/:id/cancel", handlers.AdminCancelTournament(d.DB, d.Tournaments))
				protected.GET("/audit-logs", handlers.GetAdminAuditLogs(d.DB))
			}
		}
	}
}
