package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/playarcana/backend/internal/api"
	"github.com/playarcana/backend/internal/config"
	"github.com/playarcana/backend/internal/database"
	"github.com/playarcana/backend/internal/economy"
	"github.com/playarcana/backend/internal/matchmaking"
	"github.com/playarcana/backend/internal/migrations"
	"github.com/playarcana/backend/internal/rating"
	"github.com/playarcana/backend/internal/redis"
	"github.com/playarcana/backend/internal/scheduler"
	"github.com/playarcana/backend/internal/session"
	"github.com/playarcana/backend/internal/tournament"
	"github.com/playarcana/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Wire services
	sessions := session.NewStore(db, rdb)
	ratings := rating.NewSQLProvider(db)
	ledger := economy.NewSQLLedger(db)

	mm := matchmaking.NewService(matchmaking.NewPostgresRepository(db), sessions, ratings, rdb, cfg)

	sched, err := scheduler.New()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	tourneys := tournament.NewService(tournament.NewPostgresStore(db), ledger, ratings, sessions, sched, rdb, cfg)

	// Background jobs: matching pass, queue TTL sweep, tournament phase
	// catch-up and the no-show reaper
	ctx := context.Background()
	if err := sched.Every(time.Duration(cfg.MatchPassSeconds)*time.Second, "matchmaking-pass", func() {
		mm.RunPassAll(ctx)
	}); err != nil {
		log.Fatalf("Failed to schedule matchmaking pass: %v", err)
	}
	if err := sched.Every(time.Minute, "queue-ttl-sweep", func() {
		mm.Sweep(ctx, time.Now())
	}); err != nil {
		log.Fatalf("Failed to schedule queue sweep: %v", err)
	}
	if err := sched.Every(time.Duration(cfg.PhaseSweepSeconds)*time.Second, "tournament-phase-sweep", func() {
		tourneys.SweepPhases(ctx, time.Now())
	}); err != nil {
		log.Fatalf("Failed to schedule phase sweep: %v", err)
	}
	if err := sched.Every(time.Duration(cfg.ReaperPollSeconds)*time.Second, "no-show-reaper", func() {
		tourneys.ReapNoShows(ctx, time.Now())
	}); err != nil {
		log.Fatalf("Failed to schedule no-show reaper: %v", err)
	}

	// Re-register one-time phase triggers for tournaments that were pending
	// when the process last stopped
	if err := tourneys.ReschedulePending(ctx); err != nil {
		log.Printf("Failed to reschedule pending tournaments: %v", err)
	}

	sched.Start()
	defer sched.Shutdown()

	// Wire Redis into the WS layer and start the event subscriber
	ws.SetRedisClient(rdb)
	ws.StartEventSubscriber(ctx)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	api.SetupRoutes(router, api.Deps{
		DB:          db,
		RDB:         rdb,
		Cfg:         cfg,
		Matchmaking: mm,
		Tournaments: tourneys,
		Sessions:    sessions,
	})

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting PlayArcana server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
