package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Matchmaking
	MatchPassSeconds    int
	QueueTTLMinutes     int
	QueueSweepLimit     int
	InitialRatingWindow int
	RatingWindowStep    int
	MaxRatingWindow     int
	WindowStepSeconds   int
	LeaveQueuePerMinute int

	// Tournaments
	PhaseSweepSeconds int
	NoShowTimeoutMins int
	ReaperPollSeconds int
	MinParticipants   int
	MaxBracketSize    int

	// Security
	JWTSecret         string
	SessionTimeoutMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/playarcana?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Matchmaking
		MatchPassSeconds:    getEnvInt("MATCH_PASS_SECONDS", 10),
		QueueTTLMinutes:     getEnvInt("QUEUE_TTL_MINUTES", 5),
		QueueSweepLimit:     getEnvInt("QUEUE_SWEEP_LIMIT", 100),
		InitialRatingWindow: getEnvInt("INITIAL_RATING_WINDOW", 200),
		RatingWindowStep:    getEnvInt("RATING_WINDOW_STEP", 50),
		MaxRatingWindow:     getEnvInt("MAX_RATING_WINDOW", 1000),
		WindowStepSeconds:   getEnvInt("WINDOW_STEP_SECONDS", 10),
		LeaveQueuePerMinute: getEnvInt("LEAVE_QUEUE_PER_MINUTE", 6),

		// Tournaments
		PhaseSweepSeconds: getEnvInt("PHASE_SWEEP_SECONDS", 30),
		NoShowTimeoutMins: getEnvInt("NO_SHOW_TIMEOUT_MINUTES", 5),
		ReaperPollSeconds: getEnvInt("REAPER_POLL_SECONDS", 30),
		MinParticipants:   getEnvInt("MIN_PARTICIPANTS", 2),
		MaxBracketSize:    getEnvInt("MAX_BRACKET_SIZE", 32),

		// Security
		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		SessionTimeoutMin: getEnvInt("SESSION_TIMEOUT_MINUTES", 30),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
