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
	Port string

	// Matchmaking
	DefaultCategory    string
	QueueExpiryMinutes int
	ReaperPollSeconds  int
	MatchEventsChannel string

	// Security
	JWTSecret            string
	AdminSessionTTLHours int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/quizclash?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port: getEnv("APP_PORT", "8080"),

		// Matchmaking
		DefaultCategory:    getEnv("DEFAULT_CATEGORY", "General"),
		QueueExpiryMinutes: getEnvInt("QUEUE_EXPIRY_MINUTES", 10),
		ReaperPollSeconds:  getEnvInt("REAPER_POLL_SECONDS", 30),
		MatchEventsChannel: getEnv("MATCH_EVENTS_CHANNEL", "match_events"),

		// Security
		JWTSecret:            getEnv("JWT_SECRET", "change-me-in-production"),
		AdminSessionTTLHours: getEnvInt("ADMIN_SESSION_TTL_HOURS", 4),
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
