// Package config loads environment-driven configuration for the TrailTalk tools.
package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration shared by the dev gateway, CLI, and seeder.
type Config struct {
	// DatabaseURL is a full DSN; when empty the individual DB_* fields are used.
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// GatewayURL is the base URL of the gateway the client core talks to.
	GatewayURL string

	// JWTSecret signs and verifies gateway session tokens.
	JWTSecret string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	ListenAddr string
	LogLevel   string
	LogFile    string
}

// Load reads .env (when present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	return &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:      getEnvOrDefault("DB_PORT", "5432"),
		DBUser:      getEnvOrDefault("DB_USER", "postgres"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      getEnvOrDefault("DB_NAME", "trailtalk"),
		DBSSLMode:   getEnvOrDefault("DB_SSLMODE", "disable"),

		GatewayURL: getEnvOrDefault("GATEWAY_URL", "http://localhost:8790"),
		JWTSecret:  os.Getenv("JWT_SECRET"),

		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		ListenAddr: getEnvOrDefault("LISTEN_ADDR", ":8790"),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:    os.Getenv("LOG_FILE"),
	}
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
