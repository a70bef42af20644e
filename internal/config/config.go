package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Realtime RealtimeConfig
	Cache    CacheConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	DBName     string
	SSLMode    string
	TestDBName string // Separate database for testing
}

// RedisConfig holds the Redis connection configuration
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret string
}

// RealtimeConfig holds settings for the collaborative editing channel
type RealtimeConfig struct {
	// LockTTL bounds how long a field lock survives without a stopEditing,
	// so silently-dropped clients cannot hold fields forever
	LockTTL      time.Duration
	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// CacheConfig holds TTLs for the client-facing caches
type CacheConfig struct {
	InsightTTL     time.Duration
	NudgeCooldown  time.Duration
	NudgeSessions  int
	NudgeEditCount int
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadConfig loads the configuration from the environment. A .env file in the
// working directory is applied first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvAsInt("DB_PORT", 5432),
			Username:   getEnv("DB_USERNAME", "postgres"),
			Password:   getEnv("DB_PASSWORD", "password"),
			DBName:     getEnv("DB_NAME", "wanderplan"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			TestDBName: getEnv("TEST_DB_NAME", "wanderplan_test"),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "your-secret-key-here"),
		},
		Realtime: RealtimeConfig{
			LockTTL:      getEnvAsDuration("COLLAB_LOCK_TTL", 90*time.Second),
			PingInterval: getEnvAsDuration("COLLAB_PING_INTERVAL", 30*time.Second),
			WriteTimeout: getEnvAsDuration("COLLAB_WRITE_TIMEOUT", 10*time.Second),
			ReadTimeout:  getEnvAsDuration("COLLAB_READ_TIMEOUT", 75*time.Second),
		},
		Cache: CacheConfig{
			InsightTTL:     getEnvAsDuration("INSIGHT_TTL", 24*time.Hour),
			NudgeCooldown:  getEnvAsDuration("NUDGE_COOLDOWN", 14*24*time.Hour),
			NudgeSessions:  getEnvAsInt("NUDGE_SESSIONS", 3),
			NudgeEditCount: getEnvAsInt("NUDGE_EDITS", 10),
		},
	}
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
