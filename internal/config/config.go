// Package config provides static environment configuration and a
// file-watched dynamic configuration for runtime-tunable limits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Logging
	LogLevel string

	// Authentication
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	// Persistence
	PersistenceDriver string // "memory" or "dynamodb"
	AWSRegion         string
	DynamoDBTable     string

	// Integration events
	EventBusName   string
	PublishEvents  bool

	// Feature flags
	EnableCORS bool

	// Dynamic configuration file (optional)
	DynamicConfigPath string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "boardsync-backend"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),

		PersistenceDriver: getEnv("PERSISTENCE_DRIVER", "memory"),
		AWSRegion:         getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable:     getEnv("TABLE_NAME", "boardsync"),

		EventBusName:  getEnv("EVENT_BUS_NAME", ""),
		PublishEvents: getEnvBool("PUBLISH_EVENTS", false),

		EnableCORS: getEnvBool("ENABLE_CORS", true),

		DynamicConfigPath: getEnv("DYNAMIC_CONFIG_PATH", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.PersistenceDriver {
	case "memory", "dynamodb":
	default:
		return fmt.Errorf("unsupported persistence driver: %s", c.PersistenceDriver)
	}
	if c.PersistenceDriver == "dynamodb" && c.DynamoDBTable == "" {
		return fmt.Errorf("TABLE_NAME is required for the dynamodb driver")
	}
	if c.PublishEvents && c.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when PUBLISH_EVENTS is enabled")
	}
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	}
	return nil
}

// IsDevelopment returns true when running outside production
func (c *Config) IsDevelopment() bool {
	return c.Environment != "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
