// Package config provides configuration management for the engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Logging LoggingConfig
	Engine  EngineConfig
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// EngineConfig holds the executor's default scheduling and retry
// parameters, applied when a node's own Parameters omit them.
type EngineConfig struct {
	// DefaultMaxRetries is the retryOnFail budget used when a node omits
	// "maxRetries".
	DefaultMaxRetries int
	// DefaultRetryDelay is the retryOnFail backoff used when a node omits
	// "retryDelay".
	DefaultRetryDelay time.Duration
	// WorkflowTimeout bounds a single Execute call; zero means no timeout.
	WorkflowTimeout time.Duration
	// MaxSubWorkflowDepth bounds executeSubWorkflow re-entrancy to guard
	// against a workflow that (directly or indirectly) invokes itself.
	MaxSubWorkflowDepth int
}

// Load loads the configuration from environment variables.
func Load() (*Config, error) {
	godotenv.Load()
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  getEnv("FLOWENGINE_LOG_LEVEL", "info"),
			Format: getEnv("FLOWENGINE_LOG_FORMAT", "json"),
		},
		Engine: EngineConfig{
			DefaultMaxRetries:   getEnvAsInt("FLOWENGINE_DEFAULT_MAX_RETRIES", 0),
			DefaultRetryDelay:   getEnvAsDuration("FLOWENGINE_DEFAULT_RETRY_DELAY", time.Second),
			WorkflowTimeout:     getEnvAsDuration("FLOWENGINE_WORKFLOW_TIMEOUT", 5*time.Minute),
			MaxSubWorkflowDepth: getEnvAsInt("FLOWENGINE_MAX_SUBWORKFLOW_DEPTH", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Engine.DefaultMaxRetries < 0 {
		return fmt.Errorf("engine default max retries cannot be negative")
	}

	if c.Engine.MaxSubWorkflowDepth < 1 {
		return fmt.Errorf("engine max sub-workflow depth must be at least 1")
	}

	return nil
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
