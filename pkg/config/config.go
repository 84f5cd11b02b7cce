package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Graph engine
	GraphURI      string
	GraphUser     string
	GraphPassword string

	// LLM
	LLMBaseURL string
	LLMAPIKey  string
	ModelID    string

	// Retrieval tuning
	RetrievalLimit int // max messages returned per entity lookup
	HistoryLimit   int // recent-history window handed to the generator
	HopLimit       int // max relationship hops for traversal queries
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		GraphURI:       getEnv("GRAPH_URI", "bolt://localhost:7687"),
		GraphUser:      getEnv("GRAPH_USER", "neo4j"),
		GraphPassword:  getEnv("GRAPH_PASSWORD", "password"),
		LLMBaseURL:     getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		ModelID:        getEnv("MODEL_ID", "openrouter/anthropic/claude-3.5-sonnet"),
		RetrievalLimit: getEnvInt("RETRIEVAL_LIMIT", 10),
		HistoryLimit:   getEnvInt("HISTORY_LIMIT", 15),
		HopLimit:       getEnvInt("HOP_LIMIT", 2),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.GraphURI == "" {
		return fmt.Errorf("GRAPH_URI is required")
	}
	if c.GraphUser == "" {
		return fmt.Errorf("GRAPH_USER is required")
	}
	if c.GraphPassword == "" {
		return fmt.Errorf("GRAPH_PASSWORD is required")
	}
	if c.LLMBaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL is required")
	}
	if c.ModelID == "" {
		return fmt.Errorf("MODEL_ID is required")
	}
	if c.RetrievalLimit < 1 {
		return fmt.Errorf("RETRIEVAL_LIMIT must be positive")
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("HISTORY_LIMIT must be positive")
	}
	if c.HopLimit < 1 {
		return fmt.Errorf("HOP_LIMIT must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
