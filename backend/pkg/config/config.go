package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Knowledge graph store
	KGPath string

	// Build pipeline
	MaxDrugs      int
	BatchSize     int
	APIPause      time.Duration // delay between upstream calls (politeness contract)
	LabelLimit    int
	MaxCoReported int
	MaxReactions  int

	// Extractor (optional, OpenAI-compatible endpoint)
	ExtractorBaseURL string
	ExtractorAPIKey  string
	ExtractorModel   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		KGPath:           getEnv("KG_DB_PATH", "data/kg/trupharma_kg.db"),
		MaxDrugs:         getEnvInt("KG_MAX_DRUGS", 200),
		BatchSize:        getEnvInt("KG_BATCH_SIZE", 50),
		APIPause:         time.Duration(getEnvInt("KG_API_PAUSE_MS", 200)) * time.Millisecond,
		LabelLimit:       getEnvInt("KG_LABEL_LIMIT", 3),
		MaxCoReported:    getEnvInt("KG_MAX_CO_REPORTED", 50),
		MaxReactions:     getEnvInt("KG_MAX_REACTIONS", 20),
		ExtractorBaseURL: getEnv("EXTRACTOR_BASE_URL", ""),
		ExtractorAPIKey:  getEnv("EXTRACTOR_API_KEY", ""),
		ExtractorModel:   getEnv("EXTRACTOR_MODEL", "gpt-4o-mini"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.KGPath == "" {
		return fmt.Errorf("KG_DB_PATH is required")
	}
	if c.MaxDrugs <= 0 {
		return fmt.Errorf("KG_MAX_DRUGS must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("KG_BATCH_SIZE must be positive")
	}
	// Extractor settings are optional; without them prose extraction
	// falls back to dictionary matching only.
	return nil
}

// ExtractorConfigured returns true if the optional extractor endpoint is set
func (c *Config) ExtractorConfigured() bool {
	return c.ExtractorBaseURL != ""
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
