// Package config loads application configuration from environment
// variables, with a .env file as an optional local override.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	SSEIdleTimeout  time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftoppm    string
	Tesseract   string
	Languages   string
	DPI         int
	MaxPages    int
	TessdataDir string
}

// LLMConfig holds language-model configuration
type LLMConfig struct {
	APIKey        string
	LiteModel     string
	StandardModel string
}

// PipelineConfig holds worker pool and dispatch configuration
type PipelineConfig struct {
	Workers       int
	QueueSize     int
	JobTimeout    time.Duration
	StaleAfter    time.Duration
	ForceReimport bool
	OutputDir     string
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Server: ServerConfig{
			Addr:            getEnv("SERVER_ADDR", ":8080"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			SSEIdleTimeout:  getEnvAsDuration("SSE_IDLE_TIMEOUT", 30*time.Minute),
		},
		OCR: OCRConfig{
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			Languages:   getEnv("OCR_LANGUAGES", "tam+eng"),
			DPI:         getEnvAsInt("OCR_DPI", 300),
			MaxPages:    getEnvAsInt("OCR_MAX_PAGES", 0),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
		},
		LLM: LLMConfig{
			APIKey:        getEnv("GEMINI_API_KEY", ""),
			LiteModel:     getEnv("GEMINI_LITE_MODEL", "gemini-2.5-flash-lite"),
			StandardModel: getEnv("GEMINI_STANDARD_MODEL", "gemini-2.5-flash"),
		},
		Pipeline: PipelineConfig{
			Workers:       getEnvAsInt("PIPELINE_WORKERS", 4),
			QueueSize:     getEnvAsInt("PIPELINE_QUEUE_SIZE", 256),
			JobTimeout:    getEnvAsDuration("PIPELINE_JOB_TIMEOUT", 15*time.Minute),
			StaleAfter:    getEnvAsDuration("PIPELINE_STALE_AFTER", 30*time.Minute),
			ForceReimport: getEnvAsBool("PIPELINE_FORCE_REIMPORT", false),
			OutputDir:     getEnv("OUTPUT_DIR", "./output"),
		},
	}
}

// Validate checks that required configuration is present and numeric
// values are sane.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("config error: DATABASE_URL is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("config error: GEMINI_API_KEY is required")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("config error: PIPELINE_WORKERS must be at least 1")
	}
	if c.Pipeline.QueueSize < 1 {
		return fmt.Errorf("config error: PIPELINE_QUEUE_SIZE must be at least 1")
	}
	if c.OCR.DPI < 72 {
		return fmt.Errorf("config error: OCR_DPI must be at least 72")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
