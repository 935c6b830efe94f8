// Package config loads the backbone's environment-variable configuration,
// following the teacher's getEnv + godotenv idiom (cmd/tarsy/main.go).
package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds every environment-variable setting named in spec.md §6,
// plus the ambient knobs (http_port, log_format) a deployable service
// needs beyond what the spec enumerates.
type Config struct {
	DatabaseURL string
	RedisURL    string // reserved for scale-out pub/sub; unused by the single-process registry

	Environment string
	LogLevel    string
	LogFormat   string
	HTTPPort    string

	OpenRouterAPIKey string
	LLMPrimaryModel  string
	LLMFallbackModel string
	LLMBaseURL       string

	PIIRedactionMode string

	TwilioAccountSID      string
	TwilioAuthToken       string
	TwilioPhoneNumber     string
	TwilioStreamWSBaseURL string
}

// getEnv returns the environment variable's value, or defaultValue if unset.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Load reads an optional .env file at envPath (a missing file is not an
// error — just a warning, matching cmd/tarsy/main.go) and returns a Config
// populated from the environment.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Warning: could not load %s: %v", envPath, err)
			log.Printf("Continuing with existing environment variables...")
		} else {
			log.Printf("Loaded environment from %s", envPath)
		}
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("database_url"),
		RedisURL:    os.Getenv("redis_url"),

		Environment: getEnv("environment", "development"),
		LogLevel:    getEnv("log_level", "info"),
		LogFormat:   getEnv("log_format", "json"),
		HTTPPort:    getEnv("http_port", "8080"),

		OpenRouterAPIKey: os.Getenv("openrouter_api_key"),
		LLMPrimaryModel:  getEnv("llm_primary_model", "openai/gpt-4o-mini"),
		LLMFallbackModel: os.Getenv("llm_fallback_model"),
		LLMBaseURL:       os.Getenv("llm_base_url"),

		PIIRedactionMode: getEnv("pii_redaction_mode", "basic"),

		TwilioAccountSID:      os.Getenv("twilio_account_sid"),
		TwilioAuthToken:       os.Getenv("twilio_auth_token"),
		TwilioPhoneNumber:     os.Getenv("twilio_phone_number"),
		TwilioStreamWSBaseURL: os.Getenv("twilio_stream_ws_base_url"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and enumerated values.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	switch c.PIIRedactionMode {
	case "off", "basic":
	default:
		return fmt.Errorf("pii_redaction_mode must be 'off' or 'basic', got %q", c.PIIRedactionMode)
	}
	return nil
}
