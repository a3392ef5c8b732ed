package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	FrontendURL      string
	OpenAIKey        string
	AIProvider       string
	AIModel          string
	AIBaseURL        string
	JWKSURL          string
	JWTIssuer        string
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string

	// Overrides is the optional YAML overlay, empty when no file is
	// configured.
	Overrides Overrides
}

// Overrides is the operator-editable YAML overlay: per-tier quota
// adjustments and replacements for the curated classifier title lists.
type Overrides struct {
	TierQuotas        map[string]int `yaml:"tier_quotas"`
	PostCutoffTitles  []string       `yaml:"post_cutoff_titles"`
	LiveServiceTitles []string       `yaml:"live_service_titles"`
}

// Load loads configuration from environment variables, plus the optional
// overrides file named by CONFIG_OVERRIDES_FILE.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		AIProvider:       getEnv("AI_PROVIDER", "openai"),
		AIModel:          getEnv("AI_MODEL", ""),
		AIBaseURL:        getEnv("AI_BASE_URL", ""),
		JWKSURL:          getEnv("JWKS_URL", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", ""),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if path := getEnv("CONFIG_OVERRIDES_FILE", ""); path != "" {
		overrides, err := loadOverrides(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load overrides file: %w", err)
		}
		cfg.Overrides = overrides
	}

	return cfg, nil
}

func loadOverrides(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, err
	}
	var overrides Overrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return Overrides{}, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	for tier, quota := range overrides.TierQuotas {
		if quota <= 0 {
			return Overrides{}, fmt.Errorf("tier_quotas[%s] must be positive, got %d", tier, quota)
		}
	}
	return overrides, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
