package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration. It is built once at startup and
// passed by pointer to the components that need it; nothing mutates it
// afterwards.
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	// GoHighLevel calendar provider
	GHLBaseURL          string
	GHLCalendarID       string
	GHLBearerToken      string
	GHLCalendarTZ       string
	GHLAPIVersion       string
	ProviderTimeout     time.Duration
	SlotLeadTime        time.Duration
	SlotMaxWidenRetries int

	// Date/time extraction
	LLMProvider         string
	LLMFallbackProvider string
	LLMTimeout          time.Duration
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIBaseURL       string
	GeminiAPIKey        string
	GeminiModel         string
	BedrockModelID      string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Rate limiting
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	RateLimitRPS    float64
	RateLimitBurst  int
	RateLimitWindow time.Duration

	CORSAllowedOrigins []string
}

// ConfigurationError reports required settings that are absent.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing configuration (%s)", strings.Join(e.Missing, " or "))
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		GHLBaseURL:          getEnv("GHL_BASE_URL", "https://rest.gohighlevel.com/v1"),
		GHLCalendarID:       strings.TrimSpace(getEnv("GHL_CALENDAR_ID", "")),
		GHLBearerToken:      strings.TrimSpace(getEnv("GHL_BEARER_TOKEN", "")),
		GHLCalendarTZ:       getEnv("GHL_CALENDAR_TIMEZONE", "America/New_York"),
		GHLAPIVersion:       getEnv("GHL_API_VERSION", "2021-04-15"),
		ProviderTimeout:     getEnvAsDuration("PROVIDER_TIMEOUT", 15*time.Second),
		SlotLeadTime:        getEnvAsDuration("SLOT_LEAD_TIME", time.Hour),
		SlotMaxWidenRetries: getEnvAsInt("SLOT_MAX_WIDEN_RETRIES", 1),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openai"))),
		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 20*time.Second),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		RateLimitRPS:    getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 20),
		RateLimitWindow: getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// Validate checks the settings the calendar provider cannot work without.
func (c *Config) Validate() error {
	var missing []string
	if c.GHLCalendarID == "" {
		missing = append(missing, "GHL_CALENDAR_ID")
	}
	if c.GHLBearerToken == "" {
		missing = append(missing, "GHL_BEARER_TOKEN")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the fixed scheduling time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.GHLCalendarTZ)
	if err != nil {
		return nil, fmt.Errorf("config: load time zone %q: %w", c.GHLCalendarTZ, err)
	}
	return loc, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
