package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "GHL_BASE_URL", "GHL_CALENDAR_TIMEZONE", "LLM_PROVIDER", "SLOT_LEAD_TIME", "REDIS_ADDR", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.GHLBaseURL != "https://rest.gohighlevel.com/v1" {
		t.Fatalf("expected default GHL base url, got %s", cfg.GHLBaseURL)
	}
	if cfg.GHLCalendarTZ != "America/New_York" {
		t.Fatalf("expected default time zone, got %s", cfg.GHLCalendarTZ)
	}
	if cfg.GHLAPIVersion != "2021-04-15" {
		t.Fatalf("expected default api version, got %s", cfg.GHLAPIVersion)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected openai provider, got %s", cfg.LLMProvider)
	}
	if cfg.SlotLeadTime != time.Hour {
		t.Fatalf("expected 1h lead time, got %s", cfg.SlotLeadTime)
	}
	if cfg.SlotMaxWidenRetries != 1 {
		t.Fatalf("expected 1 widen retry, got %d", cfg.SlotMaxWidenRetries)
	}
	if cfg.ProviderTimeout != 15*time.Second {
		t.Fatalf("expected 15s provider timeout, got %s", cfg.ProviderTimeout)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("expected redis disabled by default, got %s", cfg.RedisAddr)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GHL_CALENDAR_ID", " cal-123 ")
	t.Setenv("GHL_BEARER_TOKEN", "tok")
	t.Setenv("LLM_PROVIDER", " Gemini ")
	t.Setenv("SLOT_LEAD_TIME", "90m")
	t.Setenv("SLOT_MAX_WIDEN_RETRIES", "2")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.GHLCalendarID != "cal-123" {
		t.Fatalf("expected trimmed calendar id, got %q", cfg.GHLCalendarID)
	}
	if cfg.LLMProvider != "gemini" {
		t.Fatalf("expected normalized provider, got %s", cfg.LLMProvider)
	}
	if cfg.SlotLeadTime != 90*time.Minute {
		t.Fatalf("expected 90m lead time, got %s", cfg.SlotLeadTime)
	}
	if cfg.SlotMaxWidenRetries != 2 {
		t.Fatalf("expected 2 retries, got %d", cfg.SlotMaxWidenRetries)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected 2.5 rps, got %v", cfg.RateLimitRPS)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls enabled")
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("PROVIDER_TIMEOUT", "soon")
	cfg := Load()
	if cfg.ProviderTimeout != 15*time.Second {
		t.Fatalf("expected fallback timeout, got %s", cfg.ProviderTimeout)
	}
}

func TestValidateMissingCredentials(t *testing.T) {
	cfg := &Config{GHLCalendarTZ: "America/New_York"}
	err := cfg.Validate()

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(cfgErr.Missing) != 2 {
		t.Fatalf("expected both keys missing, got %v", cfgErr.Missing)
	}
	if cfgErr.Error() != "missing configuration (GHL_CALENDAR_ID or GHL_BEARER_TOKEN)" {
		t.Fatalf("unexpected message %q", cfgErr.Error())
	}
}

func TestValidateBadTimezone(t *testing.T) {
	cfg := &Config{GHLCalendarID: "cal", GHLBearerToken: "tok", GHLCalendarTZ: "Mars/Olympus"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected time zone error")
	}
}

func TestValidateOK(t *testing.T) {
	cfg := &Config{GHLCalendarID: "cal", GHLBearerToken: "tok", GHLCalendarTZ: "America/New_York"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "America/New_York" {
		t.Fatalf("Location() = %v, %v", loc, err)
	}
}
