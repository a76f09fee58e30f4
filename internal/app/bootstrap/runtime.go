package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/appointment-webhook-bridge/internal/config"
	httpmiddleware "github.com/wolfman30/appointment-webhook-bridge/internal/http/middleware"
	"github.com/wolfman30/appointment-webhook-bridge/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildRateLimiter picks the shared Redis limiter when a client is given and
// the in-process token bucket otherwise. The local limiter's idle sweeper
// runs until ctx is done.
func BuildRateLimiter(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) httpmiddleware.Limiter {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient != nil {
		limit := RedisWindowLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitWindow)
		logger.Info("rate limiting via redis", "limit", limit, "window", cfg.RateLimitWindow)
		return httpmiddleware.NewRedisRateLimiter(redisClient, limit, cfg.RateLimitWindow, "")
	}

	limiter := httpmiddleware.NewLocalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	if ctx != nil {
		go limiter.RunSweeper(ctx, time.Minute, 10*time.Minute)
	}
	logger.Info("rate limiting in process", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	return limiter
}

// RedisWindowLimit converts a per-second rate into a fixed-window budget,
// never below the burst size.
func RedisWindowLimit(rps float64, burst int, window time.Duration) int {
	limit := int(rps * window.Seconds())
	if limit < burst {
		limit = burst
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}
