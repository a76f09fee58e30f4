package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/appointment-webhook-bridge/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/appointment-webhook-bridge/internal/http/middleware"
	"github.com/wolfman30/appointment-webhook-bridge/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Webhooks           *handlers.WebhookHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// RateLimiter guards the tool-call endpoints when set.
	RateLimiter       httpmiddleware.Limiter
	RateLimitFailOpen bool
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", cfg.Webhooks.Health)
	r.Get("/", cfg.Webhooks.Hello)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Voice agent tool calls
	r.Group(func(tools chi.Router) {
		if cfg.RateLimiter != nil {
			tools.Use(httpmiddleware.RateLimit(cfg.RateLimiter, cfg.Logger, cfg.RateLimitFailOpen))
		}
		tools.Post("/", cfg.Webhooks.Root)
		tools.Post("/fetchslots", cfg.Webhooks.FetchSlots)
		tools.Post("/bookslot", cfg.Webhooks.BookSlot)
		tools.Post("/webhook", cfg.Webhooks.LogWebhook)
	})

	return r
}
