package bootstrap

import (
	"fmt"

	"github.com/wolfman30/appointment-webhook-bridge/internal/booking"
	"github.com/wolfman30/appointment-webhook-bridge/internal/calendar"
	appconfig "github.com/wolfman30/appointment-webhook-bridge/internal/config"
	"github.com/wolfman30/appointment-webhook-bridge/internal/conversation"
	"github.com/wolfman30/appointment-webhook-bridge/internal/observability/metrics"
	"github.com/wolfman30/appointment-webhook-bridge/internal/schedule"
	"github.com/wolfman30/appointment-webhook-bridge/pkg/logging"
)

// BookingStack is the wired slot pipeline behind the webhook handlers.
type BookingStack struct {
	Zone         *schedule.Zone
	Calendar     *calendar.Client
	Orchestrator *schedule.Orchestrator
	Extractor    *conversation.SlotExtractor
	Service      *booking.Service
}

// BuildBookingStack wires the calendar client, availability orchestrator and
// booking service. llm may be nil, in which case free-text slots cannot be
// resolved and are answered with the extraction failure message.
func BuildBookingStack(cfg *appconfig.Config, llm conversation.LLMClient, logger *logging.Logger, m *metrics.WebhookMetrics) (*BookingStack, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	zone, err := schedule.LoadZone(cfg.GHLCalendarTZ)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	client, err := calendar.NewClient(calendar.Options{
		BaseURL:    cfg.GHLBaseURL,
		CalendarID: cfg.GHLCalendarID,
		Token:      cfg.GHLBearerToken,
		Timezone:   cfg.GHLCalendarTZ,
		APIVersion: cfg.GHLAPIVersion,
		Timeout:    cfg.ProviderTimeout,
		Logger:     logger,
		Metrics:    m,
	})
	if err != nil {
		return nil, err
	}

	orchestrator := schedule.NewOrchestrator(schedule.OrchestratorConfig{
		Zone:            zone,
		Provider:        client,
		LeadTime:        cfg.SlotLeadTime,
		MaxWidenRetries: cfg.SlotMaxWidenRetries,
		Logger:          logger,
		Metrics:         m,
	})

	stack := &BookingStack{Zone: zone, Calendar: client, Orchestrator: orchestrator}
	svcCfg := booking.Config{
		Zone:   zone,
		Booker: client,
		Slots:  orchestrator,
		Logger: logger,
	}
	if llm != nil {
		stack.Extractor = conversation.NewSlotExtractor(conversation.SlotExtractorConfig{
			LLM:     llm,
			Zone:    zone,
			Timeout: cfg.LLMTimeout,
			Logger:  logger,
			Metrics: m,
		})
		svcCfg.Extractor = stack.Extractor
	} else {
		logger.Warn("no llm configured; free-text slot requests will not be resolved")
	}
	stack.Service = booking.NewService(svcCfg)
	return stack, nil
}
