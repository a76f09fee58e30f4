package schedule

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/appointment-webhook-bridge/internal/observability/metrics"
	"github.com/wolfman30/appointment-webhook-bridge/pkg/logging"
)

var availabilityTracer = otel.Tracer("slotbridge.internal.schedule")

// SlotProvider lists raw availability for an epoch-millisecond range.
type SlotProvider interface {
	FreeSlots(ctx context.Context, startMillis, endMillis int64) (Availability, error)
}

// Result is the outcome of one availability lookup.
type Result struct {
	Slots    []string
	Picked   []PickedSlot
	Window   Window
	Attempts int
}

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Zone     *Zone
	Provider SlotProvider
	LeadTime time.Duration
	// MaxWidenRetries bounds how many times a short result re-queries with a
	// window one day wider. Negative values disable widening.
	MaxWidenRetries int
	Logger          *logging.Logger
	Metrics         *metrics.WebhookMetrics
}

// Orchestrator computes the window, queries the provider and reduces the result.
type Orchestrator struct {
	zone       *Zone
	provider   SlotProvider
	reducer    *Reducer
	maxRetries int
	logger     *logging.Logger
	metrics    *metrics.WebhookMetrics
}

// NewOrchestrator builds an Orchestrator from cfg.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Zone == nil {
		panic("schedule: orchestrator requires a zone")
	}
	if cfg.Provider == nil {
		panic("schedule: orchestrator requires a slot provider")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	retries := cfg.MaxWidenRetries
	if retries < 0 {
		retries = 0
	}
	return &Orchestrator{
		zone:       cfg.Zone,
		provider:   cfg.Provider,
		reducer:    NewReducer(cfg.Zone, cfg.LeadTime, cfg.Logger),
		maxRetries: retries,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Zone returns the scheduling zone.
func (o *Orchestrator) Zone() *Zone { return o.zone }

// FetchAndReduce returns the slot strings to offer for now. expandDays below 1
// is treated as 1.
func (o *Orchestrator) FetchAndReduce(ctx context.Context, now time.Time, expandDays int) ([]string, error) {
	res, err := o.Lookup(ctx, now, expandDays)
	if err != nil {
		return nil, err
	}
	return res.Slots, nil
}

// Lookup runs the compute/query/reduce pipeline, widening the window by one
// day while fewer than MaxPickedSlots slots were found and retries remain.
// Provider errors end the lookup immediately.
func (o *Orchestrator) Lookup(ctx context.Context, now time.Time, expandDays int) (*Result, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.lookup")
	defer span.End()

	if expandDays < 1 {
		expandDays = 1
	}
	now = o.zone.In(now)

	var res *Result
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		days := expandDays + attempt
		window := ComputeWindow(now, days)
		logger := o.logger.With(
			"window_start", FormatWithOffset(window.Start),
			"window_end", FormatWithOffset(window.End),
			"expand_days", days,
			"attempt", attempt+1,
		)

		picked, err := o.query(ctx, window, logger)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "availability lookup failed")
			logger.Error("availability lookup failed", "error", err)
			return nil, err
		}

		res = &Result{
			Slots:    SlotStrings(picked),
			Picked:   picked,
			Window:   window,
			Attempts: attempt + 1,
		}
		logger.Info("availability reduced", "picked", len(picked))
		if len(picked) >= MaxPickedSlots {
			break
		}
		if attempt < o.maxRetries {
			logger.Info("too few slots, widening window")
			o.metrics.ObserveWindowWidened()
		}
	}

	span.SetAttributes(
		attribute.Int("availability.attempts", res.Attempts),
		attribute.Int("availability.slots", len(res.Slots)),
	)
	o.metrics.ObserveSlotsOffered(len(res.Slots))
	return res, nil
}

func (o *Orchestrator) query(ctx context.Context, window Window, logger *logging.Logger) ([]PickedSlot, error) {
	startStr := FormatWithOffset(window.Start)
	endStr := FormatWithOffset(window.End)

	start, err := o.zone.ParseISO8601(startStr)
	if err != nil {
		return nil, err
	}
	end, err := o.zone.ParseISO8601(endStr)
	if err != nil {
		return nil, err
	}

	avail, err := o.provider.FreeSlots(ctx, EpochMillis(start), EpochMillis(end))
	if err != nil {
		return nil, err
	}
	logger.Debug("provider availability received", "dates", len(avail), "slots", avail.SlotCount())

	return o.reducer.Reduce(avail, startStr)
}
