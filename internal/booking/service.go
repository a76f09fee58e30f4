package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/appointment-webhook-bridge/internal/calendar"
	"github.com/wolfman30/appointment-webhook-bridge/internal/schedule"
	"github.com/wolfman30/appointment-webhook-bridge/pkg/logging"
)

var bookingTracer = otel.Tracer("slotbridge.internal.booking")

// Booker creates appointments with the calendar provider.
type Booker interface {
	BookAppointment(ctx context.Context, req calendar.BookingRequest) (*calendar.BookingResult, error)
}

// SlotFinder returns the slots to offer for now.
type SlotFinder interface {
	FetchAndReduce(ctx context.Context, now time.Time, expandDays int) ([]string, error)
}

// SlotExtractor resolves free text such as "next tuesday afternoon" to a slot.
type SlotExtractor interface {
	Extract(ctx context.Context, now time.Time, text string) (string, error)
}

// BookRequest is one booking attempt from the voice agent.
type BookRequest struct {
	// SelectedSlot is a slot the caller picked from the offered list.
	SelectedSlot string
	// SuggestedSlot is a free-text preference used when nothing was selected.
	SuggestedSlot string
	FirstName     string
	LastName      string
	Phone         string
	PhoneToText   string
}

// HasSlot reports whether the request names any slot at all.
func (r BookRequest) HasSlot() bool {
	return strings.TrimSpace(r.SelectedSlot) != "" || strings.TrimSpace(r.SuggestedSlot) != ""
}

// Config wires a Service.
type Config struct {
	Zone      *schedule.Zone
	Booker    Booker
	Slots     SlotFinder
	Extractor SlotExtractor
	Logger    *logging.Logger
}

// Service books appointments and maps provider answers to caller messages.
type Service struct {
	zone      *schedule.Zone
	booker    Booker
	slots     SlotFinder
	extractor SlotExtractor
	logger    *logging.Logger
}

func NewService(cfg Config) *Service {
	if cfg.Zone == nil || cfg.Booker == nil || cfg.Slots == nil {
		panic("booking: service requires a zone, booker and slot finder")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Service{
		zone:      cfg.Zone,
		booker:    cfg.Booker,
		slots:     cfg.Slots,
		extractor: cfg.Extractor,
		logger:    cfg.Logger,
	}
}

// Offer looks up the slots to present. The returned outcome is always usable
// as a caller answer; err is set when the provider lookup failed.
func (s *Service) Offer(ctx context.Context) (*Outcome, error) {
	slots, err := s.slots.FetchAndReduce(ctx, s.zone.Now(), 1)
	if err != nil {
		s.logger.Error("availability lookup failed", "error", err)
		return &Outcome{Kind: OutcomeFailed, Message: MsgSlotsUnavailable}, err
	}
	if len(slots) == 0 {
		return &Outcome{Kind: OutcomeNoSlots, Message: MsgNoSlots}, nil
	}
	return &Outcome{Kind: OutcomeSlotsOffered, AvailableSlots: slots}, nil
}

// Book resolves the requested slot and books it. Requests without any slot
// fall back to Offer.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Outcome, error) {
	if !req.HasSlot() {
		return s.Offer(ctx)
	}

	ctx, span := bookingTracer.Start(ctx, "booking.book")
	defer span.End()

	logger := s.logger.With("first_name", req.FirstName, "last_name", req.LastName)
	now := s.zone.Now()

	slot, outcome := s.resolveSlot(ctx, now, req, logger)
	if outcome != nil {
		span.SetAttributes(attribute.String("booking.outcome", string(outcome.Kind)))
		return outcome, nil
	}
	span.SetAttributes(attribute.String("booking.slot", slot))
	logger = logger.With("slot", slot)

	_, err := s.booker.BookAppointment(ctx, calendar.BookingRequest{
		SelectedSlot: slot,
		Phone:        req.Phone,
		PhoneToText:  req.PhoneToText,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	})
	if err == nil {
		at, _ := s.zone.ParseISO8601(slot)
		logger.Info("appointment created")
		span.SetAttributes(attribute.String("booking.outcome", string(OutcomeBooked)))
		return &Outcome{Kind: OutcomeBooked, Slot: slot, Message: FormatConfirmation(at)}, nil
	}

	span.RecordError(err)
	outcome = s.mapBookingError(ctx, now, slot, err, logger)
	span.SetAttributes(attribute.String("booking.outcome", string(outcome.Kind)))
	if outcome.Kind == OutcomeFailed {
		span.SetStatus(codes.Error, "booking failed")
	}
	return outcome, nil
}

func (s *Service) resolveSlot(ctx context.Context, now time.Time, req BookRequest, logger *logging.Logger) (string, *Outcome) {
	if selected := strings.TrimSpace(req.SelectedSlot); selected != "" {
		at, err := s.zone.ParseISO8601(selected)
		if err != nil {
			logger.Warn("selected slot is not a datetime", "selected_slot", selected, "error", err)
			return "", &Outcome{
				Kind:    OutcomeInvalidSlot,
				Slot:    selected,
				Message: fmt.Sprintf("Requested slot %s is not a valid ISO 8601 date and time", selected),
			}
		}
		return schedule.FormatSlot(at), nil
	}

	suggested := strings.TrimSpace(req.SuggestedSlot)
	if s.extractor == nil {
		logger.Warn("free-text slot received but no extractor is configured", "suggested_slot", suggested)
		return "", &Outcome{Kind: OutcomeExtractionFailed, Message: MsgExtractionFailed}
	}
	slot, err := s.extractor.Extract(ctx, now, suggested)
	if err != nil {
		logger.Warn("could not extract slot from caller text", "suggested_slot", suggested, "error", err)
		return "", &Outcome{Kind: OutcomeExtractionFailed, Message: MsgExtractionFailed}
	}
	logger.Info("extracted slot from caller text", "suggested_slot", suggested, "slot", slot)
	return slot, nil
}

func (s *Service) mapBookingError(ctx context.Context, now time.Time, slot string, err error, logger *logging.Logger) *Outcome {
	var validation *calendar.ValidationError
	if errors.As(err, &validation) {
		logger.Warn("booking request incomplete", "missing", validation.Missing)
		return &Outcome{Kind: OutcomeRejected, Slot: slot, Message: validation.Error()}
	}

	var rejection *calendar.BookingRejection
	if errors.As(err, &rejection) {
		switch {
		case rejection.SlotTaken():
			logger.Warn("slot no longer available", "provider_message", rejection.Message)
			outcome := &Outcome{
				Kind:    OutcomeSlotTaken,
				Slot:    slot,
				Message: fmt.Sprintf("Requested slot %s is already booked", slot),
			}
			fresh, lookupErr := s.slots.FetchAndReduce(ctx, now, 1)
			if lookupErr != nil {
				logger.Error("availability lookup after rejection failed", "error", lookupErr)
			}
			outcome.AvailableSlots = fresh
			return outcome
		case rejection.BadFormat():
			logger.Warn("provider rejected slot format", "provider_message", rejection.Message)
			msg := rejection.Message
			if msg == "" {
				msg = MsgUnprocessable
			}
			return &Outcome{Kind: OutcomeInvalidSlot, Slot: slot, Message: msg}
		case len(rejection.MissingFields) > 0:
			logger.Error("provider reported missing fields", "missing", rejection.MissingFields)
			return &Outcome{
				Kind:    OutcomeRejected,
				Slot:    slot,
				Message: "Missing required fields: " + strings.Join(rejection.MissingFields, ", "),
			}
		case rejection.Message != "":
			logger.Warn("provider rejected slot", "rule", rejection.Rule, "provider_message", rejection.Message)
			return &Outcome{Kind: OutcomeRejected, Slot: slot, Message: rejection.Message}
		default:
			logger.Error("unprocessable booking", "body", rejection.Body)
			return &Outcome{Kind: OutcomeRejected, Slot: slot, Message: MsgUnprocessable}
		}
	}

	logger.Error("booking failed", "error", err)
	return &Outcome{Kind: OutcomeFailed, Slot: slot, Message: MsgBookingFailed}
}
