package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/appointment-webhook-bridge/internal/booking"
	"github.com/wolfman30/appointment-webhook-bridge/internal/observability/metrics"
	"github.com/wolfman30/appointment-webhook-bridge/pkg/logging"
)

const (
	endpointFetch = "fetchslots"
	endpointBook  = "bookslot"
	endpointRoot  = "root"
)

// BookingService is the slice of booking.Service the webhooks use.
type BookingService interface {
	Offer(ctx context.Context) (*booking.Outcome, error)
	Book(ctx context.Context, req booking.BookRequest) (*booking.Outcome, error)
}

// WebhookHandler serves the voice agent's slot tools.
type WebhookHandler struct {
	service BookingService
	logger  *logging.Logger
	metrics *metrics.WebhookMetrics
}

func NewWebhookHandler(service BookingService, logger *logging.Logger, m *metrics.WebhookMetrics) *WebhookHandler {
	if service == nil {
		panic("handlers: booking service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{service: service, logger: logger, metrics: m}
}

// FetchSlots answers POST /fetchslots with the slots to offer.
func (h *WebhookHandler) FetchSlots(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, endpointFetch, func(ctx context.Context, _ *ToolCall, _ *logging.Logger) *booking.Outcome {
		return h.offer(ctx)
	})
}

// BookSlot answers POST /bookslot by booking the caller's slot.
func (h *WebhookHandler) BookSlot(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, endpointBook, h.book)
}

// Root answers POST /: it books when a slot argument is present and offers
// slots otherwise.
func (h *WebhookHandler) Root(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, endpointRoot, func(ctx context.Context, call *ToolCall, logger *logging.Logger) *booking.Outcome {
		if call.Function.Arguments.HasSlot() {
			return h.book(ctx, call, logger)
		}
		return h.offer(ctx)
	})
}

// Hello answers GET /.
func (h *WebhookHandler) Hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "Hello World")
}

// Health answers GET /health.
func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LogWebhook answers POST /webhook. Status events from the agent platform
// are logged and acknowledged.
func (h *WebhookHandler) LogWebhook(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	h.logger.Info("agent event received",
		"request_id", chimw.GetReqID(r.Context()),
		"bytes", len(body),
	)
	w.WriteHeader(http.StatusOK)
}

type toolFunc func(ctx context.Context, call *ToolCall, logger *logging.Logger) *booking.Outcome

func (h *WebhookHandler) serve(w http.ResponseWriter, r *http.Request, endpoint string, fn toolFunc) {
	logger := h.logger.With("endpoint", endpoint, "request_id", chimw.GetReqID(r.Context()))
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("webhook panic", "panic", rec)
			h.metrics.ObserveToolCall(endpoint, "error")
			jsonError(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}()

	call, err := decodeToolCall(r)
	if err != nil {
		var reqErr *RequestError
		if !errors.As(err, &reqErr) {
			reqErr = &RequestError{Status: http.StatusBadRequest, Message: err.Error()}
		}
		logger.Warn("rejected webhook", "status", reqErr.Status, "error", reqErr.Message)
		h.metrics.ObserveToolCall(endpoint, "bad_request")
		jsonError(w, reqErr.Message, reqErr.Status)
		return
	}

	logger = logger.With("tool_call_id", call.ID, "tool", call.Function.Name)
	outcome := fn(r.Context(), call, logger)
	if outcome == nil {
		logger.Error("no outcome for tool call")
		h.metrics.ObserveToolCall(endpoint, "error")
		jsonError(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	logger.Info("tool call answered", "outcome", outcome.Kind, "slots", len(outcome.AvailableSlots))
	h.metrics.ObserveToolCall(endpoint, string(outcome.Kind))

	writeJSON(w, http.StatusOK, ToolCallResponse{
		Results: []ToolCallResult{{ToolCallID: call.ID, Result: outcome.Result()}},
	})
}

func (h *WebhookHandler) offer(ctx context.Context) *booking.Outcome {
	outcome, err := h.service.Offer(ctx)
	if err != nil {
		h.logger.Error("slot lookup failed", "error", err)
	}
	return outcome
}

func (h *WebhookHandler) book(ctx context.Context, call *ToolCall, logger *logging.Logger) *booking.Outcome {
	args := call.Function.Arguments
	logger.Info("booking requested",
		"user_selected_slot", args.UserSelectedSlot,
		"user_suggested_slot", args.UserSuggestedSlot,
	)
	outcome, err := h.service.Book(ctx, booking.BookRequest{
		SelectedSlot:  args.UserSelectedSlot,
		SuggestedSlot: args.UserSuggestedSlot,
		FirstName:     args.FirstName,
		LastName:      args.LastName,
		Phone:         args.MobileNumber,
		PhoneToText:   args.PhoneToText,
	})
	if err != nil {
		logger.Error("booking lookup failed", "error", err)
	}
	return outcome
}
