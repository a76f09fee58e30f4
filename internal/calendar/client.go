package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/appointment-webhook-bridge/internal/config"
	"github.com/wolfman30/appointment-webhook-bridge/internal/observability/metrics"
	"github.com/wolfman30/appointment-webhook-bridge/internal/schedule"
	"github.com/wolfman30/appointment-webhook-bridge/pkg/logging"
)

const (
	defaultBaseURL    = "https://rest.gohighlevel.com/v1"
	defaultTimeout    = 15 * time.Second
	defaultAPIVersion = "2021-04-15"
	defaultTimezone   = "America/New_York"

	opFreeSlots = "free_slots"
	opBook      = "book_appointment"

	maxLoggedBody = 300
)

var calendarTracer = otel.Tracer("slotbridge.internal.calendar")

// Options configures a Client.
type Options struct {
	BaseURL    string
	CalendarID string
	Token      string
	Timezone   string
	APIVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.WebhookMetrics
}

// Client wraps the calendar provider's slot-listing and booking endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	calendarID string
	token      string
	timezone   string
	apiVersion string
	logger     *logging.Logger
	metrics    *metrics.WebhookMetrics
}

// NewClient constructs a calendar client. The calendar id and bearer token
// are required.
func NewClient(opts Options) (*Client, error) {
	var missing []string
	if strings.TrimSpace(opts.CalendarID) == "" {
		missing = append(missing, "GHL_CALENDAR_ID")
	}
	if strings.TrimSpace(opts.Token) == "" {
		missing = append(missing, "GHL_BEARER_TOKEN")
	}
	if len(missing) > 0 {
		return nil, &config.ConfigurationError{Missing: missing}
	}

	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	tz := strings.TrimSpace(opts.Timezone)
	if tz == "" {
		tz = defaultTimezone
	}
	version := strings.TrimSpace(opts.APIVersion)
	if version == "" {
		version = defaultAPIVersion
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		calendarID: strings.TrimSpace(opts.CalendarID),
		token:      strings.TrimSpace(opts.Token),
		timezone:   tz,
		apiVersion: version,
		logger:     logger,
		metrics:    opts.Metrics,
	}, nil
}

// Timezone returns the IANA zone sent with every request.
func (c *Client) Timezone() string { return c.timezone }

// FreeSlots lists free slots between two epoch-millisecond bounds. Only
// date-keyed entries of the response are kept.
func (c *Client) FreeSlots(ctx context.Context, startMillis, endMillis int64) (schedule.Availability, error) {
	ctx, span := calendarTracer.Start(ctx, "calendar.free_slots")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("calendar.start_ms", startMillis),
		attribute.Int64("calendar.end_ms", endMillis),
	)

	q := url.Values{}
	q.Set("calendarId", c.calendarID)
	q.Set("startDate", strconv.FormatInt(startMillis, 10))
	q.Set("endDate", strconv.FormatInt(endMillis, 10))
	q.Set("timezone", c.timezone)

	status, body, err := c.do(ctx, opFreeSlots, http.MethodGet, "/appointments/slots?"+q.Encode(), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "free slots request failed")
		return nil, err
	}
	if status != http.StatusOK {
		perr := &ProviderError{
			Operation:  opFreeSlots,
			StatusCode: status,
			Body:       truncate(string(body)),
			Message:    slotsErrorMessage(status, body),
		}
		span.RecordError(perr)
		span.SetStatus(codes.Error, "free slots rejected")
		return nil, perr
	}

	avail, err := decodeAvailability(body)
	if err != nil {
		span.RecordError(err)
		return nil, &ProviderError{Operation: opFreeSlots, StatusCode: status, Body: truncate(string(body)), Message: "decode response", Err: err}
	}
	span.SetAttributes(attribute.Int("calendar.dates", len(avail)))
	return avail, nil
}

// BookAppointment books req.SelectedSlot. A 422 answer is returned as a
// *BookingRejection; other failures as *ProviderError.
func (c *Client) BookAppointment(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	ctx, span := calendarTracer.Start(ctx, "calendar.book_appointment")
	defer span.End()

	payload := bookingPayload{
		CalendarID:       c.calendarID,
		SelectedTimezone: c.timezone,
		SelectedSlot:     strings.TrimSpace(req.SelectedSlot),
		Phone:            strings.TrimSpace(req.Phone),
		PhoneToText:      strings.TrimSpace(req.PhoneToText),
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
	}
	if payload.PhoneToText == "" {
		payload.PhoneToText = payload.Phone
	}
	if missing := payload.missing(); len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}
	span.SetAttributes(attribute.String("calendar.selected_slot", payload.SelectedSlot))

	status, body, err := c.do(ctx, opBook, http.MethodPost, "/appointments", payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking request failed")
		return nil, err
	}

	switch {
	case status >= 200 && status < 300:
		result := &BookingResult{SelectedSlot: payload.SelectedSlot, Raw: json.RawMessage(body)}
		if len(bytes.TrimSpace(body)) > 0 {
			_ = json.Unmarshal(body, result)
		}
		c.logger.Info("appointment booked", "slot", payload.SelectedSlot, "appointment_id", result.ID)
		return result, nil
	case status == http.StatusUnprocessableEntity:
		rej := decodeRejection(body)
		span.SetAttributes(attribute.String("calendar.reject_rule", rej.Rule))
		span.SetStatus(codes.Error, "booking rejected")
		c.logger.Warn("booking rejected", "slot", payload.SelectedSlot, "rule", rej.Rule, "message", rej.Message)
		return nil, rej
	default:
		perr := &ProviderError{
			Operation:  opBook,
			StatusCode: status,
			Body:       truncate(string(body)),
			Message:    http.StatusText(status),
		}
		span.RecordError(perr)
		span.SetStatus(codes.Error, "booking failed")
		return nil, perr
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, body interface{}) (int, []byte, error) {
	endpoint := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Version", c.apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveProviderCall(op, "error", time.Since(started))
		c.logger.Error("calendar provider request failed", "operation", op, "error", err)
		return 0, nil, &ProviderError{Operation: op, Message: "Request Error", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.metrics.ObserveProviderCall(op, strconv.Itoa(resp.StatusCode), time.Since(started))
	if err != nil {
		return 0, nil, &ProviderError{Operation: op, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("calendar provider non-2xx response",
			"operation", op,
			"status", resp.StatusCode,
			"body", truncate(string(respBody)),
		)
	}
	return resp.StatusCode, respBody, nil
}

func decodeAvailability(body []byte) (schedule.Availability, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	avail := make(schedule.Availability, len(raw))
	for key, value := range raw {
		if _, err := time.Parse(schedule.DateLayout, key); err != nil {
			continue
		}
		var day daySlots
		if err := json.Unmarshal(value, &day); err != nil {
			continue
		}
		avail[key] = day.Slots
	}
	return avail, nil
}

func decodeRejection(body []byte) *BookingRejection {
	rej := &BookingRejection{Body: truncate(string(body))}
	var parsed slotRejection
	if err := json.Unmarshal(body, &parsed); err != nil {
		return rej
	}
	if parsed.SelectedSlot != nil {
		rej.Rule = parsed.SelectedSlot.Rule
		rej.Message = parsed.SelectedSlot.Message
		return rej
	}
	rej.MissingFields = parsed.missingFields()
	return rej
}

func slotsErrorMessage(status int, body []byte) string {
	switch {
	case status >= 500:
		return "Internal Server Error"
	case status >= 400:
		var msg providerMessage
		if err := json.Unmarshal(body, &msg); err == nil {
			if msg.Msg != "" {
				return msg.Msg
			}
			if msg.Message != "" {
				return msg.Message
			}
		}
		return "Bad Request"
	default:
		return "Unknown Error"
	}
}

func truncate(s string) string {
	if len(s) > maxLoggedBody {
		return s[:maxLoggedBody]
	}
	return s
}
