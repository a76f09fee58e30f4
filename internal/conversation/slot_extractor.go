package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/appointment-webhook-bridge/internal/observability/metrics"
	"github.com/wolfman30/appointment-webhook-bridge/internal/schedule"
	"github.com/wolfman30/appointment-webhook-bridge/pkg/logging"
)

const (
	defaultExtractionTimeout = 20 * time.Second
	extractionMaxTokens      = 64
)

var extractionTracer = otel.Tracer("slotbridge.internal.conversation.extraction")

var isoCandidate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?`)

// Reasons reported by ExtractionFailure.
const (
	ReasonEmptyInput  = "empty input"
	ReasonProvider    = "language model request failed"
	ReasonEmptyAnswer = "language model returned no answer"
	ReasonUnparseable = "answer is not an ISO-8601 datetime"
)

// ExtractionFailure means no usable datetime could be derived from the
// caller's free text.
type ExtractionFailure struct {
	Input  string
	Answer string
	Reason string
	Err    error
}

func (e *ExtractionFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conversation: extract slot from %q: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("conversation: extract slot from %q: %s", e.Input, e.Reason)
}

func (e *ExtractionFailure) Unwrap() error { return e.Err }

// SlotExtractorConfig wires a SlotExtractor.
type SlotExtractorConfig struct {
	LLM     LLMClient
	Zone    *schedule.Zone
	Model   string
	Timeout time.Duration
	Logger  *logging.Logger
	Metrics *metrics.WebhookMetrics
}

// SlotExtractor turns a free-text booking preference into a slot timestamp.
type SlotExtractor struct {
	llm     LLMClient
	zone    *schedule.Zone
	model   string
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.WebhookMetrics
}

func NewSlotExtractor(cfg SlotExtractorConfig) *SlotExtractor {
	if cfg.LLM == nil {
		panic("conversation: slot extractor requires an LLM client")
	}
	if cfg.Zone == nil {
		panic("conversation: slot extractor requires a zone")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultExtractionTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &SlotExtractor{
		llm:     cfg.LLM,
		zone:    cfg.Zone,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Extract asks the model for the datetime described by text, relative to now,
// and returns it as YYYY-MM-DDTHH:MM:SS±HH:MM. Weekend answers are moved to
// the following Monday at the same clock time.
func (e *SlotExtractor) Extract(ctx context.Context, now time.Time, text string) (string, error) {
	ctx, span := extractionTracer.Start(ctx, "extraction.slot")
	defer span.End()

	input := strings.TrimSpace(text)
	if input == "" {
		e.metrics.ObserveExtraction("empty")
		return "", &ExtractionFailure{Input: text, Reason: ReasonEmptyInput}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	stamp := e.zone.Stamp(now)
	prompt := RenderSlotPrompt(stamp, input)
	e.logger.Info("extracting slot from caller text", "now", stamp, "input", input)

	resp, err := e.llm.Complete(ctx, LLMRequest{
		Model:       e.model,
		System:      []string{SlotExtractionSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt}},
		MaxTokens:   extractionMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "language model request failed")
		e.metrics.ObserveExtraction("provider_error")
		e.logger.Error("slot extraction request failed", "error", err)
		return "", &ExtractionFailure{Input: input, Reason: ReasonProvider, Err: err}
	}

	answer := cleanModelAnswer(resp.Text)
	if answer == "" {
		e.metrics.ObserveExtraction("empty_answer")
		return "", &ExtractionFailure{Input: input, Answer: resp.Text, Reason: ReasonEmptyAnswer}
	}

	at, err := e.parseAnswer(answer)
	if err != nil {
		span.RecordError(err)
		e.metrics.ObserveExtraction("unparseable")
		e.logger.Warn("model answer is not a datetime", "answer", resp.Text)
		return "", &ExtractionFailure{Input: input, Answer: resp.Text, Reason: ReasonUnparseable, Err: err}
	}

	rolled := RollWeekend(at)
	if !rolled.Equal(at) {
		e.logger.Info("moved weekend slot to monday", "from", schedule.FormatSlot(at), "to", schedule.FormatSlot(rolled))
	}
	slot := schedule.FormatSlot(rolled)
	span.SetAttributes(attribute.String("extraction.slot", slot))
	e.metrics.ObserveExtraction("ok")
	return slot, nil
}

func (e *SlotExtractor) parseAnswer(answer string) (time.Time, error) {
	at, err := e.zone.ParseISO8601(answer)
	if err == nil {
		return at, nil
	}
	// Models sometimes wrap the timestamp in prose despite the instructions.
	if match := isoCandidate.FindString(answer); match != "" {
		if at, matchErr := e.zone.ParseISO8601(match); matchErr == nil {
			return at, nil
		}
	}
	return time.Time{}, err
}

// RollWeekend moves Saturday forward two days and Sunday forward one,
// keeping the wall-clock time.
func RollWeekend(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, 2)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	default:
		return t
	}
}

func cleanModelAnswer(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.Trim(strings.TrimSpace(s), "`\"' ")
	return strings.TrimSpace(s)
}

// IsExtractionFailure reports whether err is an *ExtractionFailure.
func IsExtractionFailure(err error) bool {
	var failure *ExtractionFailure
	return errors.As(err, &failure)
}
