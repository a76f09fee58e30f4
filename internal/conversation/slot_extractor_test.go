package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/appointment-webhook-bridge/internal/observability/metrics"
	"github.com/wolfman30/appointment-webhook-bridge/internal/schedule"
)

type stubLLM struct {
	mu       sync.Mutex
	text     string
	err      error
	requests []LLMRequest
}

func (s *stubLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return LLMResponse{Text: s.text}, nil
}

func easternZone(t *testing.T) *schedule.Zone {
	t.Helper()
	zone, err := schedule.LoadZone("America/New_York")
	require.NoError(t, err)
	return zone
}

func newTestExtractor(t *testing.T, llm LLMClient) *SlotExtractor {
	t.Helper()
	return NewSlotExtractor(SlotExtractorConfig{
		LLM:     llm,
		Zone:    easternZone(t),
		Model:   "gpt-4o",
		Timeout: time.Second,
		Metrics: metrics.NewWebhookMetrics(prometheus.NewRegistry()),
	})
}

func TestSlotExtractor_BuildsPrompt(t *testing.T) {
	llm := &stubLLM{text: "2024-04-08T10:00:00-04:00"}
	ex := newTestExtractor(t, llm)
	now := time.Date(2024, 4, 5, 14, 0, 0, 0, time.UTC)

	slot, err := ex.Extract(context.Background(), now, "  next monday at 10am ")
	require.NoError(t, err)
	assert.Equal(t, "2024-04-08T10:00:00-04:00", slot)

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, float32(0), req.Temperature)
	assert.Equal(t, []string{SlotExtractionSystemPrompt}, req.System)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, ChatRoleUser, req.Messages[0].Role)
	assert.Equal(t,
		"This is the current date/time: 2024-04-05 10:00:00 EDT\n\nThis is when the user would like to book:\nnext monday at 10am",
		req.Messages[0].Content)
}

func TestSlotExtractor_NormalizesAnswers(t *testing.T) {
	now := time.Date(2024, 4, 3, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{name: "plain", answer: "2024-04-04T14:30:00-04:00", want: "2024-04-04T14:30:00-04:00"},
		{name: "code fence", answer: "```\n2024-04-04T14:30:00-04:00\n```", want: "2024-04-04T14:30:00-04:00"},
		{name: "labelled fence", answer: "```text\n2024-04-04T14:30:00-04:00\n```", want: "2024-04-04T14:30:00-04:00"},
		{name: "quoted", answer: `"2024-04-04T14:30:00-04:00"`, want: "2024-04-04T14:30:00-04:00"},
		{name: "utc answer converted", answer: "2024-04-04T18:30:00Z", want: "2024-04-04T14:30:00-04:00"},
		{name: "naive answer is local", answer: "2024-01-04T09:00:00", want: "2024-01-04T09:00:00-05:00"},
		{name: "wrapped in prose", answer: "Sure! The slot is 2024-04-04T14:30:00-04:00.", want: "2024-04-04T14:30:00-04:00"},
		{name: "saturday rolls two days", answer: "2024-04-06T13:00:00-04:00", want: "2024-04-08T13:00:00-04:00"},
		{name: "sunday rolls one day", answer: "2024-04-07T08:00:00-04:00", want: "2024-04-08T08:00:00-04:00"},
		{name: "roll across DST change", answer: "2024-03-09T16:00:00-05:00", want: "2024-03-11T16:00:00-04:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := newTestExtractor(t, &stubLLM{text: tt.answer})
			slot, err := ex.Extract(context.Background(), now, "whenever")
			require.NoError(t, err)
			assert.Equal(t, tt.want, slot)
		})
	}
}

func TestSlotExtractor_Failures(t *testing.T) {
	now := time.Date(2024, 4, 3, 15, 0, 0, 0, time.UTC)
	boom := errors.New("rate limited")

	tests := []struct {
		name       string
		llm        *stubLLM
		input      string
		wantReason string
		wantCalls  int
	}{
		{name: "empty input", llm: &stubLLM{text: "unused"}, input: "   ", wantReason: ReasonEmptyInput, wantCalls: 0},
		{name: "provider error", llm: &stubLLM{err: boom}, input: "tomorrow", wantReason: ReasonProvider, wantCalls: 1},
		{name: "empty answer", llm: &stubLLM{text: "``` ```"}, input: "tomorrow", wantReason: ReasonEmptyAnswer, wantCalls: 1},
		{name: "refusal", llm: &stubLLM{text: "I could not determine a date."}, input: "whenever", wantReason: ReasonUnparseable, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := newTestExtractor(t, tt.llm)
			_, err := ex.Extract(context.Background(), now, tt.input)

			var failure *ExtractionFailure
			require.True(t, errors.As(err, &failure), "want ExtractionFailure, got %v", err)
			assert.Equal(t, tt.wantReason, failure.Reason)
			assert.True(t, IsExtractionFailure(err))
			assert.Len(t, tt.llm.requests, tt.wantCalls)
		})
	}

	ex := newTestExtractor(t, &stubLLM{err: boom})
	_, err := ex.Extract(context.Background(), now, "tomorrow")
	assert.ErrorIs(t, err, boom)
	assert.True(t, strings.Contains(err.Error(), "tomorrow"))
}

func TestSlotExtractor_AppliesTimeout(t *testing.T) {
	llm := &deadlineLLM{}
	ex := NewSlotExtractor(SlotExtractorConfig{LLM: llm, Zone: easternZone(t), Timeout: 20 * time.Millisecond})

	_, err := ex.Extract(context.Background(), time.Now(), "tomorrow morning")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type deadlineLLM struct{}

func (deadlineLLM) Complete(ctx context.Context, _ LLMRequest) (LLMResponse, error) {
	<-ctx.Done()
	return LLMResponse{}, ctx.Err()
}

func TestRollWeekend(t *testing.T) {
	loc := easternZone(t).Location()
	friday := time.Date(2024, 4, 5, 9, 0, 0, 0, loc)
	assert.True(t, RollWeekend(friday).Equal(friday))
	assert.Equal(t, time.Monday, RollWeekend(friday.AddDate(0, 0, 1)).Weekday())
	assert.Equal(t, time.Monday, RollWeekend(friday.AddDate(0, 0, 2)).Weekday())
	assert.Equal(t, 9, RollWeekend(friday.AddDate(0, 0, 1)).Hour())
}

func TestRenderSlotPrompt(t *testing.T) {
	out := RenderSlotPrompt("2024-04-05 10:00:00 EDT", "friday afternoon")
	assert.Contains(t, out, "This is the current date/time: 2024-04-05 10:00:00 EDT")
	assert.True(t, strings.HasSuffix(out, "friday afternoon"))
	assert.NotContains(t, out, "{{")
}

func TestNewSlotExtractor_RequiresDependencies(t *testing.T) {
	assert.Panics(t, func() { NewSlotExtractor(SlotExtractorConfig{Zone: easternZone(t)}) })
	assert.Panics(t, func() { NewSlotExtractor(SlotExtractorConfig{LLM: &stubLLM{}}) })
}
