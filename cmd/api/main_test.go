package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appconfig "github.com/wolfman30/appointment-webhook-bridge/internal/config"
	"github.com/wolfman30/appointment-webhook-bridge/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, metrics := setupMetrics()
	if handler == nil || metrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	metrics.ObserveToolCall("fetchslots", "slots_offered")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "slotbridge_webhook_toolcalls_total") {
		t.Fatalf("expected tool call counter to be exported")
	}
}

func TestBuildHandlerServesFetchSlots(t *testing.T) {
	var gotAuth string
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"2030-01-07":{"slots":["2030-01-07T08:00:00-05:00","2030-01-07T09:00:00-05:00"]},"2030-01-08":{"slots":["2030-01-08T08:00:00-05:00"]},"traceId":"t"}`)
	}))
	defer provider.Close()

	cfg := &appconfig.Config{
		GHLBaseURL:          provider.URL,
		GHLCalendarID:       "cal-1",
		GHLBearerToken:      "secret",
		GHLCalendarTZ:       "America/New_York",
		GHLAPIVersion:       "2021-04-15",
		ProviderTimeout:     2 * time.Second,
		SlotLeadTime:        time.Hour,
		SlotMaxWidenRetries: 1,
		LLMProvider:         "openai",
		LLMTimeout:          time.Second,
		RateLimitRPS:        5,
		RateLimitBurst:      20,
		RateLimitWindow:     time.Minute,
	}
	logger := logging.NewWithFormat("error", "json", io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler, cleanup, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("buildHandler: %v", err)
	}
	defer cleanup()

	body := `{"message":{"toolCalls":[{"id":"call-1","function":{"name":"fetchSlots","arguments":{}}}]}}`
	req := httptest.NewRequest(http.MethodPost, "/fetchslots", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("provider saw Authorization %q", gotAuth)
	}
	if !strings.Contains(rr.Body.String(), `"toolCallId":"call-1"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "2030-01-07T08:00:00-05:00") {
		t.Fatalf("expected first day slot in %s", rr.Body.String())
	}
}

func TestBuildHandlerRequiresCredentials(t *testing.T) {
	cfg := &appconfig.Config{GHLCalendarTZ: "America/New_York", LLMProvider: "openai"}
	logger := logging.NewWithFormat("error", "json", io.Discard)
	if _, _, err := buildHandler(context.Background(), cfg, logger); err == nil {
		t.Fatalf("expected configuration error")
	}
}
