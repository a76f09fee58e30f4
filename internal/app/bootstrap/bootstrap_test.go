package bootstrap

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/appointment-webhook-bridge/internal/config"
	"github.com/wolfman30/appointment-webhook-bridge/internal/conversation"
	httpmiddleware "github.com/wolfman30/appointment-webhook-bridge/internal/http/middleware"
	"github.com/wolfman30/appointment-webhook-bridge/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.NewWithFormat("error", "json", io.Discard)
}

func baseConfig() *appconfig.Config {
	return &appconfig.Config{
		GHLBaseURL:          "http://calendar.invalid",
		GHLCalendarID:       "cal-1",
		GHLBearerToken:      "token",
		GHLCalendarTZ:       "America/New_York",
		ProviderTimeout:     time.Second,
		SlotLeadTime:        time.Hour,
		SlotMaxWidenRetries: 1,
		LLMProvider:         ProviderOpenAI,
		LLMTimeout:          time.Second,
		RateLimitRPS:        5,
		RateLimitBurst:      20,
		RateLimitWindow:     time.Minute,
	}
}

type nopLLM struct{}

func (nopLLM) Complete(context.Context, conversation.LLMRequest) (conversation.LLMResponse, error) {
	return conversation.LLMResponse{}, errors.New("unused")
}

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, quietLogger(), true))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, quietLogger(), false))
}

func TestBuildRedisClientVerify(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := &appconfig.Config{RedisAddr: mr.Addr()}
	client := BuildRedisClient(context.Background(), cfg, quietLogger(), true)
	require.NotNil(t, client)
	defer client.Close()

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, quietLogger(), true))
}

func TestBuildRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := BuildRateLimiter(ctx, baseConfig(), nil, quietLogger())
	assert.IsType(t, &httpmiddleware.LocalRateLimiter{}, local)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := BuildRedisClient(ctx, &appconfig.Config{RedisAddr: mr.Addr()}, quietLogger(), false)
	defer client.Close()

	shared := BuildRateLimiter(ctx, baseConfig(), client, quietLogger())
	require.IsType(t, &httpmiddleware.RedisRateLimiter{}, shared)
	ok, err := shared.Allow(ctx, "203.0.113.1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisWindowLimit(t *testing.T) {
	assert.Equal(t, 300, RedisWindowLimit(5, 20, time.Minute))
	assert.Equal(t, 20, RedisWindowLimit(0.1, 20, time.Minute))
	assert.Equal(t, 1, RedisWindowLimit(0, 0, time.Minute))
}

func TestBuildLLMProvider(t *testing.T) {
	cfg := baseConfig()

	_, _, err := BuildLLMProvider(context.Background(), ProviderOpenAI, cfg, nil)
	assert.Error(t, err, "openai without a key")

	cfg.OpenAIAPIKey = "sk-test"
	client, closer, err := BuildLLMProvider(context.Background(), "OpenAI", cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, closer)
	assert.IsType(t, &conversation.OpenAILLMClient{}, client)

	_, _, err = BuildLLMProvider(context.Background(), ProviderBedrock, cfg, nil)
	assert.ErrorContains(t, err, "BEDROCK_MODEL_ID")

	cfg.BedrockModelID = "anthropic.claude-3-haiku"
	_, _, err = BuildLLMProvider(context.Background(), ProviderBedrock, cfg, nil)
	assert.ErrorContains(t, err, "factory")

	_, _, err = BuildLLMProvider(context.Background(), "mistral", cfg, nil)
	assert.ErrorContains(t, err, "unknown llm provider")
}

func TestBuildLLMClientFallback(t *testing.T) {
	cfg := baseConfig()
	cfg.OpenAIAPIKey = "sk-test"

	client, closer, err := BuildLLMClient(context.Background(), cfg, quietLogger(), nil)
	require.NoError(t, err)
	defer closer()
	assert.IsType(t, &conversation.OpenAILLMClient{}, client)

	// A fallback that cannot be built leaves the primary alone.
	cfg.LLMFallbackProvider = ProviderBedrock
	client, _, err = BuildLLMClient(context.Background(), cfg, quietLogger(), nil)
	require.NoError(t, err)
	assert.IsType(t, &conversation.OpenAILLMClient{}, client)

	cfg.LLMFallbackProvider = ProviderOpenAI
	client, _, err = BuildLLMClient(context.Background(), cfg, quietLogger(), nil)
	require.NoError(t, err)
	assert.IsType(t, &conversation.OpenAILLMClient{}, client)

	cfg.LLMProvider = ProviderGemini
	_, _, err = BuildLLMClient(context.Background(), cfg, quietLogger(), nil)
	assert.ErrorContains(t, err, "primary llm provider")
}

func TestBuildBookingStack(t *testing.T) {
	stack, err := BuildBookingStack(baseConfig(), nopLLM{}, quietLogger(), nil)
	require.NoError(t, err)
	assert.NotNil(t, stack.Service)
	assert.NotNil(t, stack.Extractor)
	assert.Equal(t, "America/New_York", stack.Calendar.Timezone())
	assert.Equal(t, "America/New_York", stack.Zone.Location().String())

	stack, err = BuildBookingStack(baseConfig(), nil, quietLogger(), nil)
	require.NoError(t, err)
	assert.Nil(t, stack.Extractor)
}

func TestBuildBookingStackErrors(t *testing.T) {
	cfg := baseConfig()
	cfg.GHLBearerToken = ""
	_, err := BuildBookingStack(cfg, nil, quietLogger(), nil)
	var cfgErr *appconfig.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"GHL_BEARER_TOKEN"}, cfgErr.Missing)

	cfg = baseConfig()
	cfg.GHLCalendarTZ = "Mars/Olympus"
	_, err = BuildBookingStack(cfg, nil, quietLogger(), nil)
	assert.Error(t, err)

	_, err = BuildBookingStack(nil, nil, nil, nil)
	assert.Error(t, err)
}
