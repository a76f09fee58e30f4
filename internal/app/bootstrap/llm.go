package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/appointment-webhook-bridge/internal/config"
	"github.com/wolfman30/appointment-webhook-bridge/internal/conversation"
	"github.com/wolfman30/appointment-webhook-bridge/pkg/logging"
)

const (
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
)

// BedrockFactory builds a Bedrock runtime client on demand so AWS config is
// only loaded when a Bedrock provider is selected.
type BedrockFactory func(ctx context.Context) (*bedrockruntime.Client, error)

// BuildLLMProvider constructs a single named provider. The returned closer
// releases provider resources and is never nil.
func BuildLLMProvider(ctx context.Context, name string, cfg *appconfig.Config, bedrock BedrockFactory) (conversation.LLMClient, func(), error) {
	noop := func() {}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderOpenAI:
		client, err := conversation.NewOpenAILLMClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, noop, err
		}
		return client, noop, nil
	case ProviderGemini:
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		return client, func() { _ = client.Close() }, nil
	case ProviderBedrock:
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, noop, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		if bedrock == nil {
			return nil, noop, fmt.Errorf("bootstrap: no bedrock client factory configured")
		}
		api, err := bedrock(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: bedrock client: %w", err)
		}
		return conversation.NewBedrockLLMClient(api, cfg.BedrockModelID), noop, nil
	default:
		return nil, noop, fmt.Errorf("bootstrap: unknown llm provider %q", name)
	}
}

// BuildLLMClient wires LLM_PROVIDER, wrapped with LLM_FALLBACK_PROVIDER when
// one is configured. A fallback that cannot be built is logged and skipped.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, bedrock BedrockFactory) (conversation.LLMClient, func(), error) {
	if cfg == nil {
		return nil, func() {}, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	primary, closePrimary, err := BuildLLMProvider(ctx, cfg.LLMProvider, cfg, bedrock)
	if err != nil {
		return nil, closePrimary, fmt.Errorf("bootstrap: primary llm provider: %w", err)
	}

	fallbackName := strings.TrimSpace(cfg.LLMFallbackProvider)
	if fallbackName == "" || strings.EqualFold(fallbackName, cfg.LLMProvider) {
		logger.Info("llm extraction configured", "provider", cfg.LLMProvider)
		return primary, closePrimary, nil
	}

	fallback, closeFallback, err := BuildLLMProvider(ctx, fallbackName, cfg, bedrock)
	if err != nil {
		logger.Warn("llm fallback provider unavailable", "provider", fallbackName, "error", err)
		return primary, closePrimary, nil
	}
	logger.Info("llm extraction configured", "provider", cfg.LLMProvider, "fallback", fallbackName)
	return conversation.NewFallbackLLMClient(primary, fallback, logger), func() {
		closePrimary()
		closeFallback()
	}, nil
}
