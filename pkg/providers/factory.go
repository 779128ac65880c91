package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sipeed/picocast/pkg/config"
	anthropicprovider "github.com/sipeed/picocast/pkg/providers/anthropic"
	"github.com/sipeed/picocast/pkg/providers/openai_sdk"
	"github.com/sipeed/picocast/pkg/ratelimit"
)

// defaultAPIBases covers providers that speak the OpenAI chat completions
// protocol. Anything not listed needs an explicit api_base.
var defaultAPIBases = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"ollama":     "http://localhost:11434/v1",
	"vllm":       "http://localhost:8000/v1",
}

var providerAliases = map[string]string{
	"gpt":    "openai",
	"claude": "anthropic",
}

func normalizeProviderName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "openai"
	}
	if alias, ok := providerAliases[n]; ok {
		return alias
	}
	return n
}

// CreateProvider builds the completion provider described by cfg, wrapped in
// the configured request throttle. It returns the model to use alongside it.
func CreateProvider(cfg config.LLMConfig) (LLMProvider, string, error) {
	name := normalizeProviderName(cfg.Provider)
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	var provider LLMProvider
	switch name {
	case "anthropic":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, "", fmt.Errorf("no API key configured for provider %q", name)
		}
		provider = anthropicprovider.NewProviderWithBaseURL(cfg.APIKey, cfg.APIBase)
	default:
		apiBase := strings.TrimSpace(cfg.APIBase)
		if apiBase == "" {
			apiBase = defaultAPIBases[name]
		}
		if apiBase == "" {
			return nil, "", fmt.Errorf("unknown provider %q: set llm.api_base for OpenAI-compatible endpoints", name)
		}
		if cfg.APIKey == "" && name != "ollama" && name != "vllm" {
			return nil, "", fmt.Errorf("no API key configured for provider %q", name)
		}
		provider = openai_sdk.NewProvider(cfg.APIKey, apiBase, cfg.Proxy, openai_sdk.WithRequestTimeout(timeout))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = provider.GetDefaultModel()
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RequestsPerMinute})
	return NewThrottled(provider, limiter), model, nil
}

// Throttled waits on a shared limiter before each call.
type Throttled struct {
	inner   LLMProvider
	limiter *ratelimit.Limiter
}

func NewThrottled(inner LLMProvider, limiter *ratelimit.Limiter) *Throttled {
	return &Throttled{inner: inner, limiter: limiter}
}

func (t *Throttled) Chat(
	ctx context.Context,
	messages []Message,
	model string,
	options map[string]any,
) (*LLMResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return t.inner.Chat(ctx, messages, model, options)
}

func (t *Throttled) GetDefaultModel() string {
	return t.inner.GetDefaultModel()
}
