package openai_sdk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/providers/protocoltypes"
)

type (
	LLMResponse = protocoltypes.LLMResponse
	UsageInfo   = protocoltypes.UsageInfo
	Message     = protocoltypes.Message
)

const (
	defaultModel          = "gpt-4o-mini"
	defaultRequestTimeout = 60 * time.Second

	// A spoken turn never needs more than this.
	maxCompletionTokens = 1024
)

type Provider struct {
	apiBase    string
	httpClient *http.Client
	client     *openai.Client
}

type Option func(*Provider)

func WithRequestTimeout(timeout time.Duration) Option {
	return func(p *Provider) {
		if timeout > 0 {
			p.httpClient.Timeout = timeout
		}
	}
}

// NewProvider talks to any OpenAI-compatible chat completions endpoint.
// SDK-level retries are disabled; the dialogue retry policy owns them.
func NewProvider(apiKey, apiBase, proxy string, opts ...Option) *Provider {
	p := &Provider{
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: newHTTPClient(proxy),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	reqOpts := []option.RequestOption{
		option.WithBaseURL(p.apiBase),
		option.WithHTTPClient(p.httpClient),
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(reqOpts...)
	p.client = &client
	return p
}

func newHTTPClient(proxy string) *http.Client {
	c := &http.Client{Timeout: defaultRequestTimeout}
	if proxy == "" {
		return c
	}
	parsed, err := url.Parse(proxy)
	if err != nil {
		logger.WarnCF("providers", "Invalid proxy URL", map[string]any{"proxy": proxy, "error": err.Error()})
		return c
	}
	c.Transport = &http.Transport{Proxy: http.ProxyURL(parsed)}
	return c
}

func (p *Provider) GetDefaultModel() string {
	return defaultModel
}

// Chat sends one turn request. Every system message is folded into the
// persona directive and the rest into a single user prompt.
func (p *Provider) Chat(
	ctx context.Context,
	messages []Message,
	model string,
	options map[string]any,
) (*LLMResponse, error) {
	if strings.TrimSpace(p.apiBase) == "" {
		return nil, fmt.Errorf("API base not configured")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}

	req := foldTurn(messages)
	if req.prompt == "" {
		return nil, fmt.Errorf("turn request has no prompt")
	}
	params := openai.ChatCompletionNewParams{
		Model:    normalizeModel(model),
		Messages: req.params(),
	}
	samplingFrom(options).apply(&params)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, describeError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI API returned no choices")
	}

	choice := resp.Choices[0]
	return &LLMResponse{
		Content:      strings.TrimSpace(choice.Message.Content),
		FinishReason: choice.FinishReason,
		Usage:        mapUsage(resp.Usage),
	}, nil
}

type turnRequest struct {
	directive string
	prompt    string
}

func foldTurn(messages []Message) turnRequest {
	var system, user []string
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if m.Role == "system" {
			system = append(system, content)
		} else {
			user = append(user, content)
		}
	}
	return turnRequest{
		directive: strings.Join(system, "\n\n"),
		prompt:    strings.Join(user, "\n\n"),
	}
}

func (r turnRequest) params() []openai.ChatCompletionMessageParamUnion {
	if r.directive == "" {
		return []openai.ChatCompletionMessageParamUnion{openai.UserMessage(r.prompt)}
	}
	return []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(r.directive),
		openai.UserMessage(r.prompt),
	}
}

// sampling holds the per-turn generation settings. Zero maxTokens and a
// nil temperature leave the endpoint defaults in place.
type sampling struct {
	maxTokens   int64
	temperature *float64
}

func samplingFrom(options map[string]any) sampling {
	var s sampling
	switch v := options["max_tokens"].(type) {
	case int:
		s.maxTokens = int64(v)
	case float64:
		s.maxTokens = int64(v)
	}
	s.maxTokens = min(max(s.maxTokens, 0), maxCompletionTokens)

	switch v := options["temperature"].(type) {
	case float64:
		t := math.Min(math.Max(v, 0), 2)
		s.temperature = &t
	case int:
		t := math.Min(math.Max(float64(v), 0), 2)
		s.temperature = &t
	}
	return s
}

func (s sampling) apply(params *openai.ChatCompletionNewParams) {
	if s.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(s.maxTokens)
	}
	if s.temperature != nil {
		params.Temperature = openai.Float(*s.temperature)
	}
}

// describeError keeps the status code and any Retry-After hint in the
// message so the retry policy can honour it.
func describeError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("OpenAI API request failed: %w", err)
	}
	msg := fmt.Sprintf("OpenAI API request failed (status=%d): %s",
		apiErr.StatusCode, strings.TrimSpace(apiErr.Message))
	if apiErr.Response != nil {
		if secs, convErr := strconv.Atoi(apiErr.Response.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			msg += fmt.Sprintf(" (retry-after=%d)", secs)
		}
	}
	return errors.New(msg)
}

func normalizeModel(model string) string {
	trimmed := strings.TrimSpace(model)
	if strings.HasPrefix(strings.ToLower(trimmed), "openai/") {
		return trimmed[len("openai/"):]
	}
	return trimmed
}

func mapUsage(usage openai.CompletionUsage) *UsageInfo {
	if usage.TotalTokens == 0 && usage.PromptTokens == 0 && usage.CompletionTokens == 0 {
		return nil
	}
	return &UsageInfo{
		PromptTokens:     int(usage.PromptTokens),
		CompletionTokens: int(usage.CompletionTokens),
		TotalTokens:      int(usage.TotalTokens),
	}
}
