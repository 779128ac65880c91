package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/sipeed/picocast/pkg/metrics"
	"github.com/sipeed/picocast/pkg/providers"
)

// Completer produces the next line for a persona. Implementations must be
// safe for concurrent use by independent sessions.
type Completer interface {
	Generate(ctx context.Context, directive string, transcript []Turn, facts *metrics.Context) (string, error)
}

// LLMCompleter adapts a chat completion provider.
type LLMCompleter struct {
	provider    providers.LLMProvider
	model       string
	maxTokens   int
	temperature float64
}

func NewLLMCompleter(provider providers.LLMProvider, model string, maxTokens int, temperature float64) *LLMCompleter {
	if model == "" {
		model = provider.GetDefaultModel()
	}
	return &LLMCompleter{
		provider:    provider,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (c *LLMCompleter) Generate(
	ctx context.Context,
	directive string,
	transcript []Turn,
	facts *metrics.Context,
) (string, error) {
	messages := BuildMessages(directive, transcript, facts)
	options := map[string]any{
		providers.OptMaxTokens:   c.maxTokens,
		providers.OptTemperature: c.temperature,
	}

	resp, err := c.provider.Chat(ctx, messages, c.model, options)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("provider returned no response")
	}
	return resp.Content, nil
}

// BuildMessages lays out a completion request: the directive and fact
// sheet as the system prompt, the transcript so far as the user message.
func BuildMessages(directive string, transcript []Turn, facts *metrics.Context) []providers.Message {
	var system strings.Builder
	system.WriteString(directive)
	if facts != nil && facts.Len() > 0 {
		system.WriteString("\n\nFact sheet (use only these numbers):\n")
		system.WriteString(facts.Summary())
	}

	var user strings.Builder
	if len(transcript) == 0 {
		user.WriteString("The episode is starting. Speak now.")
	} else {
		user.WriteString("Conversation so far:\n")
		for _, t := range transcript {
			fmt.Fprintf(&user, "%s: %s\n", t.Speaker, t.Text)
		}
		user.WriteString("\nSpeak your next line now, as yourself only.")
	}

	return []providers.Message{
		{Role: "system", Content: system.String()},
		{Role: "user", Content: user.String()},
	}
}
