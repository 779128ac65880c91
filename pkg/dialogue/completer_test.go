package dialogue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picocast/pkg/providers"
)

type fakeProvider struct {
	messages []providers.Message
	model    string
	options  map[string]any
	resp     *providers.LLMResponse
	err      error
}

func (f *fakeProvider) Chat(_ context.Context, messages []providers.Message, model string, options map[string]any) (*providers.LLMResponse, error) {
	f.messages, f.model, f.options = messages, model, options
	return f.resp, f.err
}

func (f *fakeProvider) GetDefaultModel() string { return "fake-default" }

func TestLLMCompleter_Generate(t *testing.T) {
	fp := &fakeProvider{resp: &providers.LLMResponse{Content: "ASA fell sharply."}}
	c := NewLLMCompleter(fp, "", 130, 0.45)

	transcript := []Turn{{Index: 0, Speaker: "Nexus", Text: "Welcome.", Timestamp: time.Now()}}
	out, err := c.Generate(t.Context(), "You are Reco.", transcript, testFacts(t))
	require.NoError(t, err)
	assert.Equal(t, "ASA fell sharply.", out)

	assert.Equal(t, "fake-default", fp.model)
	assert.Equal(t, 130, fp.options[providers.OptMaxTokens])
	assert.Equal(t, 0.45, fp.options[providers.OptTemperature])

	require.Len(t, fp.messages, 2)
	assert.Equal(t, "system", fp.messages[0].Role)
	assert.Contains(t, fp.messages[0].Content, "You are Reco.")
	assert.Contains(t, fp.messages[0].Content, "ASA")
	assert.Contains(t, fp.messages[1].Content, "Nexus: Welcome.")
}

func TestLLMCompleter_ProviderError(t *testing.T) {
	fp := &fakeProvider{err: errors.New("status=500")}
	_, err := NewLLMCompleter(fp, "m", 10, 0).Generate(t.Context(), "d", nil, nil)
	assert.ErrorContains(t, err, "status=500")

	fp = &fakeProvider{}
	_, err = NewLLMCompleter(fp, "m", 10, 0).Generate(t.Context(), "d", nil, nil)
	assert.Error(t, err)
}

func TestBuildMessages_EmptyTranscript(t *testing.T) {
	msgs := BuildMessages("You are Nexus.", nil, nil)
	require.Len(t, msgs, 2)
	assert.Equal(t, "You are Nexus.", msgs[0].Content)
	assert.Contains(t, msgs[1].Content, "starting")
}
