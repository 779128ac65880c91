package openai_sdk

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Chat_BasicContent(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"chatcmpl-123",
			"object":"chat.completion",
			"created":1,
			"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"ASA fell 84.7% this month."}}],
			"usage":{"prompt_tokens":10,"completion_tokens":7,"total_tokens":17}
		}`))
	}))
	defer server.Close()

	p := NewProvider("test-key", server.URL, "")
	resp, err := p.Chat(t.Context(), []Message{
		{Role: "system", Content: "You are Reco."},
		{Role: "user", Content: "Go."},
	}, "openai/gpt-4o-mini", map[string]any{"max_tokens": 130, "temperature": 0.45})
	require.NoError(t, err)

	assert.Equal(t, "ASA fell 84.7% this month.", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 17, resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.EqualValues(t, 130, body["max_completion_tokens"])
	assert.InDelta(t, 0.45, body["temperature"], 1e-9)
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestProvider_Chat_APIErrorIncludesStatus(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer server.Close()

	p := NewProvider("k", server.URL, "")
	_, err := p.Chat(t.Context(), []Message{{Role: "user", Content: "hi"}}, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=429")
	assert.Equal(t, 1, calls)
}

func TestProvider_Chat_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer server.Close()

	p := NewProvider("k", server.URL, "")
	_, err := p.Chat(t.Context(), []Message{{Role: "user", Content: "hi"}}, "m", nil)
	assert.ErrorContains(t, err, "no choices")
}

func TestProvider_EmptyBase(t *testing.T) {
	p := NewProvider("k", "", "")
	_, err := p.Chat(t.Context(), nil, "m", nil)
	assert.ErrorContains(t, err, "API base not configured")
	assert.Equal(t, "gpt-4o-mini", p.GetDefaultModel())
}

func TestProvider_Chat_FoldsTurnIntoTwoMessages(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  Watch AHT.  "}}]}`))
	}))
	defer server.Close()

	p := NewProvider("k", server.URL, "")
	resp, err := p.Chat(t.Context(), []Message{
		{Role: "system", Content: "You are Stat."},
		{Role: "system", Content: "Facts: ASA down 84.7%."},
		{Role: "user", Content: "Transcript so far."},
		{Role: "assistant", Content: "Earlier line."},
		{Role: "user", Content: "   "},
	}, "m", map[string]any{"max_tokens": 99999, "temperature": 7.0})
	require.NoError(t, err)
	assert.Equal(t, "Watch AHT.", resp.Content)
	assert.Nil(t, resp.Usage)

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "You are Stat.\n\nFacts: ASA down 84.7%.", msgs[0].(map[string]any)["content"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
	assert.Equal(t, "Transcript so far.\n\nEarlier line.", msgs[1].(map[string]any)["content"])
	assert.EqualValues(t, maxCompletionTokens, body["max_completion_tokens"])
	assert.InDelta(t, 2.0, body["temperature"], 1e-9)
}

func TestProvider_Chat_OmitsUnsetSampling(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer server.Close()

	p := NewProvider("k", server.URL, "")
	_, err := p.Chat(t.Context(), []Message{{Role: "user", Content: "hi"}}, "m", nil)
	require.NoError(t, err)

	assert.NotContains(t, body, "max_completion_tokens")
	assert.NotContains(t, body, "temperature")
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 1)
}

func TestProvider_Chat_RequiresPrompt(t *testing.T) {
	p := NewProvider("k", "http://127.0.0.1:1", "")
	_, err := p.Chat(t.Context(), []Message{{Role: "system", Content: "You are Reco."}}, "m", nil)
	assert.ErrorContains(t, err, "no prompt")
}

func TestProvider_Chat_SurfacesRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer server.Close()

	p := NewProvider("k", server.URL, "")
	_, err := p.Chat(t.Context(), []Message{{Role: "user", Content: "hi"}}, "m", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=429")
	assert.Contains(t, err.Error(), "retry-after=3")
}
