package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/ssml"
)

const (
	defaultOpenAISpeechModel = "gpt-4o-mini-tts"
	maxAudioBytes            = 64 << 20
)

// OpenAISynthesizer calls the audio.speech endpoint and asks for WAV.
// The endpoint does not accept markup, so annotated text is reduced to
// plain prose and the persona tone travels as instructions.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
	Instructions   string `json:"instructions,omitempty"`
}

func (r speechRequest) MarshalJSON() ([]byte, error) {
	type plain speechRequest
	return json.Marshal(plain(r))
}

func NewOpenAISynthesizer(apiKey, apiBase, model string, timeout time.Duration) *OpenAISynthesizer {
	if model == "" {
		model = defaultOpenAISpeechModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(apiBase, "/")+"/"))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	logger.DebugCF("voice", "Creating OpenAI speech synthesizer", map[string]any{
		"model":       model,
		"has_api_key": apiKey != "",
	})

	client := openai.NewClient(opts...)
	return &OpenAISynthesizer{client: &client, model: model}
}

func (s *OpenAISynthesizer) Name() string { return "openai" }

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, req Request) (*Speech, error) {
	text := req.Text
	if req.Markup {
		text = ssml.StripMarkup(text)
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty synthesis input")
	}

	body := speechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          req.Voice,
		ResponseFormat: "wav",
		Instructions:   req.Instructions,
	}

	var res *http.Response
	err := s.client.Post(ctx, "audio/speech", body, &res, option.WithHeader("Accept", "audio/wav"))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("OpenAI speech request failed (status=%d): %s",
				apiErr.StatusCode, strings.TrimSpace(apiErr.Message))
		}
		return nil, fmt.Errorf("OpenAI speech request failed: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read speech audio: %w", err)
	}
	speech, err := DecodeWAV(data)
	if err != nil {
		return nil, err
	}

	logger.DebugCF("voice", "Speech synthesized", map[string]any{
		"voice":    req.Voice,
		"bytes":    len(speech.Samples),
		"duration": speech.Duration.String(),
	})
	return speech, nil
}
