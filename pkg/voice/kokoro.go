package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/ssml"
)

// KokoroSynthesizer uses a Kokoro TTS server (OpenAI-compatible /v1/audio/speech API).
type KokoroSynthesizer struct {
	apiBase      string
	defaultVoice string
	model        string
	httpClient   *http.Client
}

type kokoroRequest struct {
	Model  string `json:"model"`
	Input  string `json:"input"`
	Voice  string `json:"voice"`
	Format string `json:"response_format,omitempty"`
}

// NewKokoroSynthesizer creates a Kokoro TTS client.
// apiBase defaults to "http://localhost:8102".
// voice defaults to "af_nova" and is used when a request names none.
func NewKokoroSynthesizer(apiBase, voice string, timeout time.Duration) *KokoroSynthesizer {
	if apiBase == "" {
		apiBase = "http://localhost:8102"
	}
	if voice == "" {
		voice = "af_nova"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	logger.InfoCF("voice", "Creating Kokoro TTS synthesizer", map[string]any{
		"api_base": apiBase,
		"voice":    voice,
	})

	return &KokoroSynthesizer{
		apiBase:      strings.TrimRight(apiBase, "/"),
		defaultVoice: voice,
		model:        "kokoro",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *KokoroSynthesizer) Name() string { return "kokoro" }

// Synthesize returns decoded WAV audio. Kokoro reads plain text only.
func (s *KokoroSynthesizer) Synthesize(ctx context.Context, req Request) (*Speech, error) {
	text := req.Text
	if req.Markup {
		text = ssml.StripMarkup(text)
	}
	voice := req.Voice
	if voice == "" {
		voice = s.defaultVoice
	}

	bodyBytes, err := json.Marshal(kokoroRequest{
		Model:  s.model,
		Input:  text,
		Voice:  voice,
		Format: "wav",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+"/v1/audio/speech", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("TTS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("Kokoro TTS error (status %d): %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read TTS audio: %w", err)
	}
	speech, err := DecodeWAV(data)
	if err != nil {
		return nil, err
	}

	logger.DebugCF("voice", "Speech synthesized successfully", map[string]any{
		"size_bytes": len(speech.Samples),
		"voice":      voice,
	})
	return speech, nil
}

// IsAvailable checks if the Kokoro TTS server is reachable.
func (s *KokoroSynthesizer) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+"/v1/models", nil)
	if err != nil {
		return false
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.DebugCF("voice", "Kokoro TTS health check failed", map[string]any{
			"error": err.Error(),
		})
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
