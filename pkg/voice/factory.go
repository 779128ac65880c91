package voice

import (
	"fmt"
	"strings"
	"time"

	"github.com/sipeed/picocast/pkg/config"
)

// NewSynthesizer builds the engine selected by cfg.Provider: "openai"
// (the default), "kokoro" or "silent".
func NewSynthesizer(cfg config.SpeechConfig) (Synthesizer, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	format := DefaultFormat
	if cfg.SampleRate > 0 {
		format.SampleRate = cfg.SampleRate
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("no API key configured for speech provider openai")
		}
		return NewOpenAISynthesizer(cfg.APIKey, cfg.APIBase, cfg.Model, timeout), nil
	case "kokoro":
		return NewKokoroSynthesizer(cfg.APIBase, "", timeout), nil
	case "silent", "none":
		return NewSilentSynthesizer(format, cfg.WordsPerMinute), nil
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Provider)
	}
}
