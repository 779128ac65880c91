// PicoCast - Multi-voice metrics podcast generator
// License: MIT
//
// Copyright (c) 2026 PicoCast contributors

package config

const (
	DefaultTurnBudget         = 6
	MinTurnBudget             = 3
	MaxTurnBudget             = 24
	DefaultDurationCapSeconds = 180
	MinDurationCapSeconds     = 60
	MaxDurationCapSeconds     = 300
)

// DefaultSentimentLexicon triggers the excited speaking style.
var DefaultSentimentLexicon = []string{
	"shocking", "surprising", "unexpected", "remarkable", "dramatic",
	"alarming", "astonishing", "incredible", "wow",
}

// DefaultConfig returns the default configuration for PicoCast.
func DefaultConfig() *Config {
	home := DefaultHome()
	return &Config{
		Show: ShowConfig{
			Title:                 "Metrics Uncovered",
			HostName:              "Nexus",
			StrategistName:        "Reco",
			ValidatorName:         "Stat",
			TurnBudget:            DefaultTurnBudget,
			DurationCapSeconds:    DefaultDurationCapSeconds,
			ClosingReserveSeconds: 12,
			MaxWords:              50,
		},
		LLM: LLMConfig{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			APIBase:           "https://api.openai.com/v1",
			MaxTokens:         130,
			Temperature:       0.45,
			TimeoutSeconds:    30,
			RequestsPerMinute: 60,
		},
		Speech: SpeechConfig{
			Provider:          "openai",
			Model:             "gpt-4o-mini-tts",
			APIBase:           "https://api.openai.com/v1",
			TimeoutSeconds:    60,
			WordsPerMinute:    150,
			SentimentLexicon:  append([]string(nil), DefaultSentimentLexicon...),
			Concurrency:       2,
			RequestsPerMinute: 30,
			SampleRate:        24000,
		},
		Voices: VoicesConfig{
			Host:       "alloy",
			Strategist: "nova",
			Validator:  "onyx",
		},
		Context: ContextConfig{
			AnomalyThresholdPercent: 20,
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 18800,
		},
		Storage: StorageConfig{
			OutputDir:    home + "/output",
			DatabasePath: home + "/picocast.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
