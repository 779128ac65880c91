package session

import (
	"fmt"
	"time"

	"github.com/sipeed/picocast/pkg/bus"
	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/dialogue"
	"github.com/sipeed/picocast/pkg/persona"
	"github.com/sipeed/picocast/pkg/providers"
	"github.com/sipeed/picocast/pkg/ratelimit"
	"github.com/sipeed/picocast/pkg/ssml"
	"github.com/sipeed/picocast/pkg/voice"
)

type BuildOption func(*Deps)

// WithSynthesizer replaces the configured speech engine.
func WithSynthesizer(s voice.Synthesizer) BuildOption {
	return func(d *Deps) { d.Synthesizer = s }
}

// WithCompleter replaces the configured completion provider.
func WithCompleter(c dialogue.Completer) BuildOption {
	return func(d *Deps) { d.Completer = c }
}

func WithStore(s *Store) BuildOption {
	return func(d *Deps) { d.Store = s }
}

func WithEvents(p bus.Publisher) BuildOption {
	return func(d *Deps) { d.Events = p }
}

// NewRunnerFromConfig wires providers, personas and the speech engine from
// cfg. Options override the corresponding piece before anything is dialed.
func NewRunnerFromConfig(cfg *config.Config, opts ...BuildOption) (*Runner, error) {
	cfg.RLock()
	defer cfg.RUnlock()

	var deps Deps
	for _, opt := range opts {
		opt(&deps)
	}

	deps.Registry = persona.NewRegistry(persona.DisplayNames{
		Host:       cfg.Show.HostName,
		Strategist: cfg.Show.StrategistName,
		Validator:  cfg.Show.ValidatorName,
	}, cfg.Show.MaxWords)

	if deps.Completer == nil {
		provider, model, err := providers.CreateProvider(cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("completion provider: %w", err)
		}
		deps.Completer = dialogue.NewLLMCompleter(provider, model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
	}

	if deps.Synthesizer == nil {
		synth, err := voice.NewSynthesizer(cfg.Speech)
		if err != nil {
			return nil, fmt.Errorf("speech provider: %w", err)
		}
		deps.Synthesizer = synth
	}

	deps.Annotator = ssml.NewAnnotator(deps.Registry, map[persona.Role]string{
		persona.RoleHost:       cfg.Voices.Host,
		persona.RoleStrategist: cfg.Voices.Strategist,
		persona.RoleValidator:  cfg.Voices.Validator,
	}, ssml.Options{
		Lexicon:        cfg.Speech.SentimentLexicon,
		WordsPerMinute: cfg.Speech.WordsPerMinute,
	})

	return NewRunner(deps, Options{
		Title:              cfg.Show.Title,
		TurnBudget:         cfg.Show.TurnBudget,
		DurationCapSeconds: cfg.Show.DurationCapSeconds,
		ClosingReserve:     time.Duration(cfg.Show.ClosingReserveSeconds) * time.Second,
		WordsPerMinute:     cfg.Speech.WordsPerMinute,
		CompletionTimeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		AnomalyThreshold:   cfg.Context.AnomalyThresholdPercent,
		OutputDir:          cfg.Storage.OutputDir,
		Pipeline: voice.PipelineOptions{
			Concurrency: cfg.Speech.Concurrency,
			Limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.Speech.RequestsPerMinute}),
			Timeout:     time.Duration(cfg.Speech.TimeoutSeconds) * time.Second,
		},
	}), nil
}
