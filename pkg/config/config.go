package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/sipeed/picocast/pkg/persona"
)

type Config struct {
	Show    ShowConfig    `json:"show" yaml:"show"`
	LLM     LLMConfig     `json:"llm" yaml:"llm"`
	Speech  SpeechConfig  `json:"speech" yaml:"speech"`
	Voices  VoicesConfig  `json:"voices" yaml:"voices"`
	Context ContextConfig `json:"context" yaml:"context"`
	Gateway GatewayConfig `json:"gateway" yaml:"gateway"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	mu      sync.RWMutex
}

// ShowConfig describes the shape of a single episode.
type ShowConfig struct {
	Title                 string `json:"title" yaml:"title" label:"Show Title" env:"PICOCAST_SHOW_TITLE"`
	HostName              string `json:"host_name" yaml:"host_name" label:"Host Name" env:"PICOCAST_SHOW_HOST_NAME"`
	StrategistName        string `json:"strategist_name" yaml:"strategist_name" label:"Strategist Name" env:"PICOCAST_SHOW_STRATEGIST_NAME"`
	ValidatorName         string `json:"validator_name" yaml:"validator_name" label:"Validator Name" env:"PICOCAST_SHOW_VALIDATOR_NAME"`
	TurnBudget            int    `json:"turn_budget" yaml:"turn_budget" label:"Turn Budget" env:"PICOCAST_SHOW_TURN_BUDGET"`
	DurationCapSeconds    int    `json:"duration_cap_seconds" yaml:"duration_cap_seconds" label:"Duration Cap (s)" env:"PICOCAST_SHOW_DURATION_CAP_SECONDS"`
	ClosingReserveSeconds int    `json:"closing_reserve_seconds" yaml:"closing_reserve_seconds" label:"Closing Reserve (s)" env:"PICOCAST_SHOW_CLOSING_RESERVE_SECONDS"`
	MaxWords              int    `json:"max_words" yaml:"max_words" label:"Max Words per Turn" env:"PICOCAST_SHOW_MAX_WORDS"`
}

// LLMConfig selects the text completion provider.
type LLMConfig struct {
	Provider          string  `json:"provider" yaml:"provider" label:"Provider" env:"PICOCAST_LLM_PROVIDER"`
	Model             string  `json:"model" yaml:"model" label:"Model" env:"PICOCAST_LLM_MODEL"`
	APIKey            string  `json:"api_key" yaml:"api_key" label:"API Key" env:"PICOCAST_LLM_API_KEY"`
	APIBase           string  `json:"api_base" yaml:"api_base" label:"API Base" env:"PICOCAST_LLM_API_BASE"`
	Proxy             string  `json:"proxy,omitempty" yaml:"proxy,omitempty" label:"Proxy" env:"PICOCAST_LLM_PROXY"`
	MaxTokens         int     `json:"max_tokens" yaml:"max_tokens" label:"Max Tokens" env:"PICOCAST_LLM_MAX_TOKENS"`
	Temperature       float64 `json:"temperature" yaml:"temperature" label:"Temperature" env:"PICOCAST_LLM_TEMPERATURE"`
	TimeoutSeconds    int     `json:"timeout_seconds" yaml:"timeout_seconds" label:"Timeout (s)" env:"PICOCAST_LLM_TIMEOUT_SECONDS"`
	RequestsPerMinute int     `json:"requests_per_minute" yaml:"requests_per_minute" label:"Requests per Minute" env:"PICOCAST_LLM_REQUESTS_PER_MINUTE"`
}

// SpeechConfig selects the speech synthesis provider and annotation rules.
type SpeechConfig struct {
	Provider          string   `json:"provider" yaml:"provider" label:"Provider" env:"PICOCAST_SPEECH_PROVIDER"`
	Model             string   `json:"model" yaml:"model" label:"Model" env:"PICOCAST_SPEECH_MODEL"`
	APIKey            string   `json:"api_key" yaml:"api_key" label:"API Key" env:"PICOCAST_SPEECH_API_KEY"`
	APIBase           string   `json:"api_base" yaml:"api_base" label:"API Base" env:"PICOCAST_SPEECH_API_BASE"`
	TimeoutSeconds    int      `json:"timeout_seconds" yaml:"timeout_seconds" label:"Timeout (s)" env:"PICOCAST_SPEECH_TIMEOUT_SECONDS"`
	WordsPerMinute    int      `json:"words_per_minute" yaml:"words_per_minute" label:"Words per Minute" env:"PICOCAST_SPEECH_WORDS_PER_MINUTE"`
	SentimentLexicon  []string `json:"sentiment_lexicon" yaml:"sentiment_lexicon" label:"Sentiment Lexicon" env:"PICOCAST_SPEECH_SENTIMENT_LEXICON" envSeparator:","`
	Concurrency       int      `json:"concurrency" yaml:"concurrency" label:"Concurrency" env:"PICOCAST_SPEECH_CONCURRENCY"`
	RequestsPerMinute int      `json:"requests_per_minute" yaml:"requests_per_minute" label:"Requests per Minute" env:"PICOCAST_SPEECH_REQUESTS_PER_MINUTE"`
	SampleRate        int      `json:"sample_rate" yaml:"sample_rate" label:"Sample Rate" env:"PICOCAST_SPEECH_SAMPLE_RATE"`
}

// VoicesConfig maps each persona to a provider voice name.
type VoicesConfig struct {
	Host       string `json:"host" yaml:"host" label:"Host Voice" env:"PICOCAST_VOICES_HOST"`
	Strategist string `json:"strategist" yaml:"strategist" label:"Strategist Voice" env:"PICOCAST_VOICES_STRATEGIST"`
	Validator  string `json:"validator" yaml:"validator" label:"Validator Voice" env:"PICOCAST_VOICES_VALIDATOR"`
}

type ContextConfig struct {
	AnomalyThresholdPercent float64 `json:"anomaly_threshold_percent" yaml:"anomaly_threshold_percent" label:"Anomaly Threshold (%)" env:"PICOCAST_CONTEXT_ANOMALY_THRESHOLD_PERCENT"`
}

type GatewayConfig struct {
	Host   string `json:"host" yaml:"host" label:"Host" env:"PICOCAST_GATEWAY_HOST"`
	Port   int    `json:"port" yaml:"port" label:"Port" env:"PICOCAST_GATEWAY_PORT"`
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" label:"API Key" env:"PICOCAST_GATEWAY_API_KEY"`
}

type StorageConfig struct {
	OutputDir    string `json:"output_dir" yaml:"output_dir" label:"Output Directory" env:"PICOCAST_STORAGE_OUTPUT_DIR"`
	DatabasePath string `json:"database_path" yaml:"database_path" label:"Database Path" env:"PICOCAST_STORAGE_DATABASE_PATH"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level" label:"Level" env:"PICOCAST_LOGGING_LEVEL"`
	File  string `json:"file,omitempty" yaml:"file,omitempty" label:"File" env:"PICOCAST_LOGGING_FILE"`
}

// LoadConfig reads path (JSON, or YAML for .yaml/.yml), then applies
// PICOCAST_* environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if err == nil {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *Config) Lock()    { c.mu.Lock() }
func (c *Config) Unlock()  { c.mu.Unlock() }
func (c *Config) RLock()   { c.mu.RLock() }
func (c *Config) RUnlock() { c.mu.RUnlock() }

// normalize clamps numeric settings into supported ranges and fills
// blanks left by a partial file.
func (c *Config) normalize() {
	d := DefaultConfig()

	c.Show.TurnBudget = ClampTurns(c.Show.TurnBudget)
	if c.Show.DurationCapSeconds <= 0 {
		c.Show.DurationCapSeconds = d.Show.DurationCapSeconds
	}
	c.Show.DurationCapSeconds = clamp(c.Show.DurationCapSeconds, MinDurationCapSeconds, MaxDurationCapSeconds)
	if c.Show.ClosingReserveSeconds < 0 {
		c.Show.ClosingReserveSeconds = 0
	}
	c.Show.MaxWords = persona.ClampMaxWords(c.Show.MaxWords)
	if c.Speech.WordsPerMinute <= 0 {
		c.Speech.WordsPerMinute = d.Speech.WordsPerMinute
	}
	c.Speech.WordsPerMinute = clamp(c.Speech.WordsPerMinute, 80, 260)
	if c.Speech.Concurrency <= 0 {
		c.Speech.Concurrency = 1
	}
	if c.Speech.SampleRate <= 0 {
		c.Speech.SampleRate = d.Speech.SampleRate
	}
	if c.Context.AnomalyThresholdPercent <= 0 {
		c.Context.AnomalyThresholdPercent = d.Context.AnomalyThresholdPercent
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = d.LLM.MaxTokens
	}

	c.Storage.OutputDir = expandHome(c.Storage.OutputDir)
	c.Storage.DatabasePath = expandHome(c.Storage.DatabasePath)
	c.Logging.File = expandHome(c.Logging.File)
}

// ClampTurns bounds a requested turn budget. Zero or negative selects the default.
func ClampTurns(n int) int {
	if n <= 0 {
		return DefaultTurnBudget
	}
	return clamp(n, MinTurnBudget, MaxTurnBudget)
}

// ClampMinutes bounds a requested episode length in minutes.
func ClampMinutes(n int) int {
	if n <= 0 {
		return DefaultDurationCapSeconds / 60
	}
	return clamp(n, 1, 5)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
