// Package redaction masks credentials before they reach log output.
// Only secrets are targeted: podcast content is full of numbers that
// broader PII rules would mangle.
package redaction

import (
	"regexp"
	"strings"
	"sync"
)

// Config holds redaction configuration.
type Config struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	CustomPatterns []string `json:"custom_patterns,omitempty" yaml:"custom_patterns,omitempty"`
	Replacement    string   `json:"replacement,omitempty" yaml:"replacement,omitempty"`
}

// DefaultConfig returns the default redaction configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Replacement: "[REDACTED]",
	}
}

// Redactor masks API keys and tokens in strings and log fields.
type Redactor struct {
	config   Config
	patterns []*regexp.Regexp
	mu       sync.RWMutex
}

var builtinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-_]{16,}`),
	regexp.MustCompile(`sk-[a-zA-Z0-9\-_]{16,}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.]{16,}`),
	regexp.MustCompile(`(?i)(api[_-]?key|x-api-key)\s*[=:]\s*['"]?[a-zA-Z0-9_\-\.]{16,}['"]?`),
	regexp.MustCompile(`"(?:api_key|apikey|token|secret)"\s*:\s*"[^"]+"`),
}

// NewRedactor creates a Redactor. Invalid custom patterns are ignored.
func NewRedactor(config Config) *Redactor {
	if config.Replacement == "" {
		config.Replacement = "[REDACTED]"
	}
	r := &Redactor{config: config}
	r.patterns = append(r.patterns, builtinPatterns...)
	for _, p := range config.CustomPatterns {
		if re, err := regexp.Compile(p); err == nil {
			r.patterns = append(r.patterns, re)
		}
	}
	return r
}

// Redact masks every secret found in input.
func (r *Redactor) Redact(input string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.config.Enabled || input == "" {
		return input
	}
	out := input
	for _, re := range r.patterns {
		out = re.ReplaceAllString(out, r.config.Replacement)
	}
	return out
}

// RedactFields returns a copy of fields with secret-looking keys masked
// and string values scrubbed.
func (r *Redactor) RedactFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	r.mu.RLock()
	enabled := r.config.Enabled
	replacement := r.config.Replacement
	r.mu.RUnlock()
	if !enabled {
		return fields
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if isSensitiveKey(k) {
			out[k] = replacement
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = r.Redact(val)
		case map[string]any:
			out[k] = r.RedactFields(val)
		default:
			out[k] = v
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range []string{"api_key", "apikey", "secret", "token", "password", "credential"} {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

var (
	globalMu       sync.RWMutex
	globalRedactor = NewRedactor(DefaultConfig())
)

// Redact applies redaction using the global redactor.
func Redact(input string) string {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalRedactor.Redact(input)
}

// RedactFields redacts fields using the global redactor.
func RedactFields(fields map[string]any) map[string]any {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalRedactor.RedactFields(fields)
}

// SetGlobalConfig replaces the global redactor.
func SetGlobalConfig(config Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRedactor = NewRedactor(config)
}
