package utils

import (
	"strings"
	"time"
)

// Truncate returns a truncated version of s with at most maxLen runes.
// If the string is truncated, "..." is appended to indicate truncation.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// WordCount counts whitespace separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// EnsureTerminalPunctuation appends a period when s does not already end
// a sentence.
func EnsureTerminalPunctuation(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?', '"', '\'':
		return s
	}
	return s + "."
}

// SpeakingDuration estimates how long text takes to read aloud at wpm
// words per minute. A non-positive wpm uses 150.
func SpeakingDuration(text string, wpm int) time.Duration {
	if wpm <= 0 {
		wpm = 150
	}
	return time.Duration(WordCount(text)) * time.Minute / time.Duration(wpm)
}
