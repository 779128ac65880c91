package voice

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotWAV = errors.New("voice: not a PCM WAV stream")

// Format describes interleaved little-endian PCM.
type Format struct {
	SampleRate    int `json:"sample_rate"`
	Channels      int `json:"channels"`
	BitsPerSample int `json:"bits_per_sample"`
}

// DefaultFormat is 24 kHz, 16-bit mono, the native output of the
// supported speech engines.
var DefaultFormat = Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}

func (f Format) BlockAlign() int { return f.Channels * f.BitsPerSample / 8 }

func (f Format) BytesPerSecond() int { return f.SampleRate * f.BlockAlign() }

// DurationOf returns the playing time of n bytes of PCM in this format.
func (f Format) DurationOf(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dbit/%dch", f.SampleRate, f.BitsPerSample, f.Channels)
}

// Request is one synthesis call. When Markup is false Text is plain prose.
type Request struct {
	Text         string
	Voice        string
	Markup       bool
	Instructions string
}

// Speech is decoded PCM audio.
type Speech struct {
	Samples  []byte
	Format   Format
	Duration time.Duration
}

func NewSpeech(samples []byte, format Format) *Speech {
	return &Speech{Samples: samples, Format: format, Duration: format.DurationOf(len(samples))}
}

// Synthesizer turns text into speech. Implementations must be safe for
// concurrent use.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (*Speech, error)
	Name() string
}

// SynthesisError reports a failed synthesis of one turn.
type SynthesisError struct {
	TurnIndex int
	Voice     string
	Err       error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis of turn %d (voice %s) failed: %v", e.TurnIndex, e.Voice, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
