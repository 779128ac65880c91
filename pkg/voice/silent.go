package voice

import (
	"context"
	"time"

	"github.com/sipeed/picocast/pkg/ssml"
)

// SilentSynthesizer renders silence of the estimated speaking length. It
// makes offline dry runs produce a correctly timed master.
type SilentSynthesizer struct {
	format Format
	wpm    int
}

func NewSilentSynthesizer(format Format, wordsPerMinute int) *SilentSynthesizer {
	if format.SampleRate <= 0 {
		format = DefaultFormat
	}
	return &SilentSynthesizer{format: format, wpm: wordsPerMinute}
}

func (s *SilentSynthesizer) Name() string { return "silent" }

func (s *SilentSynthesizer) Synthesize(ctx context.Context, req Request) (*Speech, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := req.Text
	if req.Markup {
		text = ssml.StripMarkup(text)
	}
	d := ssml.EstimateDuration(text, s.wpm)
	frames := int(d * time.Duration(s.format.SampleRate) / time.Second)
	return NewSpeech(make([]byte, frames*s.format.BlockAlign()), s.format), nil
}
