package audio

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picocast/pkg/dialogue"
	"github.com/sipeed/picocast/pkg/voice"
)

func segment(index int, fill byte, d time.Duration) voice.Segment {
	n := int(d/time.Millisecond) * voice.DefaultFormat.BytesPerSecond() / 1000
	return voice.Segment{
		TurnIndex: index,
		Samples:   bytes.Repeat([]byte{fill}, n),
		Format:    voice.DefaultFormat,
		Duration:  d,
	}
}

func TestAssemble_AppendsInOrder(t *testing.T) {
	segs := []voice.Segment{
		segment(0, 1, time.Second),
		segment(2, 2, 500*time.Millisecond),
		segment(3, 3, 250*time.Millisecond),
	}
	m, err := Assemble(segs)
	require.NoError(t, err)

	assert.Equal(t, 1750*time.Millisecond, m.Duration)
	assert.Equal(t, voice.DefaultFormat, m.Format)
	assert.Equal(t, byte(1), m.Samples[0])
	assert.Equal(t, byte(2), m.Samples[48000])
	assert.Equal(t, byte(3), m.Samples[len(m.Samples)-1])
}

func TestAssemble_FormatMismatch(t *testing.T) {
	odd := segment(1, 0, time.Second)
	odd.Format.SampleRate = 16000

	_, err := Assemble([]voice.Segment{segment(0, 0, time.Second), odd})
	assert.True(t, errors.Is(err, ErrFormatMismatch))
}

func TestAssemble_RejectsDisorder(t *testing.T) {
	_, err := Assemble([]voice.Segment{segment(2, 0, time.Second), segment(1, 0, time.Second)})
	assert.ErrorContains(t, err, "out of order")
}

func TestAssemble_Empty(t *testing.T) {
	m, err := Assemble(nil)
	require.NoError(t, err)
	assert.Zero(t, m.Duration)
	assert.Empty(t, m.Samples)
}

func TestEncodeWAV_DecodesBack(t *testing.T) {
	m, err := Assemble([]voice.Segment{segment(0, 7, time.Second)})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeWAV(&buf, m))
	assert.Equal(t, 44+len(m.Samples), buf.Len())

	speech, err := voice.DecodeWAV(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, m.Format, speech.Format)
	assert.Equal(t, m.Duration, speech.Duration)
	assert.Equal(t, m.Samples, speech.Samples)
}

func TestBuildTranscript_CoversAllTurns(t *testing.T) {
	turns := []dialogue.Turn{
		{Index: 0, Speaker: "Nexus", Text: "Welcome."},
		{Index: 1, Speaker: "Reco", Text: "ASA fell 84.7%."},
		{Index: 2, Speaker: "Stat", Text: "Check the sample."},
	}
	lines := BuildTranscript(turns)
	require.Len(t, lines, 3)
	assert.Equal(t, "Reco", lines[1].Speaker)
	assert.Equal(t, "Nexus: Welcome.\nReco: ASA fell 84.7%.\nStat: Check the sample.\n", FormatTranscript(lines))
}
