package voice

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeWAV(f Format, pcm []byte, dataSize uint32) []byte {
	buf := make([]byte, 44, 44+len(pcm))
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+len(pcm)))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[22:], uint16(f.Channels))
	binary.LittleEndian.PutUint32(buf[24:], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:], uint32(f.BytesPerSecond()))
	binary.LittleEndian.PutUint16(buf[32:], uint16(f.BlockAlign()))
	binary.LittleEndian.PutUint16(buf[34:], uint16(f.BitsPerSample))
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], dataSize)
	return append(buf, pcm...)
}

func TestDecodeWAV(t *testing.T) {
	pcm := make([]byte, 48000) // one second at 24 kHz mono 16-bit
	pcm[0], pcm[1] = 0x34, 0x12

	speech, err := DecodeWAV(makeWAV(DefaultFormat, pcm, uint32(len(pcm))))
	require.NoError(t, err)
	assert.Equal(t, DefaultFormat, speech.Format)
	assert.Equal(t, time.Second, speech.Duration)
	assert.Equal(t, pcm, speech.Samples)
}

func TestDecodeWAV_StreamedLength(t *testing.T) {
	pcm := make([]byte, 24001) // odd trailing byte is dropped
	speech, err := DecodeWAV(makeWAV(DefaultFormat, pcm, 0xFFFFFFFF))
	require.NoError(t, err)
	assert.Len(t, speech.Samples, 24000)
	assert.Equal(t, 500*time.Millisecond, speech.Duration)
}

func TestDecodeWAV_Rejects(t *testing.T) {
	_, err := DecodeWAV([]byte("ID3 not a wav file at all"))
	assert.ErrorIs(t, err, ErrNotWAV)

	eight := Format{SampleRate: 8000, Channels: 1, BitsPerSample: 8}
	_, err = DecodeWAV(makeWAV(eight, make([]byte, 10), 10))
	assert.True(t, errors.Is(err, ErrNotWAV))

	noData := makeWAV(DefaultFormat, nil, 0)[:36]
	_, err = DecodeWAV(noData)
	assert.ErrorIs(t, err, ErrNotWAV)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, 2, DefaultFormat.BlockAlign())
	assert.Equal(t, 48000, DefaultFormat.BytesPerSecond())
	assert.Equal(t, 2*time.Second, DefaultFormat.DurationOf(96000))
	assert.Equal(t, "24000Hz/16bit/1ch", DefaultFormat.String())
	assert.Zero(t, Format{}.DurationOf(10))
}
