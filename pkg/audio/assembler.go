// Package audio joins per-turn speech into a single master track and
// renders the matching transcript.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sipeed/picocast/pkg/voice"
)

var ErrFormatMismatch = errors.New("audio: segment formats differ")

// Master is the concatenated episode audio.
type Master struct {
	Samples  []byte
	Format   voice.Format
	Duration time.Duration
}

// Assemble appends segments back to back in the order given. Callers pass
// segments already sorted by turn index. An empty input yields an empty
// master in the default format.
func Assemble(segments []voice.Segment) (*Master, error) {
	if len(segments) == 0 {
		return &Master{Format: voice.DefaultFormat}, nil
	}

	format := segments[0].Format
	size := 0
	for i, seg := range segments {
		if seg.Format != format {
			return nil, fmt.Errorf("%w: turn %d is %s, expected %s", ErrFormatMismatch, seg.TurnIndex, seg.Format, format)
		}
		if i > 0 && seg.TurnIndex <= segments[i-1].TurnIndex {
			return nil, fmt.Errorf("audio: segment for turn %d out of order", seg.TurnIndex)
		}
		size += len(seg.Samples)
	}

	samples := make([]byte, 0, size)
	for _, seg := range segments {
		samples = append(samples, seg.Samples...)
	}
	return &Master{
		Samples:  samples,
		Format:   format,
		Duration: format.DurationOf(len(samples)),
	}, nil
}

// EncodeWAV writes m as a canonical 44-byte-header PCM WAV file.
func EncodeWAV(w io.Writer, m *Master) error {
	f := m.Format
	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(m.Samples)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(f.BytesPerSecond()))
	binary.LittleEndian.PutUint16(header[32:34], uint16(f.BlockAlign()))
	binary.LittleEndian.PutUint16(header[34:36], uint16(f.BitsPerSample))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(m.Samples)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(m.Samples)
	return err
}
