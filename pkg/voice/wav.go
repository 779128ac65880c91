package voice

import (
	"encoding/binary"
	"fmt"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// DecodeWAV extracts PCM samples from a RIFF/WAVE stream. Streams written
// with an unknown data length (0xFFFFFFFF) are read to the end.
func DecodeWAV(data []byte) (*Speech, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var format Format
	haveFmt := false
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if size < 0 || end > len(data) || end < body {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			tag := binary.LittleEndian.Uint16(data[body : body+2])
			if tag != wavFormatPCM && tag != wavFormatExtensible {
				return nil, fmt.Errorf("%w: unsupported encoding %d", ErrNotWAV, tag)
			}
			format = Format{
				Channels:      int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				SampleRate:    int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}
			if format.BitsPerSample != 16 || format.Channels <= 0 || format.SampleRate <= 0 {
				return nil, fmt.Errorf("%w: unsupported format %s", ErrNotWAV, format)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			pcm := data[body:end]
			pcm = pcm[:len(pcm)-len(pcm)%format.BlockAlign()]
			return NewSpeech(append([]byte(nil), pcm...), format), nil
		}

		pos = end
		if size%2 == 1 {
			pos++
		}
	}
	return nil, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}
