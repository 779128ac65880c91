package audio

import (
	"strings"

	"github.com/sipeed/picocast/pkg/dialogue"
)

// Line is one transcript entry.
type Line struct {
	Index   int    `json:"index"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// BuildTranscript covers every turn, whether or not it was synthesized.
func BuildTranscript(turns []dialogue.Turn) []Line {
	lines := make([]Line, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, Line{Index: t.Index, Speaker: t.Speaker, Text: t.Text})
	}
	return lines
}

func FormatTranscript(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.Speaker)
		b.WriteString(": ")
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
