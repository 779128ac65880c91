package dialogue

import (
	"fmt"
	"strings"

	"github.com/sipeed/picocast/pkg/metrics"
	"github.com/sipeed/picocast/pkg/persona"
	"github.com/sipeed/picocast/pkg/utils"
)

func introDirective(host persona.Persona, title string, salient []metrics.Metric) string {
	var b strings.Builder
	b.WriteString(host.Directive)
	fmt.Fprintf(&b, "\n\nOpen the episode %q. Welcome the listeners and introduce today's headline numbers: ", title)
	b.WriteString(describeAll(salient))
	b.WriteString(". Use at most two sentences.")
	return b.String()
}

func dialogueDirective(p persona.Persona, turnNumber, budget int) string {
	return fmt.Sprintf("%s\n\nThis is turn %d of %d. Keep it under %d words.",
		p.Directive, turnNumber, budget, p.MaxWords)
}

func closingDirective(host persona.Persona) string {
	return host.Directive +
		"\n\nClose the episode now: summarize the single most important takeaway from the discussion " +
		"and thank the listeners, in at most two sentences."
}

// stricter tightens a directive after a rejected attempt.
func stricter(directive string, p persona.Persona, lastErr error) string {
	reason := "it did not follow the rules"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	return fmt.Sprintf(
		"%s\n\nYour previous reply was rejected because %s. Reply with one plain sentence of at most %d words, "+
			"speaking only as %s, with no speaker labels, placeholders, links, markdown or filler openers.",
		directive, reason, p.MaxWords, p.DisplayName)
}

// introFallback is a deterministic host opening built from the facts alone.
// Salient metrics are dropped from the tail until the line fits the host's
// word limit.
func introFallback(host persona.Persona, title string, salient []metrics.Metric) string {
	for n := len(salient); n >= 0; n-- {
		line := fmt.Sprintf("Welcome to %s. I'm %s, and today we're digging into %s.",
			title, host.DisplayName, describeAll(salient[:n]))
		if fits(host, line) {
			return line
		}
	}
	line := fmt.Sprintf("Welcome back. I'm %s, and today we're digging into the latest numbers.", host.DisplayName)
	if fits(host, line) {
		return line
	}
	return "Welcome back to the show."
}

func fits(p persona.Persona, line string) bool {
	return p.MaxWords <= 0 || utils.WordCount(line) <= p.MaxWords
}

func describeAll(ms []metrics.Metric) string {
	if len(ms) == 0 {
		return "the latest numbers"
	}
	parts := make([]string, 0, len(ms))
	for _, m := range ms {
		parts = append(parts, metrics.Describe(m))
	}
	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], "; ") + "; and " + parts[len(parts)-1]
	}
}
