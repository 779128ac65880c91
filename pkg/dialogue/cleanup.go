package dialogue

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sipeed/picocast/pkg/persona"
	"github.com/sipeed/picocast/pkg/utils"
)

var (
	markdownEmphasis = regexp.MustCompile("\\*+|__|`+|~~")
	markdownLineHead = regexp.MustCompile(`(?m)^\s*(?:#{1,6}\s+|[-*+]\s+|>\s*|\d{1,2}[.)]\s+)`)
	markdownLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	stageDirection   = regexp.MustCompile(`(?i)[(*\[][^)*\]]*\b(?:laughs|chuckles|pauses|sighs|smiles)\b[^)*\]]*[)*\]]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// Clean normalizes a raw completion into a speakable line for p: markdown
// is removed, a leading label naming p is dropped, forbidden filler openers
// are stripped and a terminal period is ensured.
func Clean(p persona.Persona, raw string) string {
	s := markdownLink.ReplaceAllString(raw, "$1")
	s = stageDirection.ReplaceAllString(s, "")
	s = markdownLineHead.ReplaceAllString(s, "")
	s = markdownEmphasis.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = trimQuotes(s)

	s = stripOwnLabel(s, p)
	s = stripOpeners(s, p.ForbiddenOpeners)
	return utils.EnsureTerminalPunctuation(s)
}

func trimQuotes(s string) string {
	for len(s) >= 2 {
		first, _ := utf8.DecodeRuneInString(s)
		last, _ := utf8.DecodeLastRuneInString(s)
		if !(first == '"' && last == '"') && !(first == '“' && last == '”') {
			break
		}
		s = strings.TrimSpace(s[utf8.RuneLen(first) : len(s)-utf8.RuneLen(last)])
	}
	return s
}

func stripOwnLabel(s string, p persona.Persona) string {
	for _, name := range []string{p.DisplayName, p.ID} {
		if name == "" || len(s) <= len(name) {
			continue
		}
		if strings.EqualFold(s[:len(name)], name) {
			rest := strings.TrimLeft(s[len(name):], " ")
			if strings.HasPrefix(rest, ":") {
				return strings.TrimSpace(rest[1:])
			}
		}
	}
	return s
}

// hyphenated reports whether rest continues a compound word such as
// "Well-known" or "Right-sizing".
func hyphenated(rest string) bool {
	if !strings.HasPrefix(rest, "-") {
		return false
	}
	r, _ := utf8.DecodeRuneInString(rest[1:])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func stripOpeners(s string, openers []string) string {
	for changed := true; changed; {
		changed = false
		lower := strings.ToLower(s)
		for _, op := range openers {
			if !strings.HasPrefix(lower, op) {
				continue
			}
			rest := s[len(op):]
			if r, _ := utf8.DecodeRuneInString(rest); rest != "" && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				continue
			}
			if hyphenated(rest) {
				continue
			}
			rest = strings.TrimLeftFunc(rest, func(r rune) bool {
				return unicode.IsSpace(r) || r == ',' || r == '!' || r == '.' || r == '-' || r == '—' || r == '…'
			})
			if rest == "" {
				continue
			}
			s = capitalize(rest)
			changed = true
			break
		}
	}
	return s
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
