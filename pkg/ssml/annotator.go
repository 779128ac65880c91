// Package ssml turns dialogue turns into speech markup for neural voices.
package ssml

import (
	"encoding/xml"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/sipeed/picocast/pkg/dialogue"
	"github.com/sipeed/picocast/pkg/persona"
	"github.com/sipeed/picocast/pkg/utils"
)

const (
	DefaultWordsPerMinute = 150
	DefaultLanguage       = "en-US"

	commaBreak     = `<break time="220ms"/>`
	semicolonBreak = `<break time="260ms"/>`
	finalBreak     = `<break time="320ms"/>`

	excitedOpen  = `<mstts:express-as style="excited"><prosody pitch="+8%">`
	excitedClose = `</prosody></mstts:express-as>`
	risingOpen   = `<prosody contour="(0%,+0%) (80%,+5%) (100%,+20%)">`
	risingClose  = `</prosody>`
)

var (
	numericToken = regexp.MustCompile(`^[-+−]?\$?\d[\d,]*(?:\.\d+)?%?$`)
	markupTag    = regexp.MustCompile(`<[^>]*>`)
	spaceRun     = regexp.MustCompile(`\s+`)
)

// AnnotatedTurn is a turn ready for synthesis.
type AnnotatedTurn struct {
	Turn   dialogue.Turn
	Markup string
	// Plain is the unannotated text, used when markup is rejected.
	Plain        string
	Voice        string
	Instructions string
	Estimated    time.Duration
}

type Options struct {
	// Lexicon lists words that make a sentence sound excited. Matching is
	// case-insensitive on whole words.
	Lexicon        []string
	WordsPerMinute int
	Language       string
}

// Annotator is read-only after construction and safe for concurrent use.
type Annotator struct {
	registry *persona.Registry
	voices   map[persona.Role]string
	trigger  *regexp.Regexp
	wpm      int
	lang     string
}

func NewAnnotator(registry *persona.Registry, voices map[persona.Role]string, opts Options) *Annotator {
	a := &Annotator{
		registry: registry,
		voices:   make(map[persona.Role]string, len(voices)),
		wpm:      opts.WordsPerMinute,
		lang:     opts.Language,
	}
	for role, v := range voices {
		a.voices[role] = v
	}
	if a.wpm <= 0 {
		a.wpm = DefaultWordsPerMinute
	}
	if a.lang == "" {
		a.lang = DefaultLanguage
	}

	words := make([]string, 0, len(opts.Lexicon))
	for _, w := range opts.Lexicon {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, regexp.QuoteMeta(strings.ToLower(w)))
		}
	}
	if len(words) > 0 {
		a.trigger = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
	}
	return a
}

// EstimateDuration is the expected speaking time of text at wpm.
func EstimateDuration(text string, wpm int) time.Duration {
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	return utils.SpeakingDuration(text, wpm)
}

func (a *Annotator) Annotate(turn dialogue.Turn) AnnotatedTurn {
	p := a.registry.ForRole(turn.Role)
	voice := a.voices[turn.Role]
	return AnnotatedTurn{
		Turn:         turn,
		Markup:       a.document(voice, a.body(p, turn.Text)),
		Plain:        turn.Text,
		Voice:        voice,
		Instructions: p.Tone.Instructions,
		Estimated:    EstimateDuration(turn.Text, a.wpm),
	}
}

func (a *Annotator) AnnotateAll(turns []dialogue.Turn) []AnnotatedTurn {
	out := make([]AnnotatedTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, a.Annotate(t))
	}
	return out
}

func (a *Annotator) document(voice, body string) string {
	return fmt.Sprintf(
		`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" `+
			`xmlns:mstts="http://www.w3.org/2001/mstts" xml:lang="%s"><voice name="%s">%s</voice></speak>`,
		escape(a.lang), escape(voice), body)
}

// body annotates each sentence. Runs of sentences with no trigger and no
// question share one base tone span.
func (a *Annotator) body(p persona.Persona, text string) string {
	var b strings.Builder
	var plain []string

	flush := func() {
		if len(plain) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, `<mstts:express-as style="%s"><prosody rate="%s" pitch="%s">%s</prosody></mstts:express-as>`,
			escape(p.Tone.Style), escape(p.Tone.Rate), escape(p.Tone.Pitch), strings.Join(plain, " "))
		plain = plain[:0]
	}

	for _, sentence := range splitSentences(text) {
		inner := annotateTokens(sentence)
		excited := a.trigger != nil && a.trigger.MatchString(sentence)
		question := isQuestion(sentence)

		if !excited && !question {
			plain = append(plain, inner)
			continue
		}
		flush()
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		if question {
			inner = risingOpen + inner + risingClose
		}
		if excited {
			inner = excitedOpen + inner + excitedClose
		}
		b.WriteString(inner)
	}
	flush()
	b.WriteString(finalBreak)
	return b.String()
}

func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			j := i + 1
			for j < len(text) && strings.IndexByte(`"')`, text[j]) >= 0 {
				j++
			}
			if j == len(text) || text[j] == ' ' || text[j] == '\n' || text[j] == '\t' {
				if s := strings.TrimSpace(text[start:j]); s != "" {
					out = append(out, s)
				}
				start = j
				i = j - 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func isQuestion(sentence string) bool {
	return strings.HasSuffix(strings.TrimRight(sentence, `"')`), "?")
}

// annotateTokens emphasizes numbers and inserts clause pauses. The result
// is escaped XML.
func annotateTokens(sentence string) string {
	fields := strings.Fields(sentence)
	for i, tok := range fields {
		lead, core, trail := splitToken(tok)

		var b strings.Builder
		b.WriteString(escape(lead))
		if numericToken.MatchString(core) {
			b.WriteString(`<emphasis level="moderate">`)
			b.WriteString(escape(core))
			b.WriteString(`</emphasis>`)
		} else {
			b.WriteString(escape(core))
		}
		b.WriteString(escape(trail))

		switch {
		case i == len(fields)-1:
		case strings.HasSuffix(trail, ","):
			b.WriteString(commaBreak)
		case strings.HasSuffix(trail, ";"):
			b.WriteString(semicolonBreak)
		case trail == "" && (strings.EqualFold(core, "however") || strings.EqualFold(core, "but")):
			b.WriteString(commaBreak)
		}
		fields[i] = b.String()
	}
	return strings.Join(fields, " ")
}

func splitToken(tok string) (lead, core, trail string) {
	start := 0
	for start < len(tok) && strings.IndexByte(`("'[`, tok[start]) >= 0 {
		start++
	}
	end := len(tok)
	for end > start && strings.IndexByte(`,;:.!?)"']`, tok[end-1]) >= 0 {
		end--
	}
	return tok[:start], tok[start:end], tok[end:]
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// StripMarkup recovers the spoken text from a markup document.
func StripMarkup(markup string) string {
	s := markupTag.ReplaceAllString(markup, " ")
	s = html.UnescapeString(s)
	s = spaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	// Tags removed before punctuation leave a stray space behind.
	for _, p := range []string{" ,", " ;", " :", " .", " ?", " !", " )"} {
		s = strings.ReplaceAll(s, p, p[1:])
	}
	s = strings.ReplaceAll(s, "( ", "(")
	return s
}
