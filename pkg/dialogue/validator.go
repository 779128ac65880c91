package dialogue

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sipeed/picocast/pkg/persona"
	"github.com/sipeed/picocast/pkg/utils"
)

type Reason string

const (
	ReasonNone          Reason = ""
	ReasonTooLong       Reason = "too_long"
	ReasonEmpty         Reason = "empty"
	ReasonImpersonation Reason = "impersonation"
	ReasonPlaceholder   Reason = "placeholder"
	ReasonMalformed     Reason = "malformed"
)

// minLineLength is the shortest candidate, in runes, worth speaking.
const minLineLength = 8

// Result is the verdict on one candidate line.
type Result struct {
	OK     bool
	Reason Reason
	Detail string
}

// Err returns nil for an accepted line and a *ValidationFailure otherwise.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return &ValidationFailure{Reason: r.Reason, Detail: r.Detail}
}

var (
	placeholderPattern = regexp.MustCompile(
		`\{\{[^}]*\}\}|\$\{[^}]*\}|\{[A-Za-z_][A-Za-z0-9_ .-]*\}|\[[A-Z][A-Z0-9_]*\]|<[A-Za-z_][A-Za-z0-9_ -]*>`)
	urlPattern = regexp.MustCompile(`(?i)\bhttps?://|\bwww\.[a-z0-9-]+\.`)
)

// Validator checks candidate lines against persona rules. It holds only
// compiled patterns and is safe for concurrent use.
type Validator struct {
	labels      map[persona.Role]*regexp.Regexp
	selfClaims  map[persona.Role]*regexp.Regexp
	checkSanity bool
}

func NewValidator(registry *persona.Registry) *Validator {
	v := &Validator{
		labels:      make(map[persona.Role]*regexp.Regexp),
		selfClaims:  make(map[persona.Role]*regexp.Regexp),
		checkSanity: true,
	}
	for _, p := range registry.All() {
		name := regexp.QuoteMeta(p.DisplayName)
		v.labels[p.Role] = regexp.MustCompile(`(?i)^[\s*_"']*` + name + `[\s*_"']*:`)
		v.selfClaims[p.Role] = regexp.MustCompile(`(?i)\b(?:i['’]m|i am|this is)\s+` + name + `\b`)
	}
	return v
}

// Validate runs the checks in order: length, attribution, placeholders,
// then sanity. It never modifies text.
func (v *Validator) Validate(p persona.Persona, text string) Result {
	if n := utils.WordCount(text); p.MaxWords > 0 && n > p.MaxWords {
		return Result{Reason: ReasonTooLong, Detail: fmt.Sprintf("%d words, limit %d", n, p.MaxWords)}
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Reason: ReasonEmpty}
	}
	for role, re := range v.labels {
		if role == p.Role {
			continue
		}
		if re.MatchString(trimmed) {
			return Result{Reason: ReasonImpersonation, Detail: "speaker label of another persona"}
		}
		if m := v.selfClaims[role].FindString(trimmed); m != "" {
			return Result{Reason: ReasonImpersonation, Detail: m}
		}
	}

	if m := placeholderPattern.FindString(trimmed); m != "" {
		return Result{Reason: ReasonPlaceholder, Detail: m}
	}

	if v.checkSanity {
		if utf8.RuneCountInString(trimmed) < minLineLength {
			return Result{Reason: ReasonMalformed, Detail: "too short"}
		}
		if isShouting(trimmed) {
			return Result{Reason: ReasonMalformed, Detail: "all caps"}
		}
		if m := urlPattern.FindString(trimmed); m != "" {
			return Result{Reason: ReasonMalformed, Detail: "contains a link"}
		}
	}

	return Result{OK: true}
}

func isShouting(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 4
}
