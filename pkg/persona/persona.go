// PicoCast - Multi-voice metrics podcast generator
// License: MIT
//
// Copyright (c) 2026 PicoCast contributors

// Package persona defines the three fixed speaking roles of an episode.
package persona

import (
	"fmt"
	"strings"

	"github.com/sipeed/picocast/pkg/utils"
)

// Role is the closed set of speaking roles.
type Role int

const (
	RoleHost Role = iota
	RoleStrategist
	RoleValidator
)

var roleIDs = map[Role]string{
	RoleHost:       "host",
	RoleStrategist: "strategist",
	RoleValidator:  "validator",
}

func (r Role) String() string {
	if id, ok := roleIDs[r]; ok {
		return id
	}
	return fmt.Sprintf("role(%d)", int(r))
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Tone is the base speaking style of a persona when no stronger
// annotation rule applies.
type Tone struct {
	Label string // neutral, authoritative, measured
	Style string // express-as style
	Pitch string
	Rate  string
	// Instructions is the plain-language form for engines without markup.
	Instructions string
}

// Persona is immutable once the registry is built. Slices handed out by
// the registry are copies.
type Persona struct {
	Role             Role
	ID               string
	DisplayName      string
	Directive        string
	MaxWords         int
	Tone             Tone
	FallbackLines    []string
	ForbiddenOpeners []string
}

// Fallback returns the canned line for the n-th fallback of this persona.
// The choice is deterministic so replays produce the same transcript.
func (p Persona) Fallback(n int) string {
	if len(p.FallbackLines) == 0 {
		return "Let's keep going."
	}
	if n < 0 {
		n = -n
	}
	return p.FallbackLines[n%len(p.FallbackLines)]
}

func (p Persona) clone() Persona {
	p.FallbackLines = append([]string(nil), p.FallbackLines...)
	p.ForbiddenOpeners = append([]string(nil), p.ForbiddenOpeners...)
	return p
}

// DisplayNames are the spoken names of the personas.
type DisplayNames struct {
	Host       string
	Strategist string
	Validator  string
}

func DefaultDisplayNames() DisplayNames {
	return DisplayNames{Host: "Nexus", Strategist: "Reco", Validator: "Stat"}
}

// Word limits per turn. DefaultMaxWords is also the ceiling; MinMaxWords
// keeps the canned fallback lines speakable.
const (
	DefaultMaxWords = 50
	MinMaxWords     = 25
)

// ClampMaxWords maps a configured limit into [MinMaxWords, DefaultMaxWords].
// Non-positive values select the default.
func ClampMaxWords(n int) int {
	switch {
	case n <= 0:
		return DefaultMaxWords
	case n < MinMaxWords:
		return MinMaxWords
	case n > DefaultMaxWords:
		return DefaultMaxWords
	}
	return n
}

func build(names DisplayNames, maxWords int) [3]Persona {
	host := Persona{
		Role:        RoleHost,
		ID:          RoleHost.String(),
		DisplayName: names.Host,
		MaxWords:    maxWords,
		Directive: fmt.Sprintf(
			"You are %s, the warm and concise host of a metrics podcast. "+
				"You welcome listeners, frame why today's numbers matter, and close the episode cleanly. "+
				"Speak in one or two plain sentences with no lists, markdown or stage directions. "+
				"Never speak for %s or %s.",
			names.Host, names.Strategist, names.Validator),
		Tone: Tone{
			Label: "neutral", Style: "friendly", Pitch: "+1%", Rate: "-2%",
			Instructions: "Warm, even and neutral broadcast host.",
		},
		FallbackLines: []string{
			fmt.Sprintf("That wraps up today's look at the numbers. Thanks to %s and %s for a sharp discussion, and thank you for listening.", names.Strategist, names.Validator),
			"That's all for this episode. Stay curious, stay data-driven, and we'll see you next time.",
		},
	}

	strategist := Persona{
		Role:        RoleStrategist,
		ID:          RoleStrategist.String(),
		DisplayName: names.Strategist,
		MaxWords:    maxWords,
		Directive: fmt.Sprintf(
			"You are %s, a senior metrics strategist. You recommend which metrics to watch and what operational action to take. "+
				"Respond directly to %s's last point, then give one concrete recommendation such as a rolling average, control chart or cohort split. "+
				"Use numbers from the fact sheet when helpful and never invent values. "+
				"Reply with one complete plain-text sentence of fifteen to thirty words.",
			names.Strategist, names.Validator),
		Tone: Tone{
			Label: "authoritative", Style: "calm", Pitch: "+2%", Rate: "-3%",
			Instructions: "Calm, confident and authoritative consultant.",
		},
		FallbackLines: []string{
			"That's a fair point, so let's validate the baseline first and then set a modest improvement target we can actually track.",
			"Agreed, the safest next step is a three-month rolling average so we separate real shifts from noise.",
			"Let's pilot the change on one queue first and compare it against a control group before scaling.",
		},
		ForbiddenOpeners: []string{
			"absolutely", "well", "look", "sure", "okay", "so", "listen", "hey",
			"you know", "hold on", "right", "great point",
		},
	}

	validator := Persona{
		Role:        RoleValidator,
		ID:          RoleValidator.String(),
		DisplayName: names.Validator,
		MaxWords:    maxWords,
		Directive: fmt.Sprintf(
			"You are %s, a senior data and statistical integrity expert. You test assumptions and protect against bad reads of the data. "+
				"Respond explicitly to %s's last point by agreeing, qualifying or refuting it, and add one concrete check, statistic or risk. "+
				"Use numbers from the fact sheet when helpful and never invent values. "+
				"Reply with one complete plain-text sentence of fifteen to thirty words.",
			names.Validator, names.Strategist),
		Tone: Tone{
			Label: "measured", Style: "serious", Pitch: "-1%", Rate: "-4%",
			Instructions: "Measured, precise and slightly skeptical analyst.",
		},
		FallbackLines: []string{
			"Before we commit, I'd confirm the data is complete and consistent across sources, then revisit the target.",
			"The safer read is that variance dominates here, so a control chart should come before any new target.",
			"I'd check for seasonality and logging changes first, since either could explain a swing this size.",
		},
		ForbiddenOpeners: []string{
			"hold on", "actually", "well", "look", "so", "right", "okay",
			"absolutely", "you know", "listen", "wait",
		},
	}

	return [3]Persona{host, strategist, validator}
}

// Registry is a static lookup from role id to persona.
type Registry struct {
	ordered [3]Persona
	byID    map[string]int
}

// NewRegistry builds the three personas. Blank display names fall back to
// defaults and the word limit is clamped with ClampMaxWords. Fallback lines
// that long display names push past the limit are dropped.
func NewRegistry(names DisplayNames, maxWords int) *Registry {
	d := DefaultDisplayNames()
	if strings.TrimSpace(names.Host) == "" {
		names.Host = d.Host
	}
	if strings.TrimSpace(names.Strategist) == "" {
		names.Strategist = d.Strategist
	}
	if strings.TrimSpace(names.Validator) == "" {
		names.Validator = d.Validator
	}
	maxWords = ClampMaxWords(maxWords)

	r := &Registry{ordered: build(names, maxWords), byID: make(map[string]int, 3)}
	for i, p := range r.ordered {
		r.ordered[i].FallbackLines = withinLimit(p.FallbackLines, maxWords)
		r.byID[p.ID] = i
	}
	return r
}

func withinLimit(lines []string, maxWords int) []string {
	out := lines[:0:0]
	for _, l := range lines {
		if utils.WordCount(l) <= maxWords {
			out = append(out, l)
		}
	}
	return out
}

// PersonaFor resolves a role id ("host", "strategist", "validator").
// Display names are accepted too, case-insensitively.
func (r *Registry) PersonaFor(id string) (Persona, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	if i, ok := r.byID[key]; ok {
		return r.ordered[i].clone(), nil
	}
	for _, p := range r.ordered {
		if strings.EqualFold(p.DisplayName, key) {
			return p.clone(), nil
		}
	}
	return Persona{}, &UnknownRoleError{ID: id}
}

// ForRole returns the persona of a known role.
func (r *Registry) ForRole(role Role) Persona {
	return r.ordered[role].clone()
}

func (r *Registry) All() []Persona {
	out := make([]Persona, 0, len(r.ordered))
	for _, p := range r.ordered {
		out = append(out, p.clone())
	}
	return out
}

// Others returns every persona except role.
func (r *Registry) Others(role Role) []Persona {
	var out []Persona
	for _, p := range r.ordered {
		if p.Role != role {
			out = append(out, p.clone())
		}
	}
	return out
}

// UnknownRoleError is returned for ids that are not registered.
type UnknownRoleError struct {
	ID string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown persona role %q", e.ID)
}
