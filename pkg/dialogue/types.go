package dialogue

import (
	"fmt"
	"time"

	"github.com/sipeed/picocast/pkg/metrics"
	"github.com/sipeed/picocast/pkg/persona"
)

// Phase is a state of the episode state machine.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseIntroduction
	PhaseDialogue
	PhaseClosing
	PhaseDone
)

var phaseNames = [...]string{"init", "introduction", "dialogue", "closing", "done"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Turn is one spoken line. Turns are never edited after they are appended.
type Turn struct {
	Index     int          `json:"index"`
	Role      persona.Role `json:"role"`
	Speaker   string       `json:"speaker"`
	Text      string       `json:"text"`
	Timestamp time.Time    `json:"timestamp"`
	Phase     Phase        `json:"phase"`
	Fallback  bool         `json:"fallback,omitempty"`
}

// ConversationState is the append-only log of an episode. Only the
// orchestrator that created it advances it.
type ConversationState struct {
	turns     []Turn
	budget    int
	estimated time.Duration
	facts     *metrics.Context
	phase     Phase
}

func newState(facts *metrics.Context, budget int) *ConversationState {
	return &ConversationState{
		turns:  make([]Turn, 0, budget),
		budget: budget,
		facts:  facts,
		phase:  PhaseInit,
	}
}

// Turns returns a copy of the transcript so far.
func (s *ConversationState) Turns() []Turn {
	return append([]Turn(nil), s.turns...)
}

func (s *ConversationState) Len() int { return len(s.turns) }

func (s *ConversationState) Budget() int { return s.budget }

// Remaining is the number of turns still allowed, closing included.
func (s *ConversationState) Remaining() int {
	if r := s.budget - len(s.turns); r > 0 {
		return r
	}
	return 0
}

// Estimated is the cumulative estimated speaking time of all turns.
func (s *ConversationState) Estimated() time.Duration { return s.estimated }

func (s *ConversationState) Phase() Phase { return s.phase }

func (s *ConversationState) Facts() *metrics.Context { return s.facts }

// Last returns the most recent turn.
func (s *ConversationState) Last() (Turn, bool) {
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

func (s *ConversationState) append(p persona.Persona, text string, fallback bool, est time.Duration, now time.Time) Turn {
	t := Turn{
		Index:     len(s.turns),
		Role:      p.Role,
		Speaker:   p.DisplayName,
		Text:      text,
		Timestamp: now,
		Phase:     s.phase,
		Fallback:  fallback,
	}
	s.turns = append(s.turns, t)
	s.estimated += est
	return t
}
