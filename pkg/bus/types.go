package bus

import "time"

type EventKind string

const (
	EventSessionStarted   EventKind = "session.started"
	EventSessionFinished  EventKind = "session.finished"
	EventPhaseChanged     EventKind = "dialogue.phase"
	EventTurnAppended     EventKind = "dialogue.turn"
	EventTurnFallback     EventKind = "dialogue.fallback"
	EventSynthesisSegment EventKind = "synthesis.segment"
	EventSynthesisGap     EventKind = "synthesis.gap"
	EventSynthesisCapped  EventKind = "synthesis.capped"
)

// Event is a progress notification from a running session.
type Event struct {
	Kind      EventKind      `json:"kind"`
	SessionID string         `json:"session_id,omitempty"`
	Time      time.Time      `json:"time"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publisher is the narrow interface session components emit through.
type Publisher interface {
	Publish(Event)
}
