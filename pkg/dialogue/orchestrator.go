package dialogue

import (
	"context"
	"errors"
	"time"

	"github.com/sipeed/picocast/pkg/bus"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/metrics"
	"github.com/sipeed/picocast/pkg/persona"
	"github.com/sipeed/picocast/pkg/utils"
)

const (
	DefaultTurnBudget        = 6
	MinTurnBudget            = 3
	MaxTurnBudget            = 24
	DefaultDurationCap       = 180 * time.Second
	DefaultClosingReserve    = 12 * time.Second
	DefaultWordsPerMinute    = 150
	DefaultCompletionTimeout = 30 * time.Second
	DefaultTitle             = "Metrics Uncovered"
)

// Options configures one episode.
type Options struct {
	Title             string
	TurnBudget        int
	DurationCap       time.Duration
	ClosingReserve    time.Duration
	WordsPerMinute    int
	CompletionTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	switch {
	case o.TurnBudget <= 0:
		o.TurnBudget = DefaultTurnBudget
	case o.TurnBudget < MinTurnBudget:
		o.TurnBudget = MinTurnBudget
	case o.TurnBudget > MaxTurnBudget:
		o.TurnBudget = MaxTurnBudget
	}
	if o.DurationCap <= 0 {
		o.DurationCap = DefaultDurationCap
	}
	if o.ClosingReserve < 0 {
		o.ClosingReserve = 0
	}
	if o.WordsPerMinute <= 0 {
		o.WordsPerMinute = DefaultWordsPerMinute
	}
	if o.CompletionTimeout <= 0 {
		o.CompletionTimeout = DefaultCompletionTimeout
	}
	return o
}

// Orchestrator drives the Init, Introduction, Dialogue, Closing and Done
// phases of one episode. The Orchestrator itself is stateless between
// runs; every Run builds its own ConversationState.
type Orchestrator struct {
	registry  *persona.Registry
	completer Completer
	validator *Validator
	opts      Options
	policy    utils.RetryPolicy
	events    bus.Publisher
	now       func() time.Time
}

func NewOrchestrator(registry *persona.Registry, completer Completer, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	policy := utils.RetryOnce(opts.CompletionTimeout)
	policy.Notify = func(n utils.RetryNotice) {
		logger.WarnCF("dialogue", "Retrying turn with stricter directive", map[string]any{
			"attempt": n.Attempt,
			"error":   n.Err.Error(),
		})
	}
	return &Orchestrator{
		registry:  registry,
		completer: completer,
		validator: NewValidator(registry),
		opts:      opts,
		policy:    policy,
		now:       time.Now,
	}
}

// WithEvents publishes phase changes, turns and fallbacks to p.
func (o *Orchestrator) WithEvents(p bus.Publisher) *Orchestrator {
	o.events = p
	return o
}

func (o *Orchestrator) Options() Options { return o.opts }

// Run produces a full episode transcript. ctx is observed only between
// turns; a call in flight always completes. On cancellation the state
// built so far is returned together with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, facts *metrics.Context) (*ConversationState, error) {
	if facts == nil {
		return nil, errors.New("dialogue: nil metrics context")
	}
	state := newState(facts, o.opts.TurnBudget)
	o.publish(bus.EventPhaseChanged, map[string]any{"phase": PhaseInit.String()})

	logger.InfoCF("dialogue", "Episode started", map[string]any{
		"turn_budget":  o.opts.TurnBudget,
		"duration_cap": o.opts.DurationCap.String(),
		"metrics":      facts.Len(),
	})

	host := o.registry.ForRole(persona.RoleHost)

	if err := ctx.Err(); err != nil {
		return state, err
	}
	o.enter(state, PhaseIntroduction)
	salient := facts.Salient(3)
	o.speak(ctx, state, host, introDirective(host, o.opts.Title, salient), func(error) string {
		return introFallback(host, o.opts.Title, salient)
	})

	o.enter(state, PhaseDialogue)
	speakers := [2]persona.Persona{
		o.registry.ForRole(persona.RoleStrategist),
		o.registry.ForRole(persona.RoleValidator),
	}
	window := o.opts.DurationCap - o.opts.ClosingReserve
	for i := 0; state.Remaining() > 1; i++ {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		if state.Estimated() >= window {
			break
		}

		p := speakers[i%2]
		index := state.Len()
		text, fallback := o.generate(ctx, state, p, dialogueDirective(p, index+1, state.Budget()), func(error) string {
			return p.Fallback(index)
		})
		est := utils.SpeakingDuration(text, o.opts.WordsPerMinute)
		if state.Estimated()+est > window {
			logger.InfoCF("dialogue", "Turn would overrun duration window, moving to closing", map[string]any{
				"speaker":   p.DisplayName,
				"estimated": (state.Estimated() + est).String(),
				"window":    window.String(),
			})
			break
		}
		o.appendTurn(state, p, text, fallback, est)
	}

	if err := ctx.Err(); err != nil {
		return state, err
	}
	o.enter(state, PhaseClosing)
	o.speak(ctx, state, host, closingDirective(host), func(error) string {
		return host.Fallback(0)
	})

	o.enter(state, PhaseDone)
	logger.InfoCF("dialogue", "Episode complete", map[string]any{
		"turns":     state.Len(),
		"estimated": state.Estimated().String(),
	})
	return state, nil
}

// Respond produces a single validated line for p outside of an episode.
func (o *Orchestrator) Respond(ctx context.Context, p persona.Persona, prompt string, facts *metrics.Context) (string, bool) {
	state := newState(facts, 1)
	directive := p.Directive
	if prompt != "" {
		directive += "\n\nThe listener asks: " + prompt
	}
	return o.generate(ctx, state, p, directive, func(error) string { return p.Fallback(0) })
}

func (o *Orchestrator) speak(
	ctx context.Context,
	state *ConversationState,
	p persona.Persona,
	directive string,
	fallback func(error) string,
) {
	text, fb := o.generate(ctx, state, p, directive, fallback)
	o.appendTurn(state, p, text, fb, utils.SpeakingDuration(text, o.opts.WordsPerMinute))
}

// generate runs one completion with a single stricter retry and falls back
// to a canned line. It reports whether the fallback was used.
func (o *Orchestrator) generate(
	ctx context.Context,
	state *ConversationState,
	p persona.Persona,
	directive string,
	fallback func(error) string,
) (string, bool) {
	transcript := state.Turns()
	var lastErr error

	attempt := func(ctx context.Context, n int) (string, error) {
		d := directive
		if n > 0 {
			d = stricter(directive, p, lastErr)
		}
		raw, err := o.completer.Generate(ctx, d, transcript, state.Facts())
		if err != nil {
			lastErr = &CompletionError{Persona: p.ID, Attempt: n + 1, Err: err}
			return "", lastErr
		}
		text := Clean(p, raw)
		if res := o.validator.Validate(p, text); !res.OK {
			lastErr = &ValidationFailure{Persona: p.ID, Reason: res.Reason, Detail: res.Detail}
			return "", lastErr
		}
		return text, nil
	}

	// Completion calls are detached from ctx so cancellation lands between turns.
	text, outcome, _ := utils.AttemptOrFallback(context.WithoutCancel(ctx), o.policy, attempt,
		func(err error) (string, error) {
			return fallback(err), nil
		})

	if outcome.FellBack {
		logger.WarnCF("dialogue", "Using fallback line", map[string]any{
			"persona": p.ID,
			"index":   state.Len(),
			"error":   errString(outcome.LastErr),
		})
		o.publish(bus.EventTurnFallback, map[string]any{
			"index":   state.Len(),
			"speaker": p.DisplayName,
			"error":   errString(outcome.LastErr),
		})
	}
	return text, outcome.FellBack
}

func (o *Orchestrator) appendTurn(state *ConversationState, p persona.Persona, text string, fallback bool, est time.Duration) {
	t := state.append(p, text, fallback, est, o.now())
	logger.DebugCF("dialogue", "Turn appended", map[string]any{
		"index":    t.Index,
		"speaker":  t.Speaker,
		"fallback": t.Fallback,
		"words":    utils.WordCount(t.Text),
	})
	o.publish(bus.EventTurnAppended, map[string]any{
		"index":    t.Index,
		"speaker":  t.Speaker,
		"role":     t.Role.String(),
		"text":     t.Text,
		"fallback": t.Fallback,
	})
}

func (o *Orchestrator) enter(state *ConversationState, phase Phase) {
	state.phase = phase
	o.publish(bus.EventPhaseChanged, map[string]any{"phase": phase.String()})
}

func (o *Orchestrator) publish(kind bus.EventKind, data map[string]any) {
	if o.events == nil {
		return
	}
	o.events.Publish(bus.Event{Kind: kind, Time: o.now(), Data: data})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
