package voice

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sipeed/picocast/pkg/bus"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/ratelimit"
	"github.com/sipeed/picocast/pkg/ssml"
	"github.com/sipeed/picocast/pkg/utils"
)

const (
	DefaultSynthesisTimeout = 60 * time.Second
	DefaultEstimateSlack    = 15 * time.Second
)

// Segment is the audio of one turn.
type Segment struct {
	TurnIndex int           `json:"turn_index"`
	Voice     string        `json:"voice"`
	Samples   []byte        `json:"-"`
	Format    Format        `json:"format"`
	Duration  time.Duration `json:"duration"`
	// Plain is set when the segment came from the plain-text retry.
	Plain bool `json:"plain,omitempty"`
}

// Gap is a turn whose audio could not be produced.
type Gap struct {
	TurnIndex int    `json:"turn_index"`
	Error     string `json:"error"`
	Err       error  `json:"-"`
}

// Report is the outcome of one pipeline run. Segments are in turn order.
type Report struct {
	Segments         []Segment     `json:"segments"`
	Gaps             []Gap         `json:"gaps,omitempty"`
	Skipped          []int         `json:"skipped,omitempty"`
	Total            time.Duration `json:"total"`
	CoverageMismatch bool          `json:"coverage_mismatch"`
}

type PipelineOptions struct {
	// Concurrency bounds in-flight synthesis calls. Zero means 1.
	Concurrency int
	Limiter     *ratelimit.Limiter
	Timeout     time.Duration
	// EstimateSlack lets turns whose estimate lands slightly past the cap
	// still be attempted, since estimates are rough.
	EstimateSlack time.Duration
}

// Pipeline synthesizes annotated turns. A Pipeline holds no per-run
// state and can serve concurrent sessions.
type Pipeline struct {
	synth  Synthesizer
	opts   PipelineOptions
	policy utils.RetryPolicy
	events bus.Publisher
}

func NewPipeline(synth Synthesizer, opts PipelineOptions) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSynthesisTimeout
	}
	if opts.EstimateSlack < 0 {
		opts.EstimateSlack = 0
	}
	policy := utils.RetryOnce(opts.Timeout)
	policy.Notify = func(n utils.RetryNotice) {
		logger.WarnCF("voice", "Retrying synthesis with plain text", map[string]any{
			"error": n.Err.Error(),
		})
	}
	return &Pipeline{synth: synth, opts: opts, policy: policy}
}

func (p *Pipeline) WithEvents(pub bus.Publisher) *Pipeline {
	p.events = pub
	return p
}

type result struct {
	seg Segment
	err error
}

// Run synthesizes turns and returns the segments that fit within limit,
// in turn order. Calls may complete out of order; results are consumed
// strictly by index. A segment that would push the synthesized total past
// limit stops the run: it and every later turn are reported as skipped.
// A per-turn failure is retried once as plain text and then recorded as a
// gap. Run only returns an error when ctx is cancelled; audio finished
// before the cancellation is kept.
func (p *Pipeline) Run(ctx context.Context, turns []ssml.AnnotatedTurn, limit time.Duration) (*Report, error) {
	report := &Report{}
	dispatch := p.admit(turns, limit)
	for _, t := range turns[len(dispatch):] {
		report.Skipped = append(report.Skipped, t.Turn.Index)
	}
	if len(report.Skipped) > 0 {
		logger.InfoCF("voice", "Turns beyond the duration cap will not be synthesized", map[string]any{
			"skipped": len(report.Skipped),
		})
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]chan result, len(dispatch))
	for i := range results {
		results[i] = make(chan result, 1)
	}

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for i, t := range dispatch {
			if err := runCtx.Err(); err != nil {
				results[i] <- result{err: err}
				continue
			}
			g.Go(func() error {
				results[i] <- p.synthesize(runCtx, t)
				return nil
			})
		}
	}()

	var runErr error
	capped := false
	for i, t := range dispatch {
		idx := t.Turn.Index
		if capped || runErr != nil {
			report.Skipped = append(report.Skipped, idx)
			continue
		}

		r := <-results[i]
		if err := ctx.Err(); err != nil && r.err != nil {
			runErr = err
			report.Skipped = append(report.Skipped, idx)
			cancel()
			continue
		}
		if r.err != nil {
			report.Gaps = append(report.Gaps, Gap{TurnIndex: idx, Error: r.err.Error(), Err: r.err})
			logger.ErrorCF("voice", "Turn audio dropped", map[string]any{
				"turn":  idx,
				"voice": t.Voice,
				"error": r.err.Error(),
			})
			p.publish(bus.EventSynthesisGap, map[string]any{"index": idx, "error": r.err.Error()})
			continue
		}
		if report.Total+r.seg.Duration > limit {
			capped = true
			report.Skipped = append(report.Skipped, idx)
			cancel()
			logger.InfoCF("voice", "Duration cap reached", map[string]any{
				"turn":  idx,
				"total": report.Total.String(),
				"cap":   limit.String(),
			})
			p.publish(bus.EventSynthesisCapped, map[string]any{"index": idx, "total_ms": report.Total.Milliseconds()})
			continue
		}

		report.Segments = append(report.Segments, r.seg)
		report.Total += r.seg.Duration
		p.publish(bus.EventSynthesisSegment, map[string]any{
			"index":       idx,
			"duration_ms": r.seg.Duration.Milliseconds(),
			"plain":       r.seg.Plain,
		})
	}

	cancel()
	<-dispatched
	_ = g.Wait()

	slices.Sort(report.Skipped)
	report.CoverageMismatch = len(report.Segments) != len(turns)
	return report, runErr
}

// admit returns the prefix of turns whose cumulative estimate stays within
// limit plus the configured slack.
func (p *Pipeline) admit(turns []ssml.AnnotatedTurn, limit time.Duration) []ssml.AnnotatedTurn {
	var sum time.Duration
	for i, t := range turns {
		sum += t.Estimated
		if sum > limit+p.opts.EstimateSlack {
			return turns[:i]
		}
	}
	return turns
}

func (p *Pipeline) synthesize(ctx context.Context, t ssml.AnnotatedTurn) result {
	attempt := func(ctx context.Context, n int) (*Speech, error) {
		if err := p.opts.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req := Request{Text: t.Markup, Voice: t.Voice, Markup: true, Instructions: t.Instructions}
		if n > 0 {
			req.Text, req.Markup = t.Plain, false
		}
		speech, err := p.synth.Synthesize(ctx, req)
		if err != nil {
			return nil, &SynthesisError{TurnIndex: t.Turn.Index, Voice: t.Voice, Err: err}
		}
		return speech, nil
	}

	speech, outcome, err := utils.AttemptOrFallback(ctx, p.policy, attempt, nil)
	if err != nil {
		return result{err: err}
	}
	return result{seg: Segment{
		TurnIndex: t.Turn.Index,
		Voice:     t.Voice,
		Samples:   speech.Samples,
		Format:    speech.Format,
		Duration:  speech.Duration,
		Plain:     outcome.Attempts > 1,
	}}
}

func (p *Pipeline) publish(kind bus.EventKind, data map[string]any) {
	if p.events == nil {
		return
	}
	p.events.Publish(bus.Event{Kind: kind, Time: time.Now().UTC(), Data: data})
}
