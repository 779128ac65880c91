// Package session runs one complete episode: metrics in, transcript and
// mixed audio out.
package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sipeed/picocast/pkg/audio"
	"github.com/sipeed/picocast/pkg/bus"
	"github.com/sipeed/picocast/pkg/dialogue"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/metrics"
	"github.com/sipeed/picocast/pkg/persona"
	"github.com/sipeed/picocast/pkg/ssml"
	"github.com/sipeed/picocast/pkg/voice"
)

// Options are the per-runner defaults. Zero values fall back to the
// dialogue package defaults.
type Options struct {
	Title              string
	TurnBudget         int
	DurationCapSeconds int
	ClosingReserve     time.Duration
	WordsPerMinute     int
	CompletionTimeout  time.Duration
	AnomalyThreshold   float64
	OutputDir          string
	Pipeline           voice.PipelineOptions
}

// Deps are the shared, concurrency-safe collaborators of a Runner.
type Deps struct {
	Registry    *persona.Registry
	Completer   dialogue.Completer
	Annotator   *ssml.Annotator
	Synthesizer voice.Synthesizer
	Store       *Store
	Events      bus.Publisher
}

// Result is everything one session produced. Transcript always holds every
// turn; Audio may be shorter when synthesis failed or hit the cap.
type Result struct {
	ID               string          `json:"id"`
	Transcript       []dialogue.Turn `json:"transcript"`
	Lines            []audio.Line    `json:"-"`
	Audio            []voice.Segment `json:"audio"`
	Master           *audio.Master   `json:"-"`
	CoverageMismatch bool            `json:"coverage_mismatch"`
	Gaps             []voice.Gap     `json:"gaps,omitempty"`
	Skipped          []int           `json:"skipped,omitempty"`
	Duration         time.Duration   `json:"duration"`
	Artifacts        Artifacts       `json:"artifacts"`
	Status           string          `json:"status"`
}

// Runner holds no per-session state; Run may be called concurrently.
type Runner struct {
	deps  Deps
	opts  Options
	newID func() string
	now   func() time.Time
}

func NewRunner(deps Deps, opts Options) *Runner {
	if opts.DurationCapSeconds <= 0 {
		opts.DurationCapSeconds = int(dialogue.DefaultDurationCap / time.Second)
	}
	if opts.AnomalyThreshold <= 0 {
		opts.AnomalyThreshold = metrics.DefaultOptions().AnomalyThresholdPercent
	}
	return &Runner{
		deps:  deps,
		opts:  opts,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

func (r *Runner) Registry() *persona.Registry { return r.deps.Registry }

func (r *Runner) Store() *Store { return r.deps.Store }

// Run normalizes docs, generates the episode and renders its audio.
// turnBudget and durationCapSeconds override the runner defaults when
// positive. Input errors are returned before any turn is generated. A
// cancelled ctx returns the partial result together with ctx.Err().
func (r *Runner) Run(ctx context.Context, docs [][]byte, turnBudget, durationCapSeconds int) (*Result, error) {
	facts, err := metrics.Normalize(docs, metrics.Options{AnomalyThresholdPercent: r.opts.AnomalyThreshold})
	if err != nil {
		return nil, err
	}

	id := r.newID()
	pub := bus.Scoped{SessionID: id, Target: r.deps.Events}
	started := r.now()

	if turnBudget <= 0 {
		turnBudget = r.opts.TurnBudget
	}
	capSeconds := r.opts.DurationCapSeconds
	if durationCapSeconds > 0 {
		capSeconds = durationCapSeconds
	}
	limit := time.Duration(capSeconds) * time.Second

	pub.Publish(bus.Event{Kind: bus.EventSessionStarted, Time: started, Data: map[string]any{
		"metrics":      facts.Len(),
		"turn_budget":  turnBudget,
		"duration_cap": capSeconds,
	}})
	logger.InfoCF("session", "Session started", map[string]any{
		"id":           id,
		"metrics":      facts.Len(),
		"turn_budget":  turnBudget,
		"duration_cap": capSeconds,
	})

	orch := dialogue.NewOrchestrator(r.deps.Registry, r.deps.Completer, dialogue.Options{
		Title:             r.opts.Title,
		TurnBudget:        turnBudget,
		DurationCap:       limit,
		ClosingReserve:    r.opts.ClosingReserve,
		WordsPerMinute:    r.opts.WordsPerMinute,
		CompletionTimeout: r.opts.CompletionTimeout,
	}).WithEvents(pub)

	res := &Result{ID: id, Status: StatusComplete}
	state, runErr := orch.Run(ctx, facts)
	if state != nil {
		res.Transcript = state.Turns()
		res.Lines = audio.BuildTranscript(res.Transcript)
	}
	if runErr != nil {
		if ctx.Err() == nil {
			return nil, fmt.Errorf("generate dialogue: %w", runErr)
		}
		res.Status = StatusCancelled
		res.CoverageMismatch = len(res.Transcript) > 0
		r.finish(pub, res, started)
		return res, runErr
	}

	annotated := r.deps.Annotator.AnnotateAll(res.Transcript)
	pipeline := voice.NewPipeline(r.deps.Synthesizer, r.opts.Pipeline).WithEvents(pub)
	report, synthErr := pipeline.Run(ctx, annotated, limit)
	res.Audio = report.Segments
	res.Gaps = report.Gaps
	res.Skipped = report.Skipped
	res.CoverageMismatch = report.CoverageMismatch

	master, err := audio.Assemble(report.Segments)
	if err != nil {
		return nil, fmt.Errorf("assemble audio: %w", err)
	}
	res.Master = master
	res.Duration = master.Duration

	switch {
	case synthErr != nil:
		res.Status = StatusCancelled
	case res.CoverageMismatch:
		res.Status = StatusPartial
	}

	if r.opts.OutputDir != "" && synthErr == nil {
		art, err := WriteArtifacts(r.opts.OutputDir, id, master, res.Lines)
		if err != nil {
			return nil, err
		}
		res.Artifacts = art
	}

	r.finish(pub, res, started)
	return res, synthErr
}

// finish records the session and emits the terminal event. Ledger
// failures are logged, not returned.
func (r *Runner) finish(pub bus.Publisher, res *Result, started time.Time) {
	if r.deps.Store != nil {
		rec := Record{
			ID:               res.ID,
			CreatedAt:        started,
			Turns:            len(res.Transcript),
			Synthesized:      len(res.Audio),
			CoverageMismatch: res.CoverageMismatch,
			DurationMS:       res.Duration.Milliseconds(),
			AudioPath:        res.Artifacts.AudioPath,
			TranscriptPath:   res.Artifacts.TranscriptPath,
			Status:           res.Status,
		}
		if err := r.deps.Store.Save(context.Background(), rec); err != nil {
			logger.ErrorCF("store", "Failed to record session", map[string]any{
				"id":    res.ID,
				"error": err.Error(),
			})
		}
	}

	fields := map[string]any{
		"turns":             len(res.Transcript),
		"segments":          len(res.Audio),
		"gaps":              len(res.Gaps),
		"skipped":           len(res.Skipped),
		"coverage_mismatch": res.CoverageMismatch,
		"duration_ms":       res.Duration.Milliseconds(),
		"status":            res.Status,
	}
	// Subscribers own the published map; the log fields are extended on a copy.
	pub.Publish(bus.Event{Kind: bus.EventSessionFinished, Time: r.now(), Data: maps.Clone(fields)})

	fields["id"] = res.ID
	fields["elapsed"] = r.now().Sub(started).String()
	if res.CoverageMismatch {
		logger.WarnCF("session", "Session finished with incomplete audio", fields)
		return
	}
	logger.InfoCF("session", "Session finished", fields)
}

// Respond returns one validated line from the named persona. docs are
// optional context; the bool reports whether a fallback line was used.
func (r *Runner) Respond(ctx context.Context, personaID, message string, docs [][]byte) (string, bool, error) {
	p, err := r.deps.Registry.PersonaFor(personaID)
	if err != nil {
		return "", false, err
	}
	if strings.TrimSpace(message) == "" {
		return "", false, errors.New("message is empty")
	}

	var facts *metrics.Context
	if len(docs) > 0 {
		facts, err = metrics.Normalize(docs, metrics.Options{AnomalyThresholdPercent: r.opts.AnomalyThreshold})
		if err != nil {
			return "", false, err
		}
	}

	orch := dialogue.NewOrchestrator(r.deps.Registry, r.deps.Completer, dialogue.Options{
		Title:             r.opts.Title,
		WordsPerMinute:    r.opts.WordsPerMinute,
		CompletionTimeout: r.opts.CompletionTimeout,
	})
	text, fallback := orch.Respond(ctx, p, message, facts)
	return text, fallback, nil
}

// Speak renders a single line in the named persona's voice.
func (r *Runner) Speak(ctx context.Context, personaID, text string) (*audio.Master, error) {
	p, err := r.deps.Registry.PersonaFor(personaID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is empty")
	}

	at := r.deps.Annotator.Annotate(dialogue.Turn{
		Role:      p.Role,
		Speaker:   p.DisplayName,
		Text:      text,
		Timestamp: r.now(),
		Phase:     dialogue.PhaseDialogue,
	})
	limit := time.Duration(r.opts.DurationCapSeconds) * time.Second
	report, err := voice.NewPipeline(r.deps.Synthesizer, r.opts.Pipeline).Run(ctx, []ssml.AnnotatedTurn{at}, limit)
	if err != nil {
		return nil, err
	}
	if len(report.Gaps) > 0 {
		return nil, report.Gaps[0].Err
	}
	if len(report.Segments) == 0 {
		return nil, fmt.Errorf("line is longer than the %s duration cap", limit)
	}
	return audio.Assemble(report.Segments)
}
