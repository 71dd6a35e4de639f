// Package engine drives exploration journeys: it owns the per-journey
// stage loop, persistence, synthesis triggering, and the cooperative
// pause/resume/stop state machine. Control requests take effect at stage
// boundaries; an in-flight stage always runs to completion or failure.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/expedition-ai/expedition/internal/event"
	"github.com/expedition-ai/expedition/internal/journey"
	"github.com/expedition-ai/expedition/internal/metrics"
	"github.com/expedition-ai/expedition/internal/stage"
	"github.com/expedition-ai/expedition/internal/store"
	"github.com/expedition-ai/expedition/internal/synthesis"
)

// Client is the provider surface the engine needs; satisfied by
// llm.FailoverClient.
type Client = stage.Client

// Config tunes journey execution.
type Config struct {
	ModelID           string
	MaxTokens         int
	Temperature       float64
	ExtendedReasoning bool
	ReasoningBudget   int

	MaxDepth          int // 0 = unbounded
	SaveArtifacts     bool
	ContinueOnFailure bool

	EnableSynthesis    bool
	SynthesisInterval  int
	SynthesisModelID   string
	SynthesisMaxTokens int
	SummaryStage       journey.SummaryStagePredicate
}

// Engine manages running journeys. Safe for concurrent use.
type Engine struct {
	client    Client
	store     *store.Store
	templates *stage.TemplateSet
	executor  *stage.Executor
	observer  event.Observer
	metrics   *metrics.Metrics
	cfg       Config
	logger    zerolog.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// run is the in-memory control block for one journey.
type run struct {
	id    string
	synth *synthesis.Manager

	mu      sync.Mutex
	j       *journey.Journey
	pending journey.JourneyStatus // requested pause or stop, applied at the next stage boundary
	wake    chan struct{}         // non-nil while the loop is parked paused
	done    chan struct{}
}

// effectiveStatus folds a pending control request into the current
// status so control validation sees what the journey is about to become.
// Callers must hold r.mu.
func (r *run) effectiveStatus() journey.JourneyStatus {
	if r.pending != "" {
		return r.pending
	}
	return r.j.Status
}

// New constructs an engine. observer and m may be nil.
func New(client Client, st *store.Store, templates *stage.TemplateSet, observer event.Observer, m *metrics.Metrics, cfg Config, logger zerolog.Logger) *Engine {
	if observer == nil {
		observer = event.Nop{}
	}
	if cfg.SummaryStage == nil {
		cfg.SummaryStage = journey.DefaultSummaryStage
	}
	return &Engine{
		client:    client,
		store:     st,
		templates: templates,
		executor:  stage.NewExecutor(client, templates, observer, m, logger),
		observer:  observer,
		metrics:   m,
		cfg:       cfg,
		logger:    logger.With().Str("component", "engine").Logger(),
		runs:      make(map[string]*run),
	}
}

// Start creates a journey for the question, persists it, and launches
// its stage loop. Returns the new journey's initial snapshot.
func (e *Engine) Start(ctx context.Context, question string) (*journey.Journey, error) {
	if question == "" {
		return nil, errors.New("question must not be empty")
	}

	j := journey.New(question, e.cfg.MaxDepth)
	if err := e.store.CreateJourney(j); err != nil {
		return nil, fmt.Errorf("start journey: %w", err)
	}

	r := &run{
		id:   j.ID,
		j:    j,
		done: make(chan struct{}),
		synth: synthesis.NewManager(e.client, synthesis.Config{
			Interval:     e.cfg.SynthesisInterval,
			ModelID:      e.cfg.SynthesisModelID,
			MaxTokens:    e.cfg.SynthesisMaxTokens,
			SummaryStage: e.cfg.SummaryStage,
		}, e.metrics, e.logger),
	}

	e.mu.Lock()
	e.runs[j.ID] = r
	e.mu.Unlock()

	e.logger.Info().
		Str("journey_id", j.ID).
		Str("question", question).
		Int("max_depth", e.cfg.MaxDepth).
		Msg("journey started")
	e.observer.OnJourneyStatusChange(j.ID, journey.StatusRunning)

	go e.loop(ctx, r)

	snapshot := *j
	return &snapshot, nil
}

// Pause requests a pause. The in-flight stage finishes first; the
// journey only becomes paused at the next stage boundary, where the loop
// waits until Resume or Stop.
func (e *Engine) Pause(journeyID string) error {
	r, err := e.run(journeyID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.effectiveStatus(); s != journey.StatusRunning {
		return fmt.Errorf("cannot pause journey in status %s", s)
	}
	r.pending = journey.StatusPaused
	return nil
}

// Resume continues a paused journey. A pause that has not yet been
// honored at a stage boundary is simply cancelled.
func (e *Engine) Resume(journeyID string) error {
	r, err := e.run(journeyID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if s := r.effectiveStatus(); s != journey.StatusPaused {
		r.mu.Unlock()
		return fmt.Errorf("cannot resume journey in status %s", s)
	}
	if r.pending == journey.StatusPaused {
		r.pending = ""
		r.mu.Unlock()
		return nil
	}
	if err := r.j.Transition(journey.StatusRunning); err != nil {
		r.mu.Unlock()
		return err
	}
	close(r.wake)
	r.wake = nil
	err = e.store.UpdateJourneyStatus(r.id, journey.StatusRunning)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	e.notifyStatus(r.id, journey.StatusRunning)
	return nil
}

// Stop ends a journey. For a running journey it takes effect at the next
// stage boundary, overriding any pending pause; a parked journey stops
// immediately.
func (e *Engine) Stop(journeyID string) error {
	r, err := e.run(journeyID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if s := r.effectiveStatus(); s != journey.StatusRunning && s != journey.StatusPaused {
		r.mu.Unlock()
		return fmt.Errorf("cannot stop journey in status %s", s)
	}
	if r.j.Status == journey.StatusPaused {
		if err := r.j.Transition(journey.StatusStopped); err != nil {
			r.mu.Unlock()
			return err
		}
		r.pending = ""
		close(r.wake)
		r.wake = nil
		err = e.store.UpdateJourneyStatus(r.id, journey.StatusStopped)
		r.mu.Unlock()
		if err != nil {
			return err
		}
		e.notifyStatus(r.id, journey.StatusStopped)
		return nil
	}
	r.pending = journey.StatusStopped
	r.mu.Unlock()
	return nil
}

// Done returns a channel closed when the journey's loop exits.
func (e *Engine) Done(journeyID string) (<-chan struct{}, error) {
	r, err := e.run(journeyID)
	if err != nil {
		return nil, err
	}
	return r.done, nil
}

// Journey returns the persisted state of a journey.
func (e *Engine) Journey(journeyID string) (*journey.Journey, error) {
	return e.store.GetJourney(journeyID)
}

func (e *Engine) run(journeyID string) (*run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[journeyID]
	if !ok {
		return nil, fmt.Errorf("unknown journey: %s", journeyID)
	}
	return r, nil
}

// loop executes stages until the journey reaches a terminal status.
func (e *Engine) loop(ctx context.Context, r *run) {
	defer close(r.done)
	if e.metrics != nil {
		e.metrics.JourneysActive.Inc()
		defer e.metrics.JourneysActive.Dec()
	}

	for {
		e.applyPending(r)
		status := r.await(ctx)
		if ctx.Err() != nil {
			e.finish(r, journey.StatusStopped)
			return
		}
		if status != journey.StatusRunning {
			// The terminal status was persisted when it was applied.
			return
		}

		r.mu.Lock()
		seq := r.j.NextSeq()
		question := r.j.Question
		r.mu.Unlock()

		if e.cfg.MaxDepth > 0 && seq > e.cfg.MaxDepth {
			e.finish(r, journey.StatusComplete)
			return
		}

		st, insights := e.executor.Run(ctx, stage.RunInput{
			JourneyID:         r.id,
			Seq:               seq,
			Type:              journey.StageTypeForIndex(seq),
			Question:          question,
			ContextBlock:      r.synth.ContextBlock(),
			ModelID:           e.cfg.ModelID,
			MaxTokens:         e.cfg.MaxTokens,
			Temperature:       e.cfg.Temperature,
			ExtendedReasoning: e.cfg.ExtendedReasoning,
			ReasoningBudget:   e.cfg.ReasoningBudget,
			SaveArtifacts:     e.cfg.SaveArtifacts,
		})

		if err := e.store.AppendStage(r.id, *st); err != nil {
			e.logger.Error().Err(err).Str("journey_id", r.id).Int("seq", seq).Msg("stage persist failed")
			e.observer.OnError(r.id, err, true)
			e.finish(r, journey.StatusFailed)
			return
		}
		r.mu.Lock()
		_ = r.j.AppendStage(*st)
		r.mu.Unlock()

		if st.Status == journey.StageFailed {
			stageErr := errors.New(st.Error)
			e.observer.OnError(r.id, stageErr, !e.cfg.ContinueOnFailure)
			if !e.cfg.ContinueOnFailure {
				e.finish(r, journey.StatusFailed)
				return
			}
			// A failed stage keeps its sequence slot but contributes
			// nothing to context or insights.
			continue
		}

		for _, in := range insights {
			if err := e.store.AppendInsight(r.id, in); err != nil {
				e.logger.Warn().Err(err).Str("journey_id", r.id).Msg("insight persist failed")
				continue
			}
			r.synth.NoteInsight(in)
		}
		r.synth.NoteStage(*st)

		if e.cfg.EnableSynthesis && r.synth.ShouldSynthesize(seq, st.Type) {
			e.synthesize(ctx, r)
		}
	}
}

// synthesize runs one best-effort synthesis pass. Failures are logged
// and reported as non-fatal; the journey continues either way.
func (e *Engine) synthesize(ctx context.Context, r *run) {
	report, err := r.synth.Synthesize(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Str("journey_id", r.id).Msg("synthesis skipped")
		e.observer.OnError(r.id, err, false)
		return
	}

	if err := e.store.AppendInsight(r.id, report.Insight(r.id, 0)); err != nil {
		e.logger.Warn().Err(err).Str("journey_id", r.id).Msg("synthesis insight persist failed")
	}
	if err := e.store.IncrementSynthesisCount(r.id); err != nil {
		e.logger.Warn().Err(err).Str("journey_id", r.id).Msg("synthesis count persist failed")
	}
	r.mu.Lock()
	r.j.SynthesisCount++
	r.mu.Unlock()

	e.observer.OnSynthesisComplete(r.id, *report)
}

// applyPending honors a control request at a stage boundary: the journey
// transitions and is persisted here, never mid-stage. The transition and
// store write share r.mu so persisted order matches the state machine;
// observer callbacks run after the lock is released so observers may
// call back into the engine.
func (e *Engine) applyPending(r *run) {
	r.mu.Lock()
	to := r.pending
	r.pending = ""
	if to == "" || !r.j.CanTransition(to) {
		r.mu.Unlock()
		return
	}
	_ = r.j.Transition(to)
	if to == journey.StatusPaused {
		r.wake = make(chan struct{})
	}
	err := e.store.UpdateJourneyStatus(r.id, to)
	r.mu.Unlock()

	if err != nil {
		e.logger.Error().Err(err).Str("journey_id", r.id).Msg("status persist failed")
		return
	}
	e.notifyStatus(r.id, to)
}

// finish moves the journey to a terminal status if the state machine
// still allows it (a stop request may have won the race).
func (e *Engine) finish(r *run, to journey.JourneyStatus) {
	r.mu.Lock()
	ok := r.j.CanTransition(to)
	var err error
	if ok {
		_ = r.j.Transition(to)
		err = e.store.UpdateJourneyStatus(r.id, to)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if err != nil {
		e.logger.Error().Err(err).Str("journey_id", r.id).Msg("status persist failed")
		return
	}
	e.notifyStatus(r.id, to)
}

// notifyStatus logs a persisted status change and informs observers.
// Callers persist under r.mu first, then call this with the lock
// released.
func (e *Engine) notifyStatus(journeyID string, to journey.JourneyStatus) {
	e.logger.Info().Str("journey_id", journeyID).Str("status", string(to)).Msg("journey status changed")
	e.observer.OnJourneyStatusChange(journeyID, to)
}

// await blocks while the journey is paused and returns the effective
// status once it is running or terminal.
func (r *run) await(ctx context.Context) journey.JourneyStatus {
	for {
		r.mu.Lock()
		status := r.j.Status
		wake := r.wake
		r.mu.Unlock()

		if status != journey.StatusPaused {
			return status
		}
		select {
		case <-ctx.Done():
			return journey.StatusPaused
		case <-wake:
		}
	}
}
